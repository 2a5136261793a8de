package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func serveLogged(path string, status int, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSlogMiddleware_LogsRequest(t *testing.T) {
	buf := captureLogs(t)

	serveLogged("/api/videos", http.StatusOK, `{"ok":true}`)

	for _, field := range []string{
		"level=INFO",
		"method=GET",
		"path=/api/videos",
		"status=200",
		"bytes=11",
		"request_id=",
		"duration_ms=",
	} {
		if !bytes.Contains(buf.Bytes(), []byte(field)) {
			t.Errorf("expected log to contain %q, got: %s", field, buf.String())
		}
	}
}

func TestSlogMiddleware_SkipsHealthCheck(t *testing.T) {
	buf := captureLogs(t)

	rec := serveLogged("/api/health", http.StatusOK, "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output for /api/health, got: %s", buf.String())
	}
}

func TestSlogMiddleware_ServerErrorsLogAtErrorLevel(t *testing.T) {
	buf := captureLogs(t)

	serveLogged("/boom", http.StatusBadGateway, "")

	if !bytes.Contains(buf.Bytes(), []byte("level=ERROR")) || !bytes.Contains(buf.Bytes(), []byte("status=502")) {
		t.Errorf("expected error-level entry with status=502, got: %s", buf.String())
	}
}
