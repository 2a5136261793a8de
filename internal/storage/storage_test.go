package storage_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vidforge/vidforge/internal/storage"
)

func newTestStorage(t *testing.T, maxBytes int64) *storage.Storage {
	t.Helper()
	// presigning is local; nothing listens on the endpoint
	s, err := storage.New(context.Background(), storage.Config{
		Endpoint:       "http://localhost:9000",
		Bucket:         "vidforge",
		AccessKey:      "test",
		SecretKey:      "test",
		MaxUploadBytes: maxBytes,
	})
	if err != nil {
		t.Fatalf("expected no error creating storage client, got: %v", err)
	}
	return s
}

func TestNewStorageRequiresBucket(t *testing.T) {
	_, err := storage.New(context.Background(), storage.Config{Endpoint: "http://localhost:9000"})
	if err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestUploadURL(t *testing.T) {
	s := newTestStorage(t, 1024)

	url, err := s.UploadURL(context.Background(), "uploads/u1/s1.mp4", "video/mp4", 512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "/vidforge/uploads/u1/s1.mp4") {
		t.Errorf("expected path-style key in URL, got %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("expected 15 minute expiry, got %s", url)
	}

	if _, err := s.UploadURL(context.Background(), "k", "video/mp4", 2048); err == nil {
		t.Error("expected error over the upload limit")
	}
}

func TestResultURL(t *testing.T) {
	s := newTestStorage(t, 0)

	url, err := s.ResultURL(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "/vidforge/processed/session-1.mp4") {
		t.Errorf("expected result key in URL, got %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=3600") {
		t.Errorf("expected one hour expiry, got %s", url)
	}
}

func TestUploadKey(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"video/mp4", "uploads/u1/s1.mp4"},
		{"video/quicktime", "uploads/u1/s1.mov"},
		{"video/x-msvideo", "uploads/u1/s1.avi"},
	}
	for _, tt := range tests {
		if got := storage.UploadKey("u1", "s1", tt.contentType); got != tt.want {
			t.Errorf("UploadKey(%s) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
	if got := storage.ResultKey("s1"); got != "processed/s1.mp4" {
		t.Errorf("unexpected result key %q", got)
	}
}

type s3Request struct {
	method     string
	path       string
	copySource string
}

// fakeS3 answers CopyObject calls and records what it was asked. status other
// than 200 answers with a NoSuchKey error.
func fakeS3(t *testing.T, status int) (*storage.Storage, func() []s3Request) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []s3Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, s3Request{method: r.Method, path: r.URL.Path, copySource: r.Header.Get("X-Amz-Copy-Source")})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/xml")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"9b2cf535f27731c974343645a3985328"</ETag><LastModified>2026-01-01T00:00:00.000Z</LastModified></CopyObjectResult>`)
	}))
	t.Cleanup(srv.Close)

	s, err := storage.New(context.Background(), storage.Config{
		Endpoint:  srv.URL,
		Bucket:    "vidforge",
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, func() []s3Request {
		mu.Lock()
		defer mu.Unlock()
		return append([]s3Request(nil), reqs...)
	}
}

func TestPublishResultCopiesUploadToResultKey(t *testing.T) {
	s, requests := fakeS3(t, http.StatusOK)

	url, err := s.PublishResult(context.Background(), storage.UploadKey("u1", "s1", "video/quicktime"), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "/vidforge/processed/s1.mp4") {
		t.Errorf("expected presigned result URL, got %s", url)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one S3 call, got %d", len(reqs))
	}
	if reqs[0].method != http.MethodPut || reqs[0].path != "/vidforge/processed/s1.mp4" {
		t.Errorf("expected PUT to the result key, got %s %s", reqs[0].method, reqs[0].path)
	}
	if !strings.Contains(reqs[0].copySource, "vidforge/uploads/u1/s1.mov") {
		t.Errorf("expected copy from the upload key, got %q", reqs[0].copySource)
	}
}

func TestPublishResultFailsWhenUploadMissing(t *testing.T) {
	s, _ := fakeS3(t, http.StatusNotFound)

	if _, err := s.PublishResult(context.Background(), "uploads/u1/s1.mp4", "s1"); err == nil {
		t.Fatal("expected error when the upload does not exist")
	}
}
