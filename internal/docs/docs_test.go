package docs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	Routes().ServeHTTP(rec, req)
	return rec
}

func TestSpecRoute(t *testing.T) {
	rec := serve("/openapi.yaml")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/yaml")
	}
	if !strings.HasPrefix(rec.Body.String(), "openapi:") {
		t.Error("body should start with 'openapi:'")
	}
}

func TestDocsRoute(t *testing.T) {
	rec := serve("/")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-url="/api/docs/openapi.yaml"`) {
		t.Error("page should point the renderer at the spec")
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "cdn.jsdelivr.net") {
		t.Errorf("CSP should allow cdn.jsdelivr.net, got %q", csp)
	}
	if !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("CSP should forbid framing, got %q", csp)
	}
}

func TestSpecContainsAllEndpoints(t *testing.T) {
	spec := string(specYAML)

	endpoints := []string{
		"/api/health",
		"/api/limits",
		"/api/auth/login",
		"/api/videos/",
		"/api/videos/{id}",
		"/api/videos/{id}/download",
		"/api/intake/",
		"/api/intake/reset",
		"/api/intake/player",
	}

	for _, ep := range endpoints {
		if !strings.Contains(spec, ep) {
			t.Errorf("spec missing endpoint: %s", ep)
		}
	}
}
