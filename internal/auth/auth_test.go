package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-jwt-secret-key"

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correctpassword"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	dir := NewStaticDirectory([]Account{{
		User:         User{ID: "user-uuid-1", Email: "alice@example.com", Name: "Alice"},
		PasswordHash: string(hash),
	}})
	return NewHandler(dir, testSecret, time.Hour)
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body.Error
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	handler := newTestHandler(t)

	body := `{"email":"alice@example.com","password":"correctpassword"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.Name != "Alice" {
		t.Errorf("expected user Alice, got %+v", resp.User)
	}

	claims, err := ValidateToken(testSecret, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != "user-uuid-1" {
		t.Errorf("expected userID %q, got %q", "user-uuid-1", claims.UserID)
	}
}

func TestLogin_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"invalid json", `{not json`, http.StatusBadRequest, "invalid request body"},
		{"missing password", `{"email":"alice@example.com"}`, http.StatusBadRequest, "email and password are required"},
		{"wrong email", `{"email":"bob@example.com","password":"correctpassword"}`, http.StatusUnauthorized, "invalid email or password"},
		{"wrong password", `{"email":"alice@example.com","password":"nope"}`, http.StatusUnauthorized, "invalid email or password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t)
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := decodeErrorResponse(t, rec); got != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, got)
			}
		})
	}
}

// --- Middleware ---

func TestMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantError string
	}{
		{"no header", "", "authorization header required"},
		{"basic auth", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"garbage token", "Bearer invalid-token-string", "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t)
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
			})

			req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.Middleware(next).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
			if got := decodeErrorResponse(t, rec); got != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, got)
			}
			if nextCalled {
				t.Error("next handler should not have been called")
			}
		})
	}
}

func TestMiddleware_ValidAccessToken(t *testing.T) {
	handler := newTestHandler(t)
	accessToken, _ := GenerateAccessToken(testSecret, User{ID: "user-uuid-1", Name: "Alice"}, time.Minute)

	var captured User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	handler.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if captured.ID != "user-uuid-1" || captured.Name != "Alice" {
		t.Errorf("expected Alice in context, got %+v", captured)
	}
}

func TestOptionalMiddleware(t *testing.T) {
	handler := newTestHandler(t)
	accessToken, _ := GenerateAccessToken(testSecret, User{ID: "user-uuid-1"}, time.Minute)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"signed in", "Bearer " + accessToken, http.StatusOK, "user-uuid-1"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = idOf(SessionFromContext(r.Context()).CurrentUser())
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodPost, "/api/intake", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.OptionalMiddleware(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if gotUser != tt.wantUser {
				t.Errorf("expected user %q, got %q", tt.wantUser, gotUser)
			}
		})
	}
}

func idOf(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
