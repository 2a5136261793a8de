package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRequestsWithinBurstAreAllowed(t *testing.T) {
	limiter := NewLimiter(clockwork.NewFakeClock(), 1, 3)

	for i := range 3 {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Error("request beyond burst should be denied")
	}
}

func TestTokensReplenishOverTime(t *testing.T) {
	fc := clockwork.NewFakeClock()
	limiter := NewLimiter(fc, 10, 2)
	limiter.Allow("1.2.3.4")
	limiter.Allow("1.2.3.4")
	if limiter.Allow("1.2.3.4") {
		t.Fatal("expected bucket empty")
	}

	fc.Advance(150 * time.Millisecond)
	if !limiter.Allow("1.2.3.4") {
		t.Error("expected a token after replenishing")
	}
}

func TestTokensDoNotExceedBurst(t *testing.T) {
	fc := clockwork.NewFakeClock()
	limiter := NewLimiter(fc, 100, 2)
	limiter.Allow("a")
	fc.Advance(time.Hour)

	allowed := 0
	for range 5 {
		if limiter.Allow("a") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("expected 2 allowed at burst cap, got %d", allowed)
	}
}

func TestDifferentClientsAreIndependent(t *testing.T) {
	limiter := NewLimiter(clockwork.NewFakeClock(), 1, 1)
	limiter.Allow("a")
	if !limiter.Allow("b") {
		t.Error("expected a fresh bucket for another client")
	}
}

func TestCleanupEvictsIdleClients(t *testing.T) {
	fc := clockwork.NewFakeClock()
	limiter := NewLimiter(fc, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartCleanup(ctx)

	limiter.Allow("a")
	fc.Advance(11 * time.Minute)
	limiter.Allow("b")
	fc.Advance(4 * time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for limiter.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle client evicted, have %d", limiter.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMiddleware(t *testing.T) {
	limiter := NewLimiter(clockwork.NewFakeClock(), 1, 1)
	calls := 0
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("10.0.0.1:5000", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// same host, different port
	rec := send("10.0.0.1:6000", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "10" {
		t.Errorf("expected Retry-After 10, got %q", rec.Header().Get("Retry-After"))
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "too many requests" {
		t.Errorf("expected too many requests, got %q", body.Error)
	}

	if rec := send("10.0.0.1:5000", "203.0.113.9, 10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("expected forwarded client to have its own bucket, got %d", rec.Code)
	}
	if calls != 2 {
		t.Errorf("expected next called twice, got %d", calls)
	}
}
