package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_ThrottlesPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/g1/settlements", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("1.2.3.4:1000"); code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	// Same host on a different port shares the limiter.
	if code := send("1.2.3.4:2000"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", code)
	}
	if code := send("5.6.7.8:1000"); code != http.StatusNoContent {
		t.Fatalf("expected other client to pass, got %d", code)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.allow("old")
	now = now.Add(2 * time.Hour)
	rl.allow("fresh")

	if removed := rl.Sweep(time.Hour); removed != 1 {
		t.Fatalf("expected one idle limiter removed, got %d", removed)
	}
	if _, ok := rl.limiters["fresh"]; !ok {
		t.Fatal("expected active limiter to be kept")
	}
	if rl.Len() != 1 {
		t.Fatalf("expected one tracked client, got %d", rl.Len())
	}
}
