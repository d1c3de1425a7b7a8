package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hitFrom(h http.Handler, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_KeyedByHostNotPort(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	h := limitedHandler(rl)

	if code := hitFrom(h, "10.0.0.1:40001"); code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", code)
	}
	// Same client IP, new connection, new source port.
	if code := hitFrom(h, "10.0.0.1:40002"); code != http.StatusTooManyRequests {
		t.Errorf("same IP on a different port must share the limiter, got %d", code)
	}
}

func TestRateLimiter_SeparateClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	h := limitedHandler(rl)

	if code := hitFrom(h, "10.0.0.1:40001"); code != http.StatusOK {
		t.Fatalf("first client should pass, got %d", code)
	}
	if code := hitFrom(h, "10.0.0.2:40001"); code != http.StatusOK {
		t.Errorf("a different client IP gets its own limiter, got %d", code)
	}
}

func TestRateLimiter_BareIPKey(t *testing.T) {
	// RealIP rewrites RemoteAddr to a bare IP when proxy headers are present.
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	h := limitedHandler(rl)

	if code := hitFrom(h, "203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", code)
	}
	if code := hitFrom(h, "203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("bare IP must key consistently, got %d", code)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Stop()
	rl.Stop()
}
