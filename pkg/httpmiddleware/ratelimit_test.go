package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func limitedHandler(cfg RateLimitConfig) http.Handler {
	return Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimit(cfg))
}

func doRequest(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBurstThenReject(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		rec := doRequest(h, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := doRequest(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:1").Code)
}

func TestRateLimitRefills(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Second})
	now := time.Now()

	_, _, ok := rl.allow("k", now)
	assert.True(t, ok)
	_, _, ok = rl.allow("k", now)
	assert.True(t, ok)
	_, _, ok = rl.allow("k", now)
	assert.False(t, ok)

	// Half a window refills one token.
	_, _, ok = rl.allow("k", now.Add(500*time.Millisecond))
	assert.True(t, ok)
	_, _, ok = rl.allow("k", now.Add(500*time.Millisecond))
	assert.False(t, ok)
}

func TestClientIPExtraction(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 203.0.113.9")
	assert.Equal(t, "198.51.100.7", clientIP(req))
}
