package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})
}

// TestRateLimiterBasicFunctionality tests burst allowance and rejection
func TestRateLimiterBasicFunctionality(t *testing.T) {
	t.Parallel()

	rateLimiter := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 2, BurstSize: 3}, logger.NewNop())
	handler := rateLimiter.RateLimitMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/giftcert", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusOK, recorder.Code, "request %d should succeed within burst limit", i+1)
		assert.NotEmpty(t, recorder.Header().Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/giftcert", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, "0", recorder.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", recorder.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, recorder.Body.String())
}

// TestRateLimiterPerIPIsolation tests that each client has its own bucket
func TestRateLimiterPerIPIsolation(t *testing.T) {
	t.Parallel()

	rateLimiter := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, logger.NewNop())
	handler := rateLimiter.RateLimitMiddleware()(okHandler())

	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000", "10.0.0.3:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code, "first request from %s", addr)
	}

	assert.Equal(t, 3, rateLimiter.GetStats()["active_clients"])
}

// TestRateLimiterConcurrentClients checks that concurrent requests never
// exceed the burst of a single client
func TestRateLimiterConcurrentClients(t *testing.T) {
	t.Parallel()

	rateLimiter := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 5}, logger.NewNop())
	handler := rateLimiter.RateLimitMiddleware()(okHandler())

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "172.16.0.1:5000"
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)
			if recorder.Code == http.StatusOK {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
}

func TestRateLimiterCleanupDropsIdleClients(t *testing.T) {
	t.Parallel()

	rateLimiter := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 10, BurstSize: 10}, logger.NewNop())
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rateLimiter.now = func() time.Time { return current }

	rateLimiter.getLimiter("10.0.0.1")
	current = current.Add(idleLimiterTTL / 2)
	rateLimiter.getLimiter("10.0.0.2")
	current = current.Add(idleLimiterTTL/2 + time.Second)

	assert.Equal(t, 1, rateLimiter.Cleanup())
	assert.Equal(t, 1, rateLimiter.GetStats()["active_clients"])
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.5:4000", want: "192.168.1.5"},
		{name: "first forwarded entry", remoteAddr: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", remoteAddr: "10.0.0.1:80", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, want: "198.51.100.2"},
		{name: "remote addr without port", remoteAddr: "unix", want: "unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req), fmt.Sprintf("headers %v", tt.headers))
		})
	}
}
