package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/hello-api/pkg/authn"
)

func TestLimiterBurstExhaustion(t *testing.T) {
	limiter := NewLimiter(3, 0, 0)
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("client"), "request %d should be within burst", i+1)
	}
	assert.False(t, limiter.Allow("client"))
}

func TestLimiterRefillsOverTime(t *testing.T) {
	limiter := NewLimiter(1, 100, 0)
	defer limiter.Close()

	require.True(t, limiter.Allow("client"))
	require.False(t, limiter.Allow("client"))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, limiter.Allow("client"))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(1, 0, 0)
	defer limiter.Close()

	require.True(t, limiter.Allow("first"))
	require.False(t, limiter.Allow("first"))
	assert.True(t, limiter.Allow("second"))
}

func TestMiddlewareRejectsWithRetryAfter(t *testing.T) {
	m := NewMiddleware(Config{
		PerIPBurst:   1,
		PerIPRate:    0,
		PerUserBurst: 1,
		PerUserRate:  0,
		Enabled:      true,
	})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/hello-entities", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestUserHandlerLimitsAuthenticatedSubject(t *testing.T) {
	m := NewMiddleware(Config{
		PerIPBurst:   1000,
		PerIPRate:    0,
		PerUserBurst: 1,
		PerUserRate:  0,
		Enabled:      true,
	})
	withIdentity := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authn.WithIdentity(r.Context(), &authn.Identity{UserID: "user_1"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	handler := m.Handler(withIdentity(m.UserHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/hello-entities", nil)
		req.RemoteAddr = "203.0.113.20:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestUserHandlerIgnoresAnonymousRequests(t *testing.T) {
	m := NewMiddleware(Config{PerIPBurst: 1000, PerUserBurst: 1, Enabled: true})
	handler := m.UserHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/hello-entities", nil)
		req.RemoteAddr = "203.0.113.21:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	m := NewMiddleware(Config{Enabled: false, PerIPBurst: 1, PerUserBurst: 1})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/hello-entities", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareUsesForwardedFor(t *testing.T) {
	m := NewMiddleware(Config{PerIPBurst: 1, PerUserBurst: 1, Enabled: true})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/hello-entities", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("198.51.100.7, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.7, 10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.8"))
}
