package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openclaw/hello-api/pkg/apierror"
	"github.com/openclaw/hello-api/pkg/authn"
)

// Config holds rate limiting settings. Per-IP limits apply to every request;
// per-subject limits additionally apply to authenticated requests, so
// clients behind a shared NAT are not throttled as one.
type Config struct {
	PerIPBurst   int     `env:"RATE_LIMIT_IP_BURST" env-default:"100"`
	PerIPRate    float64 `env:"RATE_LIMIT_IP_RATE" env-default:"1.67"`
	PerUserBurst int     `env:"RATE_LIMIT_USER_BURST" env-default:"200"`
	PerUserRate  float64 `env:"RATE_LIMIT_USER_RATE" env-default:"3.33"`
	Enabled      bool    `env:"RATE_LIMIT_ENABLED" env-default:"true"`
}

const bucketTTL = time.Hour

// Middleware enforces the configured limits
type Middleware struct {
	config Config
	byIP   *Limiter
	byUser *Limiter
}

// NewMiddleware creates a rate limiting middleware
func NewMiddleware(config Config) *Middleware {
	return &Middleware{
		config: config,
		byIP:   NewLimiter(config.PerIPBurst, config.PerIPRate, bucketTTL),
		byUser: NewLimiter(config.PerUserBurst, config.PerUserRate, bucketTTL),
	}
}

// Handler enforces the per-IP limit. Mount it on the root router so every
// request, authenticated or not, counts against its client address.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if ip := clientIP(r); ip != "" && !m.byIP.Allow(ip) {
			m.reject(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// UserHandler enforces the per-subject limit. It reads the verified identity
// from the request context, so it must be mounted after the authentication
// middleware; requests without an identity pass through untouched.
func (m *Middleware) UserHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if identity, ok := authn.IdentityFromContext(r.Context()); ok && !m.byUser.Allow(identity.UserID) {
			m.reject(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeTooManyRequests, "too many requests"))
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
