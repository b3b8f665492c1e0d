package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// RequestMeta is the request origin attached to recorded entries
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "audit context value " + k.name
}

var metaKey = &contextKey{"RequestMeta"}

// WithRequestMeta returns a context carrying the request origin
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey, meta)
}

// MetaFromContext returns the request origin attached by Middleware
func MetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(metaKey).(RequestMeta)
	return meta, ok
}

// Middleware attaches the client IP and user agent to the request context so
// downstream services can stamp audit entries without holding the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}
		next.ServeHTTP(w, r.WithContext(WithRequestMeta(r.Context(), meta)))
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
