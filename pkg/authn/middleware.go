package authn

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/openclaw/hello-api/pkg/apierror"
)

// Require returns a middleware that rejects requests without a valid bearer
// token. On success the caller identity is attached to the request context.
func Require(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromHeader(r)
			identity, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrMissingToken) {
					apierror.WriteJSON(w, r, apierror.Unauthorized("missing or invalid authorization header"))
					return
				}
				slog.Warn("token verification failed", "err", err)
				apierror.WriteJSON(w, r, apierror.Unauthorized("invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Optional returns a middleware that attaches the caller identity when a
// valid bearer token is present and otherwise proceeds anonymously. Invalid
// tokens are logged and treated as absence, not rejected.
func Optional(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromHeader(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				slog.Warn("optional auth failed, continuing anonymously", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
