package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Identity is the verified caller extracted from a bearer token, valid for
// the lifetime of one request. Profile fields come straight from verified
// claims and are advisory display data, not re-validated against the store.
type Identity struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

func (i Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserID),
		slog.String("email", i.Email),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "authn context value " + k.name
}

var identityKey = &contextKey{"Identity"}

// WithIdentity returns a context carrying the caller identity
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller identity attached by the middleware,
// or false when the request is anonymous.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok && identity != nil
}

// TokenFromHeader extracts the bearer token from the Authorization header.
// Returns empty string when no bearer token is present.
func TokenFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
