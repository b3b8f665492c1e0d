package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrMissingToken means no bearer token was presented. Routes with
	// optional authentication treat this as "no identity", not a failure.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken covers signature failure, expiry, and issuer/audience
	// mismatch. Key-set fetch failures map here too: fail closed.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Resolver verifies bearer tokens against the identity provider's published
// key set. The key set handle is owned by the Resolver and fetched lazily;
// construct one Resolver per process and share it.
type Resolver struct {
	issuer   string
	audience string
	keySet   jwk.Set
}

// NewResolver registers the JWKS URL with a process-wide cache and returns a
// Resolver bound to it. No network call happens until the first Resolve.
func NewResolver(ctx context.Context, issuer, audience, jwksURL string) (*Resolver, error) {
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	return &Resolver{
		issuer:   issuer,
		audience: audience,
		keySet:   jwk.NewCachedSet(cache, jwksURL),
	}, nil
}

// NewResolverWithKeySet returns a Resolver backed by a fixed key set.
// Used by tests and by deployments that pin provider keys.
func NewResolverWithKeySet(issuer, audience string, keySet jwk.Set) *Resolver {
	return &Resolver{
		issuer:   issuer,
		audience: audience,
		keySet:   keySet,
	}
}

// Resolve verifies the token and extracts the caller identity from its claims
func (v *Resolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	options := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithKeySet(v.keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.Parse([]byte(token), options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.Subject() == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	identity := &Identity{
		UserID:     parsed.Subject(),
		Email:      stringClaim(parsed, "email"),
		GivenName:  stringClaim(parsed, "first_name"),
		FamilyName: stringClaim(parsed, "last_name"),
		AvatarURL:  stringClaim(parsed, "image_url"),
	}
	return identity, nil
}

func stringClaim(token jwt.Token, name string) string {
	value, ok := token.Get(name)
	if !ok {
		return ""
	}
	str, _ := value.(string)
	return str
}
