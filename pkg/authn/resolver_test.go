package authn

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://idp.test"

type tokenSigner struct {
	key    jwk.Key
	pubSet jwk.Set
}

func newTokenSigner(t *testing.T) *tokenSigner {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key-1"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := key.PublicKey()
	require.NoError(t, err)
	pubSet := jwk.NewSet()
	require.NoError(t, pubSet.AddKey(pub))

	return &tokenSigner{key: key, pubSet: pubSet}
}

type claimOverride func(b *jwt.Builder)

func (s *tokenSigner) mint(t *testing.T, overrides ...claimOverride) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject("user_abc").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Claim("email", "jordan@example.com").
		Claim("first_name", "Jordan").
		Claim("last_name", "Doe").
		Claim("image_url", "https://img.test/jordan.png")
	for _, override := range overrides {
		override(builder)
	}
	token, err := builder.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, s.key))
	require.NoError(t, err)
	return string(signed)
}

func TestResolveValidToken(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	identity, err := resolver.Resolve(context.Background(), signer.mint(t))
	require.NoError(t, err)
	assert.Equal(t, "user_abc", identity.UserID)
	assert.Equal(t, "jordan@example.com", identity.Email)
	assert.Equal(t, "Jordan", identity.GivenName)
	assert.Equal(t, "Doe", identity.FamilyName)
	assert.Equal(t, "https://img.test/jordan.png", identity.AvatarURL)
}

func TestResolveMissingToken(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestResolveExpiredToken(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	token := signer.mint(t, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Minute))
	})
	_, err := resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveWrongIssuer(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	token := signer.mint(t, func(b *jwt.Builder) {
		b.Issuer("https://evil.test")
	})
	_, err := resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveWrongKey(t *testing.T) {
	signer := newTokenSigner(t)
	other := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	_, err := resolver.Resolve(context.Background(), other.mint(t))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveMissingSubject(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	token := signer.mint(t, func(b *jwt.Builder) {
		b.Subject("")
	})
	_, err := resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveAudience(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "hello-api", signer.pubSet)

	token := signer.mint(t, func(b *jwt.Builder) {
		b.Audience([]string{"hello-api"})
	})
	_, err := resolver.Resolve(context.Background(), token)
	assert.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), signer.mint(t))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolverAgainstServedJWKS(t *testing.T) {
	signer := newTokenSigner(t)
	jwksJSON, err := json.Marshal(signer.pubSet)
	require.NoError(t, err)

	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(jwksJSON)
	}))
	defer jwksServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver, err := NewResolver(ctx, testIssuer, "", jwksServer.URL)
	require.NoError(t, err)

	identity, err := resolver.Resolve(ctx, signer.mint(t))
	require.NoError(t, err)
	assert.Equal(t, "user_abc", identity.UserID)
}

func TestRequireMiddleware(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	var captured *Identity
	handler := Require(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signer.mint(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user_abc", captured.UserID)
}

func TestRequireMiddlewareRejections(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	handler := Require(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// no header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalMiddleware(t *testing.T) {
	signer := newTokenSigner(t)
	resolver := NewResolverWithKeySet(testIssuer, "", signer.pubSet)

	var captured *Identity
	var had bool
	handler := Optional(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, had = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// anonymous passes through
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, had)

	// invalid token treated as anonymous
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer junk")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, had)

	// valid token attaches identity
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signer.mint(t))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user_abc", captured.UserID)
}
