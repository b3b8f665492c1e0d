package config

import (
	"fmt"
	"strings"
)

// AuthConfig holds identity provider settings for bearer token verification.
// Tokens are verified against the provider's published JWKS; the JWKS URL is
// derived from the issuer unless set explicitly.
type AuthConfig struct {
	Issuer   string `env:"AUTH_JWT_ISSUER" env-default:"https://clerk.openclaw.dev"`
	Audience string `env:"AUTH_JWT_AUDIENCE" env-default:""`
	JwksURL  string `env:"AUTH_JWKS_URL" env-default:""`

	// DefaultRole is assigned to users created by provider sync when a role
	// with this name exists.
	DefaultRole string `env:"AUTH_DEFAULT_ROLE" env-default:"user"`

	// WebhookSecret enables signature verification of provider webhook
	// deliveries when non-empty.
	WebhookSecret string `env:"AUTH_WEBHOOK_SECRET" env-default:""`
}

// ResolveJwksURL returns the JWKS endpoint, deriving the well-known path from
// the issuer when no explicit URL is configured.
func (a AuthConfig) ResolveJwksURL() string {
	if a.JwksURL != "" {
		return a.JwksURL
	}
	return strings.TrimSuffix(a.Issuer, "/") + "/.well-known/jwks.json"
}

// Validate checks that the config is usable for token verification
func (a AuthConfig) Validate() error {
	if a.Issuer == "" {
		return fmt.Errorf("AUTH_JWT_ISSUER is required")
	}
	return nil
}
