package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// tokengen mints RS256 bearer tokens against a local RSA key, carrying the
// provider-style profile claims the API reads. Point AUTH_JWKS_URL at a
// served copy of the emitted JWKS to exercise the API without the hosted
// identity provider.
func main() {
	keyFile := flag.String("key", "dev-jwt.pem", "RSA private key PEM file (created if missing)")
	keyID := flag.String("kid", "dev-key-1", "Key ID written to the token header and JWKS")
	issuer := flag.String("issuer", "https://clerk.openclaw.dev", "Issuer of the token")
	audience := flag.String("audience", "", "Audience of the token (omitted when empty)")
	subject := flag.String("subject", "user_dev_1", "Subject of the token (provider user id)")
	email := flag.String("email", "dev@openclaw.dev", "email claim")
	givenName := flag.String("given-name", "Dev", "first_name claim")
	familyName := flag.String("family-name", "User", "last_name claim")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	extraClaimsJSON := flag.String("claims", "{}", "Extra claims in JSON format")
	jwksOut := flag.String("jwks", "", "Also write the public JWKS to this file")
	flag.Parse()

	key, err := loadOrCreateKey(*keyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var extraClaims map[string]interface{}
	if err := json.Unmarshal([]byte(*extraClaimsJSON), &extraClaims); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to parse extra claims JSON: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":        *issuer,
		"sub":        *subject,
		"iat":        now.Unix(),
		"exp":        now.Add(*expiry).Unix(),
		"email":      *email,
		"first_name": *givenName,
		"last_name":  *familyName,
	}
	if *audience != "" {
		claims["aud"] = *audience
	}
	for name, value := range extraClaims {
		claims[name] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = *keyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	if *jwksOut != "" {
		if err := writeJWKS(*jwksOut, key, *keyID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to write JWKS: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println(tokenStr)
}

func loadOrCreateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return createKey(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}
	return key, nil
}

func createKey(path string) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Generated new RSA key at %s\n", path)
	return key, nil
}

func writeJWKS(path string, key *rsa.PrivateKey, keyID string) error {
	pub, err := jwk.FromRaw(key.Public())
	if err != nil {
		return err
	}
	if err := pub.Set(jwk.KeyIDKey, keyID); err != nil {
		return err
	}
	if err := pub.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		return err
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
