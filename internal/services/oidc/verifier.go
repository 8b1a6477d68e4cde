package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/moviebox/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidIDToken is returned for tokens that fail signature, issuer, audience or expiry checks
var ErrInvalidIDToken = errors.New("invalid id token")

// Verifier checks ID tokens issued by one provider for one client
type Verifier struct {
	jwksManager *JWKSManager
	jwksURL     string
	issuers     []string
	audience    string
}

// NewVerifier creates an ID token verifier. Google issues tokens under two
// issuer spellings, both are accepted when issuer is Google's.
func NewVerifier(jwksManager *JWKSManager, cfg *models.OIDCConfig) *Verifier {
	issuers := []string{cfg.Issuer}
	if cfg.Issuer == models.GoogleIssuer {
		issuers = append(issuers, strings.TrimPrefix(models.GoogleIssuer, "https://"))
	}
	return &Verifier{
		jwksManager: jwksManager,
		jwksURL:     cfg.JWKS(),
		issuers:     issuers,
		audience:    cfg.ClientID,
	}
}

// Verify verifies a JWT token and extracts claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.IDTokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidIDToken)
	}

	keys, err := v.keys(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	if !v.issuerAllowed(token.Issuer()) {
		return nil, fmt.Errorf("%w: issuer mismatch: got %q", ErrInvalidIDToken, token.Issuer())
	}
	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}

	claims := &models.IDTokenClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	claims.Email = stringClaim(token, "email")
	claims.Name = stringClaim(token, "name")
	claims.Picture = stringClaim(token, "picture")
	claims.EmailVerified = boolClaim(token, "email_verified")

	return claims, nil
}

// keys returns the provider's key set, refetching once when the token names a
// key ID the cached set lacks (the provider rotated its keys)
func (v *Verifier) keys(ctx context.Context, tokenString string) (jwk.Set, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}
	kid := keyID(tokenString)
	if kid == "" {
		return keys, nil
	}
	if _, ok := keys.LookupKeyID(kid); ok {
		return keys, nil
	}
	v.jwksManager.Invalidate(v.jwksURL)
	return v.jwksManager.GetJWKS(ctx, v.jwksURL)
}

// keyID reads the kid header without verifying the signature
func keyID(tokenString string) string {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil || len(msg.Signatures()) == 0 {
		return ""
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID()
}

func (v *Verifier) issuerAllowed(iss string) bool {
	for _, allowed := range v.issuers {
		if iss == allowed {
			return true
		}
	}
	return false
}

func stringClaim(token jwt.Token, name string) string {
	if raw, ok := token.Get(name); ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}

// boolClaim reads a boolean claim; some providers encode it as "true"
func boolClaim(token jwt.Token, name string) bool {
	raw, ok := token.Get(name)
	if !ok {
		return false
	}
	switch b := raw.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return false
	}
}
