package oidc

import (
	"context"
	"net/http"
	"sync"

	"github.com/benvon/moviebox/internal/models"
)

// Google performs Google sign-in with the configuration resolved by a Provider.
// Verifier and code-flow client are rebuilt when the client id changes.
type Google struct {
	provider *Provider
	jwks     *JWKSManager

	mu       sync.Mutex
	clientID string
	verifier *Verifier
	client   *Client
}

// NewGoogle creates a Google sign-in helper
func NewGoogle(provider *Provider, httpClient *http.Client) *Google {
	return &Google{provider: provider, jwks: NewJWKSManager(httpClient)}
}

func (g *Google) current(ctx context.Context) (*Verifier, *Client, error) {
	cfg, err := g.provider.Google(ctx)
	if err != nil {
		return nil, nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifier == nil || g.clientID != cfg.ClientID {
		g.clientID = cfg.ClientID
		g.verifier = NewVerifier(g.jwks, cfg)
		g.client = NewClient(cfg)
	}
	return g.verifier, g.client, nil
}

// VerifyIDToken verifies a Google ID token for the configured client
func (g *Google) VerifyIDToken(ctx context.Context, idToken string) (*models.IDTokenClaims, error) {
	v, _, err := g.current(ctx)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, idToken)
}

// AuthCodeURL returns Google's consent URL for state
func (g *Google) AuthCodeURL(ctx context.Context, state string) (string, error) {
	_, c, err := g.current(ctx)
	if err != nil {
		return "", err
	}
	return c.AuthCodeURL(state), nil
}

// ExchangeCode trades an authorization code for an ID token
func (g *Google) ExchangeCode(ctx context.Context, code string) (string, error) {
	_, c, err := g.current(ctx)
	if err != nil {
		return "", err
	}
	return c.ExchangeCode(ctx, code)
}
