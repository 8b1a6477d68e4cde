package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/moviebox/internal/database"
	"github.com/benvon/moviebox/internal/models"
)

// ProviderGoogle is the provider name of Google sign-in rows
const ProviderGoogle = "google"

// ErrNotConfigured is returned when no Google client is configured
var ErrNotConfigured = errors.New("google sign-in is not configured")

// Provider resolves the Google client configuration, preferring the environment over the database
type Provider struct {
	repo database.OIDCConfigStore
	env  *models.OIDCConfig
}

// NewProvider creates a provider. env may be nil when GOOGLE_CLIENT_ID is unset; repo may be nil without a database.
func NewProvider(repo database.OIDCConfigStore, env *models.OIDCConfig) *Provider {
	return &Provider{repo: repo, env: env}
}

// EnvConfig builds the Google config from environment values, or nil when clientID is empty
func EnvConfig(clientID, clientSecret, redirectURL string) *models.OIDCConfig {
	if clientID == "" {
		return nil
	}
	cfg := &models.OIDCConfig{
		Provider:    ProviderGoogle,
		Issuer:      models.GoogleIssuer,
		ClientID:    clientID,
		RedirectURI: redirectURL,
	}
	if clientSecret != "" {
		cfg.ClientSecret = &clientSecret
	}
	return cfg
}

// Google returns the active Google configuration
func (p *Provider) Google(ctx context.Context) (*models.OIDCConfig, error) {
	if p.env != nil {
		return p.env, nil
	}
	if p.repo == nil {
		return nil, ErrNotConfigured
	}
	cfg, err := p.repo.GetByProvider(ctx, ProviderGoogle)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = models.GoogleIssuer
	}
	return cfg, nil
}
