package models

import (
	"time"

	"github.com/google/uuid"
)

// GoogleIssuer is the issuer Google stamps on its ID tokens
const GoogleIssuer = "https://accounts.google.com"

// GoogleJWKSURL is where Google publishes its token signing keys
const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// OIDCConfig represents a federated sign-in provider stored in the database.
// Environment settings (GOOGLE_CLIENT_ID, ...) take precedence when present.
type OIDCConfig struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	Issuer       string    `json:"issuer"`
	ClientID     string    `json:"client_id"`
	ClientSecret *string   `json:"client_secret,omitempty"`
	RedirectURI  string    `json:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JWKS returns the key set URL, defaulting to Google's when the issuer is Google
func (c *OIDCConfig) JWKS() string {
	if c.JWKSUrl != nil && *c.JWKSUrl != "" {
		return *c.JWKSUrl
	}
	if c.Issuer == GoogleIssuer || c.Issuer == "accounts.google.com" {
		return GoogleJWKSURL
	}
	return c.Issuer + "/.well-known/jwks.json"
}

// Secret returns the client secret or "" for public clients
func (c *OIDCConfig) Secret() string {
	if c.ClientSecret == nil {
		return ""
	}
	return *c.ClientSecret
}
