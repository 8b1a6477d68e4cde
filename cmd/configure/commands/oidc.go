package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/moviebox/internal/database"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/services/oidc"
	"github.com/spf13/cobra"
)

// NewOIDCCmd creates the OIDC configuration command
func NewOIDCCmd() *cobra.Command {
	var issuer, clientID, clientSecret, redirectURI, jwksURL string
	var remove bool

	cmd := &cobra.Command{
		Use:   "oidc [provider]",
		Short: "Configure a sign-in provider",
		Long: "Store the OAuth client used for Google sign-in. Environment settings " +
			"(GOOGLE_CLIENT_ID, ...) take precedence over the stored values.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := oidc.ProviderGoogle
			if len(args) == 1 {
				provider = strings.ToLower(strings.TrimSpace(args[0]))
			}
			if provider == "" {
				return errors.New("provider name cannot be empty")
			}

			if remove {
				return withDB(cmd.Context(), func(db *database.DB) error {
					if err := database.NewOIDCConfigRepository(db).Delete(cmd.Context(), provider); err != nil {
						return fmt.Errorf("delete OIDC config: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted OIDC configuration for provider: %s\n", provider)
					return nil
				})
			}

			if clientID == "" || redirectURI == "" {
				return errors.New("required flags: --client-id, --redirect-uri (--client-secret is optional for public clients)")
			}
			c := &models.OIDCConfig{
				Provider:    provider,
				Issuer:      strings.TrimRight(issuer, "/"),
				ClientID:    clientID,
				RedirectURI: redirectURI,
			}
			if clientSecret != "" {
				c.ClientSecret = &clientSecret
			}
			if jwksURL != "" {
				c.JWKSUrl = &jwksURL
			}

			return withDB(cmd.Context(), func(db *database.DB) error {
				if err := database.NewOIDCConfigRepository(db).Upsert(cmd.Context(), c); err != nil {
					return fmt.Errorf("save OIDC config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved OIDC configuration for provider: %s (keys from %s)\n", provider, c.JWKS())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&issuer, "issuer", models.GoogleIssuer, "OIDC issuer URL")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret (optional for public clients)")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "OAuth2 redirect URI, normally <BASE_URL>/api/v1/auth/google/callback (required)")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "Key set URL (derived from the issuer when empty)")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the stored configuration instead")

	return cmd
}
