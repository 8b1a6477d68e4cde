package commands

import (
	"fmt"

	"github.com/benvon/moviebox/internal/database"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured OIDC providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(db *database.DB) error {
				configs, err := database.NewOIDCConfigRepository(db).GetAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list OIDC configs: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(configs) == 0 {
					fmt.Fprintln(out, "No OIDC providers configured")
					return nil
				}
				fmt.Fprintln(out, "Configured OIDC providers:")
				for _, c := range configs {
					fmt.Fprintf(out, "  - Provider: %s\n", c.Provider)
					fmt.Fprintf(out, "    Issuer: %s\n", c.Issuer)
					fmt.Fprintf(out, "    Client ID: %s\n", c.ClientID)
					fmt.Fprintf(out, "    Client secret set: %v\n", c.Secret() != "")
					fmt.Fprintf(out, "    Redirect URI: %s\n", c.RedirectURI)
					fmt.Fprintf(out, "    JWKS URL: %s\n\n", c.JWKS())
				}
				return nil
			})
		},
	}
}
