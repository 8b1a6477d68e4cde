package commands

import (
	"fmt"

	"github.com/benvon/moviebox/internal/database"
	"github.com/benvon/moviebox/internal/models"
	"github.com/spf13/cobra"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update per-scope rates (e.g. 5-S, 100-M). Scopes: default (API) and auth (login, register, password reset).",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored rate limits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(db *database.DB) error {
				configs, err := database.NewRatelimitConfigRepository(db).GetAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("list ratelimit configs: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(configs) == 0 {
					fmt.Fprintln(out, "No rate limits in database; server defaults apply. Use 'ratelimit set' to add one.")
					return nil
				}
				fmt.Fprintln(out, "Rate limits:")
				for _, c := range configs {
					fmt.Fprintf(out, "  %-8s %s (updated %s)\n", c.ConfigKey, c.Rate, c.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate, scope string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the rate of one scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scope != database.RatelimitScopeAPI && scope != database.RatelimitScopeAuth {
				return fmt.Errorf("--scope must be %q or %q", database.RatelimitScopeAPI, database.RatelimitScopeAuth)
			}
			parsed, err := database.ValidateRate(rate)
			if err != nil {
				return fmt.Errorf("--rate: %w", err)
			}
			return withDB(cmd.Context(), func(db *database.DB) error {
				c := &models.RatelimitConfig{ConfigKey: scope, Rate: parsed}
				if err := database.NewRatelimitConfigRepository(db).Set(cmd.Context(), c); err != nil {
					return fmt.Errorf("set ratelimit config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit for %s set to %s.\n", scope, parsed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	cmd.Flags().StringVar(&scope, "scope", database.RatelimitScopeAPI, "Limiter scope: default or auth")
	return cmd
}
