// Package commands implements moviebox-configure, which edits the runtime
// settings the API server reloads from the database.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/moviebox/internal/config"
	"github.com/benvon/moviebox/internal/database"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the configure command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "moviebox-configure",
		Short:         "Configuration tool for the moviebox API",
		Long:          "Manage Google sign-in, CORS origins and rate limits stored in the database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewOIDCCmd())
	root.AddCommand(NewListCmd())
	root.AddCommand(NewTestCmd())
	root.AddCommand(NewCorsCmd())
	root.AddCommand(NewRatelimitCmd())
	return root
}

// withDB loads DATABASE_URL, applies the schema and hands the connection to fn
func withDB(ctx context.Context, fn func(db *database.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return fn(db)
}
