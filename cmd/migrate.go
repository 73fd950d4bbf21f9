package cmd

import (
	"context"
	"fmt"
	"time"

	"newsportal/storage"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Minute

// openDatabase opens the configured SQLite database without logging
func openDatabase() (*storage.SQLite, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := storage.NewSQLite(cfg.Database.Path, zap.NewNop().Sugar())
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	return db, nil
}

// newMigrateCmd creates the 'migrate' subcommand
func newMigrateCmd() *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  "Apply every pending schema migration to the configured SQLite database and report the resulting version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			var s *spinner.Spinner
			if showProgress && !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " Applying migrations..."
				s.Start()
			}

			version, err := db.Migrate(ctx)

			if s != nil {
				s.Stop()
			}

			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			applied, err := db.AppliedMigrations(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(out, map[string]interface{}{
					"version":    version,
					"migrations": applied,
				})
			}

			renderMigrations(out, applied)
			successColor.Fprintf(out, "✓ Schema at version %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress indicator")

	return cmd
}

// newHistoryCmd creates the 'history' subcommand
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent successful assemblies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			boots, err := db.LastBoots(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to read boot history (run 'newsportal migrate' first): %w", err)
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), boots)
			}
			renderBoots(cmd.OutOrStdout(), boots)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries to show")

	return cmd
}
