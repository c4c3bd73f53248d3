package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"appsuite/internal/config"
	"appsuite/internal/store"
)

func migrateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate up|down|status|version",
		Short:     "Apply or inspect the database migrations",
		Long:      "Runs the embedded goose migrations against DATABASE_URL (or --dsn).",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := cmd.Flags().GetString("dsn")
			if err != nil {
				return fmt.Errorf("failed to get dsn flag: %w", err)
			}
			if dsn == "" {
				dsn = cfg.DatabaseURL
			}
			if err := store.Migrate(cmd.Context(), dsn, args[0]); err != nil {
				return err
			}
			slog.Info("Migration command finished", "command", args[0])
			return nil
		},
	}
	cmd.Flags().String("dsn", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	return cmd
}
