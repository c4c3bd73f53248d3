package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"appsuite/internal/config"
	"appsuite/internal/telemetry"
)

func rootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "suitectl",
		Short:         "Operator tooling for appsuite",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		migrateCmd(cfg),
		tokenCmd(cfg),
	)
	return cmd
}

func main() {
	cfg := config.NewConfig("")
	slog.SetDefault(telemetry.NewLogger(os.Stderr, cfg.LogLevel, "suitectl"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(cfg).ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
