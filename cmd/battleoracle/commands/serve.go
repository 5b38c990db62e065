package commands

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/battleoracle/internal/app"
)

func serveCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the oracle in the configured mode (monitor, server or full)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "" {
				cfg.Mode = mode
			}
			if err := cfg.Validate(); err != nil {
				logger.Error("invalid configuration", slog.String("error", err.Error()))
				return err
			}

			logger.Info("battle oracle starting",
				slog.String("mode", cfg.Mode),
				slog.String("config", configPath),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.New(cfg, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("application exited with error", slog.String("error", err.Error()))
				return err
			}
			logger.Info("battle oracle stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "override mode (monitor, server, full)")
	return cmd
}
