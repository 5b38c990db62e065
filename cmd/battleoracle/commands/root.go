package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/battleoracle/internal/app"
	"github.com/alanyoungcy/battleoracle/internal/config"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "battleoracle",
		Short:         "Battle detection and market settlement oracle for Pokemon streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", configPath, err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			// Long-running servers log to stdout; one-shot commands keep
			// stdout for their result.
			var w io.Writer = os.Stderr
			if cmd.Name() == "serve" {
				w = os.Stdout
			}
			logger = newLogger(w, cfg.LogLevel)
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	root.AddCommand(
		serveCmd(),
		monitorCmd(),
		settleCmd(),
		discoverCmd(),
		detectCmd(),
		resolveCmd(),
		configCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l}))
}

// openApp validates the configuration and wires the services for a one-shot
// command. The caller must Close the returned App.
func openApp(ctx context.Context, dryRun bool) (*app.App, *app.Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	a := app.New(cfg, logger)
	svc, err := a.Open(ctx, dryRun)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, svc, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
