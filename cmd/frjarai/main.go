// FRJAR.ai: construction material price estimation for the Saudi market.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/frjar/frjarai/internal/app"
	"github.com/frjar/frjarai/internal/config"
	"github.com/frjar/frjarai/internal/infra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "frjarai",
		Short: "FRJAR.ai: construction material price estimation",
		Long: `FRJAR.ai estimates today's Saudi market price of construction
materials through an LLM provider chain, a local regression model and a
deterministic fallback, and verifies product lists and yearly forecasts.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	root.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	root.PersistentFlags().String("env-file", "", "dotenv file to load before the config (default: ./.env when present)")
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newStatusCmd(),
		newEstimateCmd(),
		newVerifyCmd(),
		newForecastCmd(),
		newSuppliersCmd(),
		newChatCmd(),
		newServeCmd(),
	)
	return root
}

// setup loads the dotenv file, then the config, then installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	var err error
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	logger = infra.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.SetDefault(logger)
	return nil
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing storage", "err", err)
		}
	}()
	return fn(ctx, a)
}

// --- Version Command ---

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// The version never needs config or credentials.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "FRJAR.ai %s\n", version)
			fmt.Fprintf(out, "  commit:  %s\n", commit)
			fmt.Fprintf(out, "  built:   %s\n", date)
		},
	}
}
