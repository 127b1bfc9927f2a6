// Package cli wires the rollcall commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/app"
	"github.com/BrandonDHaskell/rollcall/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool

	// Load replaces config.Load (for testing).
	Load func() (config.Config, error)
}

// NewRootCommand creates the root command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Load: config.Load}

	serve := NewServeCommand(opts)

	cmd := &cobra.Command{
		Use:   "rollcall",
		Short: "Card-tap attendance ledger",
		Long: `rollcall records entries and exits from contactless card taps, ranks
time on site by week, month and all time, and signs out anyone still
inside at the end of the day.

Configuration comes from ROLLCALL_* environment variables, a .env file and
an optional rollcall.yaml in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(serve)
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewCloseDayCommand(opts))

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// withApp loads config, builds the app and hands it to fn with notification
// delivery running. The reader is never opened for one-shot commands.
func withApp(ctx context.Context, opts *RootOptions, fn func(context.Context, *app.App, *zap.Logger) error) error {
	cfg, err := opts.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Reader.Enabled = false

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	return a.RunOnce(ctx, func(ctx context.Context) error { return fn(ctx, a, logger) })
}
