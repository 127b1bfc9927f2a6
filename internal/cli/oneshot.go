package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/app"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the spreadsheet export once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
				if err := a.Export(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "export written")
				return nil
			})
		},
	}
}

// NewCloseDayCommand creates the close-day command.
func NewCloseDayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close-day",
		Short: "Sign out everyone still inside, now",
		Long: `Append an automatic exit for every user whose latest event is an entry.
Normally the scheduler does this at the configured cutoff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
				res, err := a.AutoClose.RunDailyClose(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: signed out %d user(s)\n", res.Date, len(res.Closed))
				return nil
			})
		},
	}
}
