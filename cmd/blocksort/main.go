// Command blocksort sorts, verifies and compares files of fixed-width
// binary records with a bounded amount of memory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:   "blocksort",
		Short: "External sort for fixed-width binary records.",
		Long: `blocksort sorts files of fixed-width binary records that do not fit in
memory. Records are cut into sorted runs on disk and merged back together,
never using more memory than configured.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error.")

	rootCmd.AddCommand(newSortCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newDiffCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("blocksort failed", "error", err)
		stop()
		os.Exit(1)
	}
}
