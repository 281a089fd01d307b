// Package cli wires the feedsim commands: store lifecycle, simulation
// runs, timeline serves, replay verification and log inspection.
//
// Commands return ExitError to signal their exit code; the main package
// maps everything else to ExitFailure.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/platform/config"
	"github.com/attentionlab/feedsim/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Env carries environment-derived defaults; flags override them.
	Env config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the feedsim CLI. The
// given config seeds flag defaults; unset flags keep what the
// environment provided.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{Env: cfg}

	cmd := &cobra.Command{
		Use:   "feedsim",
		Short: "feedsim - a simulated social feed on an event-sourced core",
		Long: `A deterministic social feed simulator built on an append-only event log.

Every state change is an event. Projections, timelines and KPIs are folds
over the log, so any run can be replayed and verified byte for byte.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			// Engine operations log at Info; keep them out of
			// non-verbose runs.
			logLevel := slog.LevelWarn
			if opts.Verbose {
				logLevel = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewInitDBCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewTimelineCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewKPIsCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openExistingStore opens a database that init-db already created.
// Opening would create an empty one, so missing paths are refused.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("database not found: %s (run 'init-db' first)", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
