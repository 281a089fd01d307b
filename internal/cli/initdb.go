package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/store"
)

// InitDBOptions holds flags for the init-db command.
type InitDBOptions struct {
	*RootOptions
	Database string
	Force    bool
}

// initDBResult is the JSON payload of a completed init-db.
type initDBResult struct {
	Path    string `json:"path"`
	Created bool   `json:"created"`
	Removed bool   `json:"removed,omitempty"`
}

// NewInitDBCommand creates the init-db command.
func NewInitDBCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitDBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Initialize the event log database",
		Long: `Create the SQLite database with the event log and projection schema.

An existing database is left alone unless --force is given, in which case
it is removed and recreated empty.

Examples:
  feedsim init-db --db ./sim.db
  feedsim init-db --db ./sim.db --force`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitDB(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.DBPath, "path to SQLite database")

	cmd.Flags().BoolVar(&opts.Force, "force", false, "remove an existing database first")

	return cmd
}

func runInitDB(opts *InitDBOptions, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	result := initDBResult{Path: opts.Database}

	if _, err := os.Stat(opts.Database); err == nil {
		if !opts.Force {
			if opts.Format == "json" {
				formatter := &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
				return formatter.Error("E_EXISTS", "database already exists", opts.Database)
			}
			fmt.Fprintf(w, "Database already exists: %s\n", opts.Database)
			fmt.Fprintln(w, "Use --force to recreate")
			return nil
		}
		if err := os.Remove(opts.Database); err != nil {
			return WrapExitError(ExitCommandError, "failed to remove existing database", err)
		}
		result.Removed = true
		if opts.Format != "json" {
			fmt.Fprintf(w, "Removed existing database: %s\n", opts.Database)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize database", err)
	}
	if err := st.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close database", err)
	}
	result.Created = true

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
		return formatter.Success(result)
	}
	fmt.Fprintf(w, "Initialized database: %s\n", opts.Database)
	return nil
}
