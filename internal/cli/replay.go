package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Verify   bool
}

// replayResult holds the replay outcome for output.
type replayResult struct {
	Events      int64  `json:"events"`
	ContentHash string `json:"content_hash"`
	LiveHash    string `json:"live_hash,omitempty"`
	Match       *bool  `json:"match,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild projections from the event log",
		Long: `Rebuild all projections by re-folding the event log from the start.

The fold is the same one the live path runs, so a healthy log rebuilds to
exactly the state it produced the first time. With --verify the content
hash of the live projections is captured first and compared against the
rebuilt state; a mismatch means the log and projections have diverged.

Exit codes:
  0 - Replay completed (and hashes match, with --verify)
  1 - Verification failed (hashes differ)
  2 - Command error (database not found, fold error, etc.)

Examples:
  feedsim replay --db ./sim.db
  feedsim replay --db ./sim.db --verify
  feedsim replay --db ./sim.db --verify --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.DBPath, "path to SQLite database")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "compare the rebuilt state against the live content hash")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(st)

	var report *engine.ReplayReport
	if opts.Verify {
		report, err = eng.VerifyReplay(ctx)
	} else {
		report, err = eng.Replay(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := replayResult{
		Events:      report.Events,
		ContentHash: report.Hash,
	}
	if opts.Verify {
		result.LiveHash = report.LiveHash
		result.Match = &report.Match
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result replayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	failed := result.Match != nil && !*result.Match
	if failed {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if failed {
		// Verification failure = exit code 1
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result replayResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replayed %d events\n", result.Events)

	if result.Match == nil {
		fmt.Fprintf(w, "Content hash: %s...\n", shortHash(result.ContentHash))
		fmt.Fprintln(w, "Projections rebuilt")
		return nil
	}

	fmt.Fprintf(w, "Hash before: %s...\n", shortHash(result.LiveHash))
	fmt.Fprintf(w, "Hash after:  %s...\n", shortHash(result.ContentHash))

	if *result.Match {
		fmt.Fprintln(w, "Projections unchanged (deterministic)")
		return nil
	}

	fmt.Fprintln(w, "Replay diverged from the recorded state!")
	// Verification failure = exit code 1
	return NewExitError(ExitFailure, "replay verification failed")
}

// shortHash trims a content hash for display.
func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
