package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Out      string
}

// exportResult is the JSON payload of a completed export.
type exportResult struct {
	Events int    `json:"events"`
	Path   string `json:"path"`
}

// exportEvent is one JSONL line. Payload carries the canonical bytes
// exactly as stored, so identical logs export to identical files.
type exportEvent struct {
	Seq            int64           `json:"seq"`
	EventID        string          `json:"event_id"`
	Kind           string          `json:"kind"`
	Tick           int64           `json:"tick"`
	Actor          string          `json:"actor_id,omitempty"`
	OpID           string          `json:"op_id,omitempty"`
	TimelineID     string          `json:"timeline_id,omitempty"`
	RankingVersion string          `json:"ranking_version,omitempty"`
	ModelVersion   string          `json:"model_version,omitempty"`
	PromptVersion  string          `json:"prompt_version,omitempty"`
	Status         string          `json:"status,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Seed           *int64          `json:"seed,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Payload        json.RawMessage `json:"payload"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the event log as JSONL",
		Long: `Write every event in the log to a JSONL file, one event per line in
sequence order. Payloads keep their canonical stored encoding.

Examples:
  feedsim export --db ./sim.db --out events.jsonl`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.DBPath, "path to SQLite database")
	cmd.Flags().StringVar(&opts.Out, "out", "", "output file path (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	evs, err := st.Queries().ListEvents(ctx, store.EventFilter{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list events", err)
	}

	out, err := os.Create(opts.Out)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output file", err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetEscapeHTML(false)
	for _, ev := range evs {
		payload, err := event.MarshalPayload(ev.Payload)
		if err != nil {
			out.Close()
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to encode event %d", ev.Seq), err)
		}
		line := exportEvent{
			Seq:            ev.Seq,
			EventID:        ev.ID,
			Kind:           string(ev.Kind),
			Tick:           ev.Tick,
			Actor:          ev.Actor,
			OpID:           ev.OpID,
			TimelineID:     ev.TimelineID,
			RankingVersion: ev.RankingVersion,
			ModelVersion:   ev.ModelVersion,
			PromptVersion:  ev.PromptVersion,
			Status:         string(ev.Status),
			Reason:         ev.Reason,
			Seed:           ev.Seed,
			CreatedAt:      ev.CreatedAt,
			Payload:        payload,
		}
		if err := encoder.Encode(line); err != nil {
			out.Close()
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to write event %d", ev.Seq), err)
		}
	}
	if err := out.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close output file", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
		return formatter.Success(exportResult{Events: len(evs), Path: opts.Out})
	}
	fmt.Fprintf(w, "Exported %d events to %s\n", len(evs), opts.Out)
	return nil
}
