package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database string
	Kind     string
	FromSeq  int64
	Limit    int64
}

// eventView is one log row in the JSON payload.
type eventView struct {
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Tick    int64  `json:"tick"`
	Actor   string `json:"actor_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the event log",
		Long: `Show events from the append-only log in sequence order.

Without --from-seq the last --limit events are shown; with it, the window
starts at the given sequence number instead.

Examples:
  feedsim events --db ./sim.db
  feedsim events --db ./sim.db --kind action --limit 50
  feedsim events --db ./sim.db --from-seq 1 --limit 10`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.DBPath, "path to SQLite database")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by event kind")
	cmd.Flags().Int64Var(&opts.FromSeq, "from-seq", -1, "window start (defaults to the log tail)")
	cmd.Flags().Int64Var(&opts.Limit, "limit", 20, "number of events to show")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	if opts.Kind != "" && !event.Kind(opts.Kind).Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown event kind %q", opts.Kind))
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	q := st.Queries()
	fromSeq := opts.FromSeq
	if fromSeq < 0 {
		// Tail mode: window over the most recent events.
		last, err := q.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read log head", err)
		}
		fromSeq = last - opts.Limit + 1
		if fromSeq < 0 {
			fromSeq = 0
		}
	}

	evs, err := q.ListEvents(ctx, store.EventFilter{
		Kind:    event.Kind(opts.Kind),
		FromSeq: fromSeq,
		Limit:   opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list events", err)
	}

	if opts.Format == "json" {
		views := make([]eventView, len(evs))
		for i, ev := range evs {
			views[i] = eventView{
				Seq:     ev.Seq,
				Kind:    string(ev.Kind),
				Tick:    ev.Tick,
				Actor:   ev.Actor,
				Status:  string(ev.Status),
				Reason:  ev.Reason,
				Details: eventDetails(ev),
			}
		}
		formatter := &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
		return formatter.Success(views)
	}

	fmt.Fprintf(w, "%6s %-16s %5s %-12s %-10s %s\n", "Seq", "Kind", "Tick", "Actor", "Status", "Details")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, ev := range evs {
		actor := "-"
		if ev.Actor != "" {
			actor = truncate(ev.Actor, 12)
		}
		status := "-"
		if ev.Status != "" {
			status = string(ev.Status)
		}
		fmt.Fprintf(w, "%6d %-16s %5d %-12s %-10s %s\n",
			ev.Seq, ev.Kind, ev.Tick, actor, status, eventDetails(ev))
	}
	return nil
}

// eventDetails renders a one-line summary of an event payload.
func eventDetails(ev event.Event) string {
	switch p := ev.Payload.(type) {
	case event.ActionPayload:
		details := string(p.Action)
		if p.TargetID != "" {
			details += " -> " + truncate(p.TargetID, 8)
		}
		if ev.Reason != "" {
			details += fmt.Sprintf(" (%s)", ev.Reason)
		}
		return details
	case event.TimelineServedPayload:
		return fmt.Sprintf("%s k=%d items=%d", p.Algorithm, p.K, len(p.Items))
	case event.AdvanceTickPayload:
		return fmt.Sprintf("%d -> %d", p.FromTick, p.ToTick)
	case event.UserCreatedPayload:
		return p.Username
	case event.RunConfigPayload:
		return fmt.Sprintf("agents=%d ticks=%d k=%d ranking=%s seed=%d",
			p.NumAgents, p.NumTicks, p.K, p.RankingAlgorithm, p.Seed)
	case event.RunStartedPayload:
		return p.Message
	default:
		return ""
	}
}

// truncate shortens an id for the fixed-width table.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-2] + ".."
}
