package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/kpi"
	"github.com/attentionlab/feedsim/internal/projection"
)

// KPIsOptions holds flags for the kpis command.
type KPIsOptions struct {
	*RootOptions
	Database  string
	OverTicks bool
}

// kpisResult is the kpis command payload: the report, plus the
// per-tick attention series when requested.
type kpisResult struct {
	kpi.Report
	OverTicks []kpi.TickPoint `json:"over_ticks,omitempty"`
}

// NewKPIsCommand creates the kpis command.
func NewKPIsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KPIsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Compute and display run KPIs",
		Long: `Compute run KPIs over the projected state.

Reports table counts, the accepted/rejected action breakdown with rejection
reasons, attention concentration (Gini over per-post and per-author
engagement) and topic entropy. With --over-ticks the report also carries
the attention Gini at every tick of the run.

Examples:
  feedsim kpis --db ./sim.db
  feedsim kpis --db ./sim.db --over-ticks
  feedsim kpis --db ./sim.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKPIs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.DBPath, "path to SQLite database")
	cmd.Flags().BoolVar(&opts.OverTicks, "over-ticks", false, "include the per-tick attention series")

	return cmd
}

func runKPIs(opts *KPIsOptions, cmd *cobra.Command) error {
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

	q := st.Queries()
	snap, err := projection.Snapshot(ctx, q)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to snapshot projections", err)
	}
	outcomes, err := q.ActionOutcomes(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read action outcomes", err)
	}
	result := kpisResult{Report: kpi.Compute(snap, outcomes)}
	if opts.OverTicks {
		result.OverTicks = kpi.OverTicks(snap)
	}
	report := result.Report

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
		return formatter.Success(result)
	}

	fmt.Fprintln(w, "KPIs:")
	fmt.Fprintf(w, "  Posts: %d\n", report.Counts.Posts)
	fmt.Fprintf(w, "  Users: %d\n", report.Counts.Users)
	fmt.Fprintf(w, "  Votes: %d\n", report.Counts.Votes)
	fmt.Fprintf(w, "  Comments: %d\n", report.Counts.Comments)
	fmt.Fprintf(w, "  Follows: %d\n", report.Counts.Follows)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Actions:")
	total := report.Actions.Accepted + report.Actions.Rejected
	if total > 0 {
		accPct := 100 * float64(report.Actions.Accepted) / float64(total)
		fmt.Fprintf(w, "  Accepted: %d (%.1f%%)\n", report.Actions.Accepted, accPct)
		fmt.Fprintf(w, "  Rejected: %d (%.1f%%)\n", report.Actions.Rejected, 100-accPct)
		if len(report.Actions.RejectionReasons) > 0 {
			fmt.Fprintln(w, "  Rejection reasons:")
			for _, reason := range sortedReasons(report.Actions.RejectionReasons) {
				fmt.Fprintf(w, "    %s: %d\n", reason, report.Actions.RejectionReasons[reason])
			}
		}
	} else {
		fmt.Fprintln(w, "  No actions recorded")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Attention Gini: %.4f\n", report.AttentionGini)
	fmt.Fprintf(w, "Author Attention Gini: %.4f\n", report.AuthorAttentionGini)
	fmt.Fprintf(w, "Topic Entropy: %.4f bits\n", report.TopicEntropy)

	if opts.OverTicks {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Attention over ticks:")
		for _, p := range result.OverTicks {
			fmt.Fprintf(w, "  tick %d: gini %.4f (%d posts)\n", p.Tick, p.AttentionGini, p.PostCount)
		}
	}
	return nil
}

// sortedReasons returns rejection reasons in stable order for display.
func sortedReasons(reasons map[string]int64) []string {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
