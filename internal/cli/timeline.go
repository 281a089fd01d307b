package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attentionlab/feedsim/internal/engine"
	"github.com/attentionlab/feedsim/internal/ranking"
	"github.com/attentionlab/feedsim/internal/timeline"
)

// TimelineOptions holds flags for the timeline command.
type TimelineOptions struct {
	*RootOptions
	Database string
	User     string
	K        int64
	Ranking  string
	Seed     int64
}

// timelineItemView is one ranked entry in the JSON payload.
type timelineItemView struct {
	Position int64   `json:"position"`
	PostID   string  `json:"post_id"`
	AuthorID string  `json:"author_id"`
	Score    float64 `json:"score"`
	UpVotes  int64   `json:"up_votes"`
	Comments int64   `json:"comments"`
	AgeTicks int64   `json:"age_ticks"`
}

// timelineView is the JSON payload of a served timeline.
type timelineView struct {
	TimelineID string             `json:"timeline_id"`
	ActorID    string             `json:"actor_id"`
	Tick       int64              `json:"tick"`
	Algorithm  string             `json:"algorithm"`
	K          int64              `json:"k"`
	Seed       int64              `json:"seed"`
	Items      []timelineItemView `json:"items"`
	EventID    string             `json:"event_id"`
	Seq        int64              `json:"seq"`
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Serve one ranked timeline",
		Long: `Serve a ranked timeline for a user and print it.

The serve is a real one: it records the exposure set and appends a
timeline_served event, exactly as a simulated agent would see.

Examples:
  feedsim timeline --db ./sim.db --user agent_0000
  feedsim timeline --db ./sim.db --user agent_0000 --ranking top --k 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.DBPath, "path to SQLite database")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id to serve (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().Int64Var(&opts.K, "k", 10, "timeline size (max items)")
	cmd.Flags().StringVar(&opts.Ranking, "ranking", "hot", "ranking algorithm (new|top|hot)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "ranking seed")

	return cmd
}

func runTimeline(opts *TimelineOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	algo := ranking.Algorithm(opts.Ranking)
	if !algo.Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown ranking algorithm %q (use new, top or hot)", opts.Ranking))
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(st)
	if err := eng.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	tl, err := eng.ServeTimeline(ctx, timeline.Request{
		ActorID:   opts.User,
		K:         opts.K,
		Algorithm: algo,
		Seed:      opts.Seed,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to serve timeline", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
		return formatter.Success(timelineToView(tl))
	}

	fmt.Fprintf(w, "Timeline for %s (tick %d, %s, k=%d):\n", tl.ActorID, tl.Tick, tl.Algorithm, tl.K)
	if len(tl.Items) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return nil
	}
	for i, item := range tl.Items {
		fmt.Fprintf(w, "  %2d. %s by %s score=%.4f votes=%d comments=%d age=%d\n",
			i+1, item.PostID, item.AuthorID, item.Score, item.UpVotes, item.Comments, item.AgeTicks)
	}
	return nil
}

func timelineToView(tl *timeline.Timeline) timelineView {
	items := make([]timelineItemView, len(tl.Items))
	for i, item := range tl.Items {
		items[i] = timelineItemView{
			Position: int64(i + 1),
			PostID:   item.PostID,
			AuthorID: item.AuthorID,
			Score:    item.Score,
			UpVotes:  item.UpVotes,
			Comments: item.Comments,
			AgeTicks: item.AgeTicks,
		}
	}
	return timelineView{
		TimelineID: tl.TimelineID,
		ActorID:    tl.ActorID,
		Tick:       tl.Tick,
		Algorithm:  string(tl.Algorithm),
		K:          tl.K,
		Seed:       tl.Seed,
		Items:      items,
		EventID:    tl.EventID,
		Seq:        tl.Seq,
	}
}
