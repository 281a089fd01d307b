package agent

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attentionlab/feedsim/internal/command"
	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/idgen"
	"github.com/attentionlab/feedsim/internal/timeline"
)

// recordingSink captures submitted commands and answers with respond,
// or accepts everything when respond is nil.
type recordingSink struct {
	actions []command.Action
	respond func(command.Action) *command.Result
}

func (s *recordingSink) ProcessAction(_ context.Context, act command.Action) (*command.Result, error) {
	s.actions = append(s.actions, act)
	if s.respond != nil {
		return s.respond(act), nil
	}
	return &command.Result{Status: event.StatusAccepted, EventID: "evt-" + act.OpID}, nil
}

// scriptedPlanner replays a fixed intent sequence, then idles.
type scriptedPlanner struct {
	intents []Intent
}

func (p *scriptedPlanner) Plan(context.Context, *timeline.Timeline) (Intent, error) {
	if len(p.intents) == 0 {
		return IntentIdle, nil
	}
	next := p.intents[0]
	p.intents = p.intents[1:]
	return next, nil
}

func servedTimeline(items ...timeline.Item) *timeline.Timeline {
	return &timeline.Timeline{
		TimelineID: "tl-test",
		ActorID:    "agent_0000",
		Tick:       5,
		Items:      items,
	}
}

func newTestAgent(t *testing.T, probs Probabilities, opts ...Option) *Agent {
	t.Helper()
	cfg := Config{
		AgentID:       "agent_0007",
		Username:      "user_0007",
		Seed:          7,
		Probabilities: probs,
	}
	return New(cfg, append([]Option{WithIDGenerator(idgen.NewSequential())}, opts...)...)
}

func TestAgent_Defaults(t *testing.T) {
	a := New(Config{AgentID: "agent_0001", Username: "user_0001"})

	assert.Equal(t, "agent_0001", a.ID())
	assert.Equal(t, "user_0001", a.Username())
	assert.Equal(t, DefaultMaxActionsPerTick, a.cfg.MaxActionsPerTick)
	assert.Equal(t, DefaultProbabilities(), a.cfg.Probabilities)
	assert.Same(t, a.rule, a.planner.(*Rule))
}

func TestAgent_ActSpendsFullBudget(t *testing.T) {
	a := newTestAgent(t, Probabilities{Post: 1})
	sink := &recordingSink{}

	results, err := a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)

	require.Len(t, results, DefaultMaxActionsPerTick)
	require.Len(t, sink.actions, DefaultMaxActionsPerTick)
	assert.Equal(t, "Post #1 from user_0007 at tick 5", sink.actions[0].Content)
	assert.Equal(t, "Post #3 from user_0007 at tick 5", sink.actions[2].Content)
	for _, act := range sink.actions {
		assert.Equal(t, event.ActionPost, act.Kind)
		assert.Equal(t, "agent_0007", act.Actor)
		assert.Equal(t, "tl-test", act.TimelineID)
		assert.NotEmpty(t, act.OpID)
	}

	// Each command carries a fresh op id.
	assert.NotEqual(t, sink.actions[0].OpID, sink.actions[1].OpID)
	assert.Equal(t, int64(3), a.Stats().Posts)
}

func TestAgent_EndTickRestoresBudget(t *testing.T) {
	a := newTestAgent(t, Probabilities{Post: 1})
	sink := &recordingSink{}

	_, err := a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)
	require.Len(t, sink.actions, 3)

	// Budget is spent; another turn in the same tick does nothing.
	again, err := a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)
	assert.Empty(t, again)
	require.Len(t, sink.actions, 3)

	a.EndTick()
	_, err = a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)
	assert.Len(t, sink.actions, 6)
}

func TestAgent_IdlePlannerEndsTurn(t *testing.T) {
	a := newTestAgent(t, Probabilities{}, WithPlanner(&scriptedPlanner{}))
	sink := &recordingSink{}

	results, err := a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, sink.actions)
}

func TestAgent_EngagementNeedsItems(t *testing.T) {
	a := newTestAgent(t, Probabilities{Like: 1})
	sink := &recordingSink{}

	// No items: the like band does not exist and the draw idles.
	results, err := a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)
	assert.Empty(t, results)

	a.EndTick()
	tl := servedTimeline(timeline.Item{PostID: "post-aaaaaaaaaa", AuthorID: "user-9"})
	results, err = a.Act(context.Background(), sink, tl)
	require.NoError(t, err)

	require.Len(t, results, 3)
	for _, act := range sink.actions {
		assert.Equal(t, event.ActionLike, act.Kind)
		assert.Equal(t, "post-aaaaaaaaaa", act.TargetID)
		assert.Equal(t, int64(1), act.Position)
	}
}

func TestAgent_CommentTargetsTimelineItem(t *testing.T) {
	a := newTestAgent(t, Probabilities{Comment: 1}, WithPlanner(&scriptedPlanner{intents: []Intent{IntentComment}}))
	sink := &recordingSink{}

	tl := servedTimeline(timeline.Item{PostID: "post-abcdefghij", AuthorID: "user-9"})
	results, err := a.Act(context.Background(), sink, tl)
	require.NoError(t, err)

	require.Len(t, results, 1)
	act := sink.actions[0]
	assert.Equal(t, event.ActionComment, act.Kind)
	assert.Equal(t, "post-abcdefghij", act.TargetID)
	assert.Equal(t, "Comment #1 on post-abc by user_0007", act.Content)
	assert.Equal(t, int64(1), act.Position)
}

func TestAgent_FollowTargetsAuthor(t *testing.T) {
	a := newTestAgent(t, Probabilities{Follow: 1}, WithPlanner(&scriptedPlanner{intents: []Intent{IntentFollow}}))
	sink := &recordingSink{}

	tl := servedTimeline(timeline.Item{PostID: "post-abcdefghij", AuthorID: "user-9"})
	results, err := a.Act(context.Background(), sink, tl)
	require.NoError(t, err)

	require.Len(t, results, 1)
	act := sink.actions[0]
	assert.Equal(t, event.ActionFollow, act.Kind)
	assert.Equal(t, "user-9", act.TargetID)
	assert.Equal(t, int64(1), act.Position)
	assert.Empty(t, act.Content)
}

func TestAgent_TargetStaysInTopFive(t *testing.T) {
	items := make([]timeline.Item, 8)
	for i := range items {
		items[i] = timeline.Item{PostID: string(rune('a'+i)) + "-post", AuthorID: "user-9"}
	}
	a := newTestAgent(t, Probabilities{Like: 1})
	sink := &recordingSink{}

	for turn := 0; turn < 20; turn++ {
		_, err := a.Act(context.Background(), sink, servedTimeline(items...))
		require.NoError(t, err)
		a.EndTick()
	}

	require.NotEmpty(t, sink.actions)
	for _, act := range sink.actions {
		assert.LessOrEqual(t, act.Position, int64(targetPoolSize))
		assert.GreaterOrEqual(t, act.Position, int64(1))
	}
}

func TestAgent_AcceptanceGatedCounters(t *testing.T) {
	a := newTestAgent(t, Probabilities{Like: 1}, WithPlanner(&scriptedPlanner{intents: []Intent{IntentLike, IntentLike}}))
	rejected := false
	sink := &recordingSink{
		respond: func(act command.Action) *command.Result {
			if !rejected {
				rejected = true
				return &command.Result{Status: event.StatusRejected, Reason: command.ReasonAlreadyLiked}
			}
			return &command.Result{Status: event.StatusAccepted, EventID: "evt-ok"}
		},
	}

	tl := servedTimeline(timeline.Item{PostID: "post-aaaaaaaaaa", AuthorID: "user-9"})
	results, err := a.Act(context.Background(), sink, tl)
	require.NoError(t, err)

	// Both submissions count against the budget, only the accepted one
	// counts as a like.
	require.Len(t, results, 2)
	assert.False(t, results[0].Accepted())
	assert.True(t, results[1].Accepted())
	assert.Equal(t, int64(1), a.Stats().Likes)
}

func TestAgent_UnknownIntentEndsTurn(t *testing.T) {
	a := newTestAgent(t, Probabilities{}, WithPlanner(&scriptedPlanner{intents: []Intent{Intent("dance"), IntentPost}}))
	sink := &recordingSink{}

	results, err := a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, sink.actions)
}

func TestNewPopulation(t *testing.T) {
	agents := NewPopulation(3, 42)

	require.Len(t, agents, 3)
	assert.Equal(t, "agent_0000", agents[0].ID())
	assert.Equal(t, "user_0000", agents[0].Username())
	assert.Equal(t, "agent_0002", agents[2].ID())
	assert.Equal(t, "user_0002", agents[2].Username())
	assert.Equal(t, int64(42), agents[0].cfg.Seed)
	assert.Equal(t, int64(44), agents[2].cfg.Seed)
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		reply string
		want  Intent
		ok    bool
	}{
		{"post", IntentPost, true},
		{"  LIKE!  ", IntentLike, true},
		{"I will comment on that", IntentComment, true},
		{"follow", IntentFollow, true},
		{"idle", IntentIdle, true},
		{"I would like to post something", IntentPost, true},
		{"ponder the void", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseIntent(tt.reply)
		assert.Equal(t, tt.ok, ok, "reply %q", tt.reply)
		assert.Equal(t, tt.want, got, "reply %q", tt.reply)
	}
}

func TestRule_PlanLadder(t *testing.T) {
	ctx := context.Background()
	tl := servedTimeline(timeline.Item{PostID: "post-aaaaaaaaaa", AuthorID: "user-9"})

	tests := []struct {
		name  string
		probs Probabilities
		tl    *timeline.Timeline
		want  Intent
	}{
		{"full post band", Probabilities{Post: 1}, servedTimeline(), IntentPost},
		{"full like band", Probabilities{Like: 1}, tl, IntentLike},
		{"full comment band", Probabilities{Comment: 1}, tl, IntentComment},
		{"full follow band", Probabilities{Follow: 1}, tl, IntentFollow},
		{"engagement bands need items", Probabilities{Like: 1}, servedTimeline(), IntentIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t, tt.probs)
			got, err := a.rule.Plan(ctx, tt.tl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_ZeroLadderIdles(t *testing.T) {
	// Constructed directly: a zero ladder through New would select the
	// default mix instead.
	r := NewRule("user_0007", Probabilities{}, rand.New(rand.NewPCG(1, 1)), &Stats{})

	tl := servedTimeline(timeline.Item{PostID: "post-aaaaaaaaaa", AuthorID: "user-9"})
	for i := 0; i < 10; i++ {
		got, err := r.Plan(context.Background(), tl)
		require.NoError(t, err)
		assert.Equal(t, IntentIdle, got)
	}
}
