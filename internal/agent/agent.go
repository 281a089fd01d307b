// Package agent drives the simulated population. Each agent plans an
// intent against the timeline it was served, composes text when the
// intent calls for it, and submits commands with fresh operation ids.
//
// Planning and composition are capabilities behind the Planner and
// Composer interfaces. The rule strategy draws from a seeded PRNG and
// fills numbered templates; the model strategy asks an Ollama chat
// model and falls back to the rule strategy whenever the model fails.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/attentionlab/feedsim/internal/command"
	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/idgen"
	"github.com/attentionlab/feedsim/internal/timeline"
)

// Intent is what an agent decides to do with its next action slot.
type Intent string

const (
	IntentIdle    Intent = "idle"
	IntentPost    Intent = "post"
	IntentLike    Intent = "like"
	IntentComment Intent = "comment"
	IntentFollow  Intent = "follow"
)

// intentScanOrder is the order ParseIntent walks when a reply names
// more than one intent.
var intentScanOrder = []Intent{IntentIdle, IntentPost, IntentLike, IntentComment, IntentFollow}

// ParseIntent scans a free-form reply for the first intent word it
// contains. The second return is false when no intent is named.
func ParseIntent(reply string) (Intent, bool) {
	reply = strings.ToLower(strings.TrimSpace(reply))
	for _, in := range intentScanOrder {
		if strings.Contains(reply, string(in)) {
			return in, true
		}
	}
	return "", false
}

// Planner decides what an agent does next given what it was shown.
type Planner interface {
	Plan(ctx context.Context, tl *timeline.Timeline) (Intent, error)
}

// Composer writes the text for post and comment actions.
type Composer interface {
	ComposePost(ctx context.Context, tick int64) (string, error)
	ComposeComment(ctx context.Context, postID string) (string, error)
}

// ActionSink accepts agent commands. *engine.Engine satisfies it.
type ActionSink interface {
	ProcessAction(ctx context.Context, act command.Action) (*command.Result, error)
}

// DefaultMaxActionsPerTick bounds how many commands one agent submits
// per tick when the config leaves the budget unset.
const DefaultMaxActionsPerTick = 3

// targetPoolSize is how many top-ranked items an agent picks targets
// from.
const targetPoolSize = 5

// Probabilities is the chance ladder the rule planner walks with a
// single draw, in post, like, comment, follow order. Values are
// per-band widths in [0,1]; the engagement bands only exist when the
// served timeline has items.
type Probabilities struct {
	Post    float64
	Like    float64
	Comment float64
	Follow  float64
}

// DefaultProbabilities is the stock population mix.
func DefaultProbabilities() Probabilities {
	return Probabilities{Post: 0.10, Like: 0.30, Comment: 0.10, Follow: 0.05}
}

// Config describes one agent. The zero value of Probabilities and a
// zero MaxActionsPerTick select the package defaults.
type Config struct {
	AgentID           string
	Username          string
	Seed              int64
	MaxActionsPerTick int
	Probabilities     Probabilities
}

// Stats counts what an agent has done across the run. Post and comment
// totals advance at compose time so the numbering in templates and
// prompts matches what was written; likes and follows advance only on
// acceptance.
type Stats struct {
	Posts    int64
	Likes    int64
	Comments int64
	Follows  int64
}

// Agent is one simulated user. It is not safe for concurrent use; the
// runner drives each agent from a single goroutine.
type Agent struct {
	cfg           Config
	rng           *rand.Rand
	ids           idgen.Generator
	stats         Stats
	rule          *Rule
	planner       Planner
	composer      Composer
	modelVersion  string
	promptVersion string
	tickActions   int
}

// Option configures an Agent.
type Option func(*Agent)

// WithPlanner replaces the rule planner.
func WithPlanner(p Planner) Option {
	return func(a *Agent) { a.planner = p }
}

// WithComposer replaces the rule composer.
func WithComposer(c Composer) Option {
	return func(a *Agent) { a.composer = c }
}

// WithIDGenerator replaces the random operation id source. Tests use a
// deterministic one.
func WithIDGenerator(ids idgen.Generator) Option {
	return func(a *Agent) { a.ids = ids }
}

// WithOllama routes planning and composition through client and stamps
// the model's version tags on every command the agent submits. Model
// failures fall back to the agent's rule strategy.
func WithOllama(client *OllamaClient) Option {
	return func(a *Agent) {
		llm := NewLLM(client, a.cfg.Username, &a.stats, a.rule)
		a.planner = llm
		a.composer = llm
		a.modelVersion = client.Model()
		a.promptVersion = PromptVersion
	}
}

// New creates an agent with the rule strategy installed. Options swap
// in other strategies; the rule strategy stays constructed either way
// so model-backed agents can fall back to it.
func New(cfg Config, opts ...Option) *Agent {
	if cfg.MaxActionsPerTick <= 0 {
		cfg.MaxActionsPerTick = DefaultMaxActionsPerTick
	}
	if cfg.Probabilities == (Probabilities{}) {
		cfg.Probabilities = DefaultProbabilities()
	}

	a := &Agent{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed))),
		ids: idgen.Random{},
	}
	a.rule = NewRule(cfg.Username, cfg.Probabilities, a.rng, &a.stats)
	a.planner = a.rule
	a.composer = a.rule
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewPopulation builds n agents named agent_0000 onward with usernames
// user_0000 onward. Each agent seeds its own PRNG from baseSeed plus
// its index, so populations are reproducible but agents do not mirror
// each other. Options apply to every agent.
func NewPopulation(n int, baseSeed int64, opts ...Option) []*Agent {
	agents := make([]*Agent, 0, n)
	for i := 0; i < n; i++ {
		cfg := Config{
			AgentID:  fmt.Sprintf("agent_%04d", i),
			Username: fmt.Sprintf("user_%04d", i),
			Seed:     baseSeed + int64(i),
		}
		agents = append(agents, New(cfg, opts...))
	}
	return agents
}

// ID returns the agent's actor id.
func (a *Agent) ID() string { return a.cfg.AgentID }

// Username returns the agent's display name.
func (a *Agent) Username() string { return a.cfg.Username }

// Stats returns a copy of the agent's running totals.
func (a *Agent) Stats() Stats { return a.stats }

// Act runs one agent turn: plan against tl, compose when needed, and
// submit commands until the planner goes idle or the tick budget is
// spent. Rejected commands still count against the budget. An error
// means the sink failed and the turn stopped early; everything
// submitted before the failure is in the returned slice.
func (a *Agent) Act(ctx context.Context, sink ActionSink, tl *timeline.Timeline) ([]command.Result, error) {
	var results []command.Result
	for a.tickActions < a.cfg.MaxActionsPerTick {
		intent, err := a.planner.Plan(ctx, tl)
		if err != nil {
			slog.Warn("agent plan failed", "agent", a.cfg.AgentID, "error", err)
			break
		}
		if intent == IntentIdle {
			break
		}

		act, ok, err := a.build(ctx, tl, intent)
		if err != nil {
			slog.Warn("agent compose failed", "agent", a.cfg.AgentID, "intent", string(intent), "error", err)
			break
		}
		if !ok {
			// Nothing to target ends the turn.
			break
		}

		res, err := sink.ProcessAction(ctx, act)
		if err != nil {
			return results, fmt.Errorf("agent %s: %w", a.cfg.AgentID, err)
		}
		a.recordOutcome(intent, res)
		results = append(results, *res)
		a.tickActions++
	}
	return results, nil
}

// EndTick resets the per-tick action budget.
func (a *Agent) EndTick() {
	a.tickActions = 0
}

// build turns an intent into a submittable command. ok is false when
// the intent has no valid target on this timeline.
func (a *Agent) build(ctx context.Context, tl *timeline.Timeline, intent Intent) (command.Action, bool, error) {
	act := command.Action{
		OpID:          a.ids.OpID(),
		Actor:         a.cfg.AgentID,
		TimelineID:    tl.TimelineID,
		ModelVersion:  a.modelVersion,
		PromptVersion: a.promptVersion,
	}

	switch intent {
	case IntentPost:
		content, err := a.composer.ComposePost(ctx, tl.Tick)
		if err != nil {
			return command.Action{}, false, fmt.Errorf("compose post: %w", err)
		}
		act.Kind = event.ActionPost
		act.Content = content
		return act, true, nil

	case IntentLike, IntentComment, IntentFollow:
		item, position, ok := a.selectTarget(tl)
		if !ok {
			return command.Action{}, false, nil
		}
		act.Position = position
		switch intent {
		case IntentLike:
			act.Kind = event.ActionLike
			act.TargetID = item.PostID
		case IntentComment:
			content, err := a.composer.ComposeComment(ctx, item.PostID)
			if err != nil {
				return command.Action{}, false, fmt.Errorf("compose comment: %w", err)
			}
			act.Kind = event.ActionComment
			act.TargetID = item.PostID
			act.Content = content
		case IntentFollow:
			act.Kind = event.ActionFollow
			act.TargetID = item.AuthorID
		}
		return act, true, nil
	}

	// A custom planner may emit intents this agent does not know how
	// to execute.
	return command.Action{}, false, nil
}

// selectTarget picks uniformly among the top ranked items and returns
// the item with its 1-based rank.
func (a *Agent) selectTarget(tl *timeline.Timeline) (timeline.Item, int64, bool) {
	if len(tl.Items) == 0 {
		return timeline.Item{}, 0, false
	}
	n := len(tl.Items)
	if n > targetPoolSize {
		n = targetPoolSize
	}
	idx := a.rng.IntN(n)
	return tl.Items[idx], int64(idx + 1), true
}

// recordOutcome advances the acceptance-gated totals.
func (a *Agent) recordOutcome(intent Intent, res *command.Result) {
	if !res.Accepted() {
		return
	}
	switch intent {
	case IntentLike:
		a.stats.Likes++
	case IntentFollow:
		a.stats.Follows++
	}
}

// shortID truncates an id for display in text and prompts.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
