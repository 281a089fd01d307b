// Package sim drives whole simulation runs: it logs the run, registers
// the population, and walks the tick loop serving each agent a timeline
// and letting it act.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/attentionlab/feedsim/internal/agent"
	"github.com/attentionlab/feedsim/internal/engine"
	"github.com/attentionlab/feedsim/internal/ranking"
	"github.com/attentionlab/feedsim/internal/timeline"
)

// progressEvery is how often the tick loop reports progress.
const progressEvery = 5

var tracer = otel.Tracer("feedsim/sim")

// Config holds the parameters of one run.
type Config struct {
	NumTicks  int64
	K         int64
	Algorithm ranking.Algorithm
	Seed      int64
}

// Summary is what a finished run reports.
type Summary struct {
	Ticks     int64  `json:"ticks"`
	Agents    int    `json:"agents"`
	Actions   int64  `json:"actions"`
	Accepted  int64  `json:"accepted"`
	Rejected  int64  `json:"rejected"`
	FinalTick int64  `json:"final_tick"`
	Hash      string `json:"content_hash"`
}

// Runner walks one population through a run against one engine.
type Runner struct {
	engine *engine.Engine
	agents []*agent.Agent
	cfg    Config
}

// NewRunner wires a runner over a started-or-fresh engine and a ready
// population. Population assembly is the caller's job; see
// agent.NewPopulation and persona.Agents.
func NewRunner(e *engine.Engine, agents []*agent.Agent, cfg Config) *Runner {
	return &Runner{engine: e, agents: agents, cfg: cfg}
}

// Run executes the whole simulation: engine start, run audit events,
// user registration, then NumTicks rounds of advance-serve-act. Agent
// trouble is logged and the run continues; a returned error means the
// engine failed and the run stopped where it was.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if len(r.agents) == 0 {
		return nil, fmt.Errorf("run simulation: empty population")
	}
	if err := r.engine.Start(ctx); err != nil {
		return nil, err
	}

	err := r.engine.LogRun(ctx, engine.RunConfig{
		NumAgents: int64(len(r.agents)),
		NumTicks:  r.cfg.NumTicks,
		K:         r.cfg.K,
		Algorithm: string(r.cfg.Algorithm),
		Seed:      r.cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	for _, a := range r.agents {
		if err := r.engine.CreateUser(ctx, a.ID(), a.Username()); err != nil {
			return nil, err
		}
	}
	slog.Info("population created", "agents", len(r.agents))

	summary := &Summary{Agents: len(r.agents)}
	for i := int64(0); i < r.cfg.NumTicks; i++ {
		tick, err := r.tick(ctx, summary)
		if err != nil {
			return nil, err
		}

		summary.Ticks++
		if tick%progressEvery == 0 || i == r.cfg.NumTicks-1 {
			slog.Info("tick complete",
				"tick", tick,
				"actions", summary.Actions,
				"accepted", summary.Accepted)
		}
	}
	summary.FinalTick = r.engine.Tick()

	hash, err := r.engine.ContentHash(ctx)
	if err != nil {
		return nil, err
	}
	summary.Hash = hash

	slog.Info("run complete",
		"ticks", summary.Ticks,
		"actions", summary.Actions,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"content_hash", hash)
	return summary, nil
}

// tick advances the clock one step and walks every agent through a
// turn. Returns the engine tick that was served.
func (r *Runner) tick(ctx context.Context, summary *Summary) (int64, error) {
	ctx, span := tracer.Start(ctx, "sim.tick")
	defer span.End()

	tick, err := r.engine.AdvanceTick(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advance tick")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("tick", tick))

	for _, a := range r.agents {
		if err := r.turn(ctx, a, tick, summary); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "agent turn")
			return 0, err
		}
	}
	return tick, nil
}

// turn serves one agent its timeline and lets it spend its action
// budget. Per-timeline ranking seeds derive from the run seed plus the
// current tick, so every agent in a tick ranks against the same draw
// but ticks do not repeat each other.
func (r *Runner) turn(ctx context.Context, a *agent.Agent, tick int64, summary *Summary) error {
	ctx, span := tracer.Start(ctx, "sim.agent_turn",
		trace.WithAttributes(attribute.String("agent_id", a.ID())))
	defer span.End()
	defer a.EndTick()

	tl, err := r.engine.ServeTimeline(ctx, timeline.Request{
		ActorID:   a.ID(),
		K:         r.cfg.K,
		Algorithm: r.cfg.Algorithm,
		Seed:      r.cfg.Seed + tick,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "serve timeline")
		return err
	}

	results, err := a.Act(ctx, r.engine, tl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "act")
		return err
	}
	for _, res := range results {
		summary.Actions++
		if res.Accepted() {
			summary.Accepted++
		} else {
			summary.Rejected++
		}
	}
	span.SetAttributes(attribute.Int("actions", len(results)))
	return nil
}
