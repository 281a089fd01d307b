package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attentionlab/feedsim/internal/command"
	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/idgen"
	"github.com/attentionlab/feedsim/internal/projection"
	"github.com/attentionlab/feedsim/internal/publish"
	"github.com/attentionlab/feedsim/internal/ranking"
	"github.com/attentionlab/feedsim/internal/store"
	"github.com/attentionlab/feedsim/internal/timeline"
)

// DefaultSeed is the run seed used when none is configured.
const DefaultSeed = 42

// Engine is the single-writer facade over the event log, projections,
// timeline service and action pipeline.
//
// Every mutating operation runs inside one store transaction so its
// validation reads, log append and projection fold commit as a unit.
// The store serializes writers, so Engine methods may be called from
// any goroutine; the logical tick only moves when AdvanceTick is
// called.
type Engine struct {
	store     *store.Store
	clock     *Clock
	exposure  timeline.ExposureStore
	ids       idgen.Generator
	timelines *timeline.Service
	actions   *command.Processor
	pub       publish.Publisher
	seed      int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithExposureStore replaces the default in-memory exposure store.
func WithExposureStore(es timeline.ExposureStore) Option {
	return func(e *Engine) { e.exposure = es }
}

// WithIDGenerator replaces the default random id generator.
// Tests and the scenario harness use a deterministic one.
func WithIDGenerator(ids idgen.Generator) Option {
	return func(e *Engine) { e.ids = ids }
}

// WithPublisher sets the event notice publisher. Default is a no-op.
func WithPublisher(p publish.Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithSeed sets the run seed stamped on clock and run events.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// New creates an Engine over s. Call Start before use to restore the
// tick clock and exposure sets from the log.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		clock:    NewClock(),
		exposure: timeline.NewMemoryExposureStore(),
		ids:      idgen.Random{},
		pub:      &publish.NoopPublisher{},
		seed:     DefaultSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.timelines = timeline.NewService(e.exposure, e.ids)
	e.actions = command.NewProcessor(e.exposure, e.ids)
	return e
}

// Start restores run state from the log: the tick clock resumes at the
// last recorded tick and exposure sets are rehydrated from
// timeline_served events, so validation keeps working across process
// restarts.
func (e *Engine) Start(ctx context.Context) error {
	q := e.store.Queries()

	last, err := q.LastTick(ctx)
	if err != nil {
		return NewStorageError("start engine", err)
	}
	e.clock = NewClockAt(last)

	restored, err := timeline.Rehydrate(ctx, q, e.exposure)
	if err != nil {
		return NewStorageError("start engine", err)
	}

	slog.Info("engine started", "tick", last, "timelines_restored", restored)
	return nil
}

// Tick returns the current logical tick.
func (e *Engine) Tick() int64 {
	return e.clock.Current()
}

// ServeTimeline ranks candidates and records what was shown. The
// request is stamped with the engine's current tick; the caller picks
// actor, k, algorithm and seed. An unimplemented algorithm or an actor
// with no user_created fact fails with a coded RuntimeError and
// appends nothing.
func (e *Engine) ServeTimeline(ctx context.Context, req timeline.Request) (*timeline.Timeline, error) {
	req.Tick = e.clock.Current()

	if !req.Algorithm.Valid() {
		return nil, NewUnknownAlgorithmError(string(req.Algorithm),
			fmt.Errorf("%w: %q", ranking.ErrUnknownAlgorithm, req.Algorithm))
	}

	var tl *timeline.Timeline
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		exists, err := q.UserExists(ctx, req.ActorID)
		if err != nil {
			return NewStorageError("check user", err)
		}
		if !exists {
			return NewUnknownUserError(req.ActorID)
		}
		tl, err = e.timelines.Serve(ctx, q, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, event.Event{
		Seq:   tl.Seq,
		ID:    tl.EventID,
		Kind:  event.KindTimelineServed,
		Tick:  tl.Tick,
		Actor: tl.ActorID,
	})
	slog.Info("timeline served",
		"actor", tl.ActorID,
		"timeline_id", tl.TimelineID,
		"tick", tl.Tick,
		"items", len(tl.Items))
	return tl, nil
}

// ProcessAction validates act at the current tick and records the
// outcome. Rejections are results, not errors; an error means storage
// failed and nothing was recorded.
func (e *Engine) ProcessAction(ctx context.Context, act command.Action) (*command.Result, error) {
	tick := e.clock.Current()

	var res *command.Result
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = e.actions.Process(ctx, q, act, tick)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res.Reason != command.ReasonDuplicateOpID {
		// Duplicates append nothing, so there is nothing to notify.
		if ev, err := e.store.Queries().GetEventByOpID(ctx, act.OpID); err != nil {
			slog.Warn("notice lookup failed", "op_id", act.OpID, "error", err)
		} else {
			e.notify(ctx, ev)
		}
	}

	slog.Info("action processed",
		"actor", act.Actor,
		"action", string(act.Kind),
		"status", string(res.Status),
		"reason", res.Reason)
	return res, nil
}

// AdvanceTick moves the logical clock forward one tick and records the
// advance. Returns the new tick.
func (e *Engine) AdvanceTick(ctx context.Context) (int64, error) {
	from := e.clock.Current()
	to := from + 1

	ev := event.Event{
		ID:   e.ids.EventID(),
		Kind: event.KindAdvanceTick,
		Tick: to,
		Seed: event.SeedOf(e.seed),
		Payload: event.AdvanceTickPayload{
			FromTick: from,
			ToTick:   to,
		},
	}
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		_, err := q.AppendEvent(ctx, &ev)
		return err
	})
	if err != nil {
		return 0, NewStorageError("advance tick", err)
	}

	e.clock.Advance()
	e.notify(ctx, ev)
	slog.Info("tick advanced", "from", from, "to", to)
	return to, nil
}

// CreateUser registers a user in the simulated population and folds it
// into projections immediately. User ids are caller-minted; creating
// the same user twice appends a second event whose fold is a no-op.
func (e *Engine) CreateUser(ctx context.Context, userID, username string) error {
	if userID == "" {
		return fmt.Errorf("create user: empty user id")
	}
	if username == "" {
		return fmt.Errorf("create user: empty username")
	}

	ev := event.Event{
		ID:      e.ids.EventID(),
		Kind:    event.KindUserCreated,
		Tick:    e.clock.Current(),
		Actor:   userID,
		Payload: event.UserCreatedPayload{Username: username},
	}
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.AppendEvent(ctx, &ev); err != nil {
			return err
		}
		return projection.Apply(ctx, q, ev)
	})
	if err != nil {
		return NewStorageError("create user", err)
	}

	e.notify(ctx, ev)
	slog.Info("user created", "user_id", userID, "username", username)
	return nil
}

// RunConfig is the audited parameter set of a simulation run.
type RunConfig struct {
	NumAgents int64
	NumTicks  int64
	K         int64
	Algorithm string
	Seed      int64
}

// LogRun records the start of a run: a run_started marker followed by
// a run_config event carrying cfg, in one transaction.
func (e *Engine) LogRun(ctx context.Context, cfg RunConfig) error {
	started := event.Event{
		ID:      e.ids.EventID(),
		Kind:    event.KindRunStarted,
		Tick:    e.clock.Current(),
		Seed:    event.SeedOf(cfg.Seed),
		Payload: event.RunStartedPayload{Message: "Simulation run started"},
	}
	config := event.Event{
		ID:   e.ids.EventID(),
		Kind: event.KindRunConfig,
		Tick: e.clock.Current(),
		Seed: event.SeedOf(cfg.Seed),
		Payload: event.RunConfigPayload{
			NumAgents:        cfg.NumAgents,
			NumTicks:         cfg.NumTicks,
			K:                cfg.K,
			RankingAlgorithm: cfg.Algorithm,
			Seed:             cfg.Seed,
		},
	}

	err := e.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.AppendEvent(ctx, &started); err != nil {
			return err
		}
		_, err := q.AppendEvent(ctx, &config)
		return err
	})
	if err != nil {
		return NewStorageError("log run", err)
	}

	e.notify(ctx, started)
	e.notify(ctx, config)
	slog.Info("run logged",
		"agents", cfg.NumAgents,
		"ticks", cfg.NumTicks,
		"k", cfg.K,
		"algorithm", cfg.Algorithm,
		"seed", cfg.Seed)
	return nil
}

// Events lists events from the log for inspection and export.
func (e *Engine) Events(ctx context.Context, f store.EventFilter) ([]event.Event, error) {
	evs, err := e.store.Queries().ListEvents(ctx, f)
	if err != nil {
		return nil, NewStorageError("list events", err)
	}
	return evs, nil
}

// Outcomes lists the status and reason of every processed action in
// log order.
func (e *Engine) Outcomes(ctx context.Context) ([]store.ActionOutcome, error) {
	outs, err := e.store.Queries().ActionOutcomes(ctx)
	if err != nil {
		return nil, NewStorageError("list outcomes", err)
	}
	return outs, nil
}

// Snapshot reads the full projected state.
func (e *Engine) Snapshot(ctx context.Context) (projection.State, error) {
	snap, err := projection.Snapshot(ctx, e.store.Queries())
	if err != nil {
		return projection.State{}, NewStorageError("snapshot", err)
	}
	return snap, nil
}

// notify publishes a best-effort notice for an appended event. A
// publish failure is logged and swallowed: the log is the source of
// truth, not the bus.
func (e *Engine) notify(ctx context.Context, ev event.Event) {
	topic := publish.TopicFor(ev.Kind)
	if err := e.pub.Publish(ctx, topic, publish.NoticeFor(ev)); err != nil {
		slog.Warn("event publish failed", "topic", topic, "seq", ev.Seq, "error", err)
	}
}
