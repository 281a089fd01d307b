package harness

import (
	"context"
	"fmt"

	"github.com/attentionlab/feedsim/internal/command"
	"github.com/attentionlab/feedsim/internal/engine"
	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/idgen"
	"github.com/attentionlab/feedsim/internal/ranking"
	"github.com/attentionlab/feedsim/internal/store"
	"github.com/attentionlab/feedsim/internal/testutil"
	"github.com/attentionlab/feedsim/internal/timeline"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	ids      *idgen.Sequential
	trace    *testutil.DeterministicClock
}

// Run executes a scenario and returns its result.
//
// Each run gets a fresh in-memory store and a sequential id generator,
// so the trace depends only on the scenario. A returned error means the
// run itself failed (storage fault, invalid setup); expect and
// assertion failures are recorded on the result instead.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	ids := idgen.NewSequential()
	eng := engine.New(st,
		engine.WithIDGenerator(ids),
		engine.WithSeed(scenario.seed()),
	)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		engine:   eng,
		ids:      ids,
		trace:    testutil.NewDeterministicClock(),
	}

	result := NewResult()

	for i, step := range scenario.Setup {
		res, err := h.executeStep(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if res != nil && !res.Accepted() {
			return nil, fmt.Errorf("setup[%d]: action rejected: %s", i, res.Reason)
		}
	}

	for i, step := range scenario.Flow {
		res, err := h.executeStep(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		checkExpect(result, i, step.Expect, res)
	}

	actx := &AssertionContext{Ctx: ctx, Engine: eng}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	hash, err := eng.ContentHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("final content hash: %w", err)
	}
	result.Hash = hash

	events, err := eng.Events(ctx, store.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	result.Events = int64(len(events))

	return result, nil
}

// executeStep runs one step through the engine and appends its trace
// event. The returned result is non-nil only for action steps.
func (h *Harness) executeStep(ctx context.Context, step Step, result *Result) (*command.Result, error) {
	switch step.Op {
	case OpCreateUser:
		username := step.Username
		if username == "" {
			username = "user_" + step.Actor
		}
		if err := h.engine.CreateUser(ctx, step.Actor, username); err != nil {
			return nil, err
		}
		result.AddTrace(TraceEvent{
			Seq:      h.trace.Next(),
			Type:     OpCreateUser,
			Tick:     h.engine.Tick(),
			Actor:    step.Actor,
			Username: username,
		})
		return nil, nil

	case OpAdvanceTick:
		tick, err := h.engine.AdvanceTick(ctx)
		if err != nil {
			return nil, err
		}
		result.AddTrace(TraceEvent{
			Seq:  h.trace.Next(),
			Type: OpAdvanceTick,
			Tick: tick,
		})
		return nil, nil

	case OpServeTimeline:
		req := timeline.Request{
			ActorID:   step.Actor,
			K:         h.scenario.defaultK(),
			Algorithm: h.scenario.defaultAlgorithm(),
			Seed:      h.scenario.seed() + h.engine.Tick(),
		}
		if step.K != 0 {
			req.K = step.K
		}
		if step.Algorithm != "" {
			req.Algorithm = ranking.Algorithm(step.Algorithm)
		}
		if step.Seed != nil {
			req.Seed = *step.Seed
		}

		tl, err := h.engine.ServeTimeline(ctx, req)
		if err != nil {
			return nil, err
		}

		scores := make([]string, len(tl.Items))
		for i, item := range tl.Items {
			scores[i] = ranking.FormatScore(item.Score)
		}
		result.AddTrace(TraceEvent{
			Seq:        h.trace.Next(),
			Type:       OpServeTimeline,
			Tick:       tl.Tick,
			Actor:      tl.ActorID,
			TimelineID: tl.TimelineID,
			Algorithm:  string(tl.Algorithm),
			K:          tl.K,
			PostIDs:    tl.PostIDs(),
			Scores:     scores,
		})
		return nil, nil

	case OpAction:
		opID := step.OpID
		if opID == "" {
			opID = h.ids.OpID()
		}
		act := command.Action{
			OpID:       opID,
			Actor:      step.Actor,
			Kind:       event.ActionKind(step.Action),
			TargetID:   step.Target,
			Content:    step.Content,
			TimelineID: step.Timeline,
			Position:   step.Position,
		}

		res, err := h.engine.ProcessAction(ctx, act)
		if err != nil {
			return nil, err
		}

		result.AddTrace(TraceEvent{
			Seq:        h.trace.Next(),
			Type:       OpAction,
			Tick:       h.engine.Tick(),
			Actor:      step.Actor,
			Action:     step.Action,
			OpID:       opID,
			TargetID:   step.Target,
			TimelineID: step.Timeline,
			Content:    step.Content,
			Status:     string(res.Status),
			Reason:     res.Reason,
			EventID:    res.EventID,
		})
		return res, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// checkExpect validates an action outcome against its expect clause.
// Steps without one pass unconditionally.
func checkExpect(result *Result, idx int, expect *ExpectClause, res *command.Result) {
	if expect == nil || res == nil {
		return
	}
	if string(res.Status) != expect.Status {
		result.AddError(fmt.Sprintf(
			"flow[%d]: expected status %s, got %s (reason %q)",
			idx, expect.Status, res.Status, res.Reason))
		return
	}
	if expect.Reason != "" && res.Reason != expect.Reason {
		result.AddError(fmt.Sprintf(
			"flow[%d]: expected reason %s, got %s",
			idx, expect.Reason, res.Reason))
	}
}
