package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/attentionlab/feedsim/internal/engine"
	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/ranking"
)

// Scenario defines one simulation scenario: a setup phase, a main flow
// with expected outcomes, and assertions over the trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is the run seed. Zero means the engine default.
	Seed int64 `yaml:"seed,omitempty"`

	// K is the default timeline size for serve_timeline steps.
	// Zero means 10.
	K int64 `yaml:"k,omitempty"`

	// Algorithm is the default ranking algorithm for serve_timeline
	// steps. Empty means "new".
	Algorithm string `yaml:"algorithm,omitempty"`

	// Setup steps establish initial state and must all succeed; a
	// rejected setup action aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence of steps. Expect clauses are validated
	// against the engine's actual outcome.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single scenario step. Op selects the operation; the other
// fields apply per op.
type Step struct {
	// Op is one of create_user, advance_tick, serve_timeline, action.
	Op string `yaml:"op"`

	// Actor is the acting user id (create_user, serve_timeline, action).
	Actor string `yaml:"actor,omitempty"`

	// Username is the display name for create_user. Empty derives one
	// from the actor id.
	Username string `yaml:"username,omitempty"`

	// Action is the action kind for action steps: post, like, unlike,
	// comment, follow, unfollow.
	Action string `yaml:"action,omitempty"`

	// OpID pins the idempotency key. Empty mints the next sequential
	// op id; pin it to submit the same operation twice.
	OpID string `yaml:"op_id,omitempty"`

	// Target is the target post or user id.
	Target string `yaml:"target,omitempty"`

	// Timeline is the timeline id the actor is acting from.
	Timeline string `yaml:"timeline,omitempty"`

	// Content is the post or comment text.
	Content string `yaml:"content,omitempty"`

	// Position is the 1-based rank of the target in the cited timeline.
	Position int64 `yaml:"position,omitempty"`

	// K and Algorithm override the scenario defaults for one
	// serve_timeline step.
	K         int64  `yaml:"k,omitempty"`
	Algorithm string `yaml:"algorithm,omitempty"`

	// Seed overrides the serve seed. Default is scenario seed + tick,
	// matching the run loop.
	Seed *int64 `yaml:"seed,omitempty"`

	// Expect validates the outcome of an action step. Setup steps must
	// not carry one; they are expected to be accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is the expected terminal outcome of an action step.
type ExpectClause struct {
	// Status is "accepted" or "rejected".
	Status string `yaml:"status"`

	// Reason is the expected rejection reason. Only checked when set.
	Reason string `yaml:"reason,omitempty"`
}

// Assertion validates the trace or the final state after the flow.
type Assertion struct {
	// Type is one of trace_count, trace_order, final_state,
	// event_count, replay_match.
	Type string `yaml:"type"`

	// Action filters action trace events by kind (trace_count).
	Action string `yaml:"action,omitempty"`

	// Status filters action trace events by outcome (trace_count).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of matches (trace_count,
	// final_state, event_count).
	Count *int `yaml:"count,omitempty"`

	// Types is the expected order of trace event types (trace_order).
	// Matching is by subsequence; intervening events are allowed.
	Types []string `yaml:"types,omitempty"`

	// Table names a projection table (final_state): users, posts,
	// comments, votes, follows.
	Table string `yaml:"table,omitempty"`

	// Where filters table rows by exact field match (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect asserts field values on the single matching row
	// (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step op constants.
const (
	OpCreateUser    = "create_user"
	OpAdvanceTick   = "advance_tick"
	OpServeTimeline = "serve_timeline"
	OpAction        = "action"
)

// Assertion type constants.
const (
	AssertTraceCount  = "trace_count"
	AssertTraceOrder  = "trace_order"
	AssertFinalState  = "final_state"
	AssertEventCount  = "event_count"
	AssertReplayMatch = "replay_match"
)

// Projection tables addressable from final_state assertions.
var stateTables = map[string]bool{
	"users":    true,
	"posts":    true,
	"comments": true,
	"votes":    true,
	"follows":  true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently passing.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario under dir, sorted by filename.
func LoadDir(dir string) ([]*Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}
	sort.Strings(matches)

	scenarios := make([]*Scenario, 0, len(matches))
	for _, path := range matches {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// defaults applied at run time.
const (
	defaultK         = 10
	defaultAlgorithm = ranking.AlgorithmNew
)

func (s *Scenario) seed() int64 {
	if s.Seed == 0 {
		return engine.DefaultSeed
	}
	return s.Seed
}

func (s *Scenario) defaultK() int64 {
	if s.K == 0 {
		return defaultK
	}
	return s.K
}

func (s *Scenario) defaultAlgorithm() ranking.Algorithm {
	if s.Algorithm == "" {
		return defaultAlgorithm
	}
	return ranking.Algorithm(s.Algorithm)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.Algorithm != "" && !ranking.Algorithm(s.Algorithm).Valid() {
		return fmt.Errorf("unknown algorithm %q", s.Algorithm)
	}

	for i, step := range s.Setup {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil {
			switch step.Expect.Status {
			case string(event.StatusAccepted), string(event.StatusRejected):
			default:
				return fmt.Errorf("flow[%d].expect: status must be accepted or rejected, got %q", i, step.Expect.Status)
			}
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(&a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step *Step) error {
	switch step.Op {
	case OpCreateUser:
		if step.Actor == "" {
			return fmt.Errorf("actor is required for create_user")
		}
	case OpAdvanceTick:
		// no fields
	case OpServeTimeline:
		if step.Actor == "" {
			return fmt.Errorf("actor is required for serve_timeline")
		}
		if step.Algorithm != "" && !ranking.Algorithm(step.Algorithm).Valid() {
			return fmt.Errorf("unknown algorithm %q", step.Algorithm)
		}
	case OpAction:
		if step.Actor == "" {
			return fmt.Errorf("actor is required for action")
		}
		if !event.ActionKind(step.Action).Valid() {
			return fmt.Errorf("unknown action kind %q", step.Action)
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func validateAssertion(a *Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_count")
		}
		if a.Count == nil {
			return fmt.Errorf("count is required for trace_count")
		}
		if *a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertTraceOrder:
		if len(a.Types) == 0 {
			return fmt.Errorf("types list is required for trace_order")
		}
	case AssertFinalState:
		if !stateTables[a.Table] {
			return fmt.Errorf("unknown table %q for final_state", a.Table)
		}
		if a.Count == nil && len(a.Expect) == 0 {
			return fmt.Errorf("count or expect is required for final_state")
		}
	case AssertEventCount:
		if a.Count == nil {
			return fmt.Errorf("count is required for event_count")
		}
	case AssertReplayMatch:
		// no fields
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
