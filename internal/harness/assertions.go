package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/attentionlab/feedsim/internal/engine"
	"github.com/attentionlab/feedsim/internal/projection"
	"github.com/attentionlab/feedsim/internal/store"
)

// AssertionContext gives assertions access to the engine that ran the
// scenario, for state queries and replay verification.
type AssertionContext struct {
	Ctx    context.Context
	Engine *engine.Engine
}

// AssertionError describes one failed assertion with enough context to
// debug it from the test output alone.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions passed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		case AssertEventCount:
			err = assertEventCount(actx, a)
		case AssertReplayMatch:
			err = assertReplayMatch(actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceCount counts action trace events matching the assertion's
// action kind and, when set, status.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, e := range trace {
		if e.Type != OpAction || e.Action != a.Action {
			continue
		}
		if a.Status != "" && e.Status != a.Status {
			continue
		}
		count++
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events (status %q)", *a.Count, a.Action, a.Status),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertTraceOrder checks that the listed trace event types occur as a
// subsequence of the trace.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, e := range trace {
		if next < len(a.Types) && e.Type == a.Types[next] {
			next++
		}
	}
	if next != len(a.Types) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("types in order: %s", strings.Join(a.Types, ", ")),
			Actual:   fmt.Sprintf("missing %q at position %d", a.Types[next], next),
		}
	}
	return nil
}

// assertFinalState filters a projection table by the where clause, then
// checks the match count and, when expect is set, the field values of
// the single matching row.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	snap, err := actx.Engine.Snapshot(actx.Ctx)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	var matched []map[string]any
	for _, row := range stateRows(snap, a.Table) {
		if matchFields(row, a.Where) {
			matched = append(matched, row)
		}
	}

	if a.Count != nil && len(matched) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d rows in %s matching %v", *a.Count, a.Table, a.Where),
			Actual:   fmt.Sprintf("%d", len(matched)),
		}
	}

	if len(a.Expect) > 0 {
		if len(matched) != 1 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("exactly one row in %s matching %v", a.Table, a.Where),
				Actual:   fmt.Sprintf("%d rows", len(matched)),
			}
		}
		if !matchFields(matched[0], a.Expect) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("row fields %v", a.Expect),
				Actual:   fmt.Sprintf("%v", matched[0]),
			}
		}
	}
	return nil
}

// assertEventCount compares the total log length with the expectation.
func assertEventCount(actx *AssertionContext, a Assertion) error {
	events, err := actx.Engine.Events(actx.Ctx, store.EventFilter{})
	if err != nil {
		return fmt.Errorf("event_count: %w", err)
	}
	if len(events) != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d events", *a.Count),
			Actual:   fmt.Sprintf("%d", len(events)),
		}
	}
	return nil
}

// assertReplayMatch rebuilds projections from the log and requires the
// replayed content hash to equal the live one.
func assertReplayMatch(actx *AssertionContext) error {
	report, err := actx.Engine.VerifyReplay(actx.Ctx)
	if err != nil {
		return fmt.Errorf("replay_match: %w", err)
	}
	if !report.Match {
		return &AssertionError{
			Type:     AssertReplayMatch,
			Expected: fmt.Sprintf("replay hash %s", report.LiveHash),
			Actual:   report.Hash,
		}
	}
	return nil
}

// stateRows renders one projection table as generic rows with the same
// field names the canonical state encoding uses.
func stateRows(s projection.State, table string) []map[string]any {
	var rows []map[string]any
	switch table {
	case "users":
		for _, u := range s.Users {
			rows = append(rows, map[string]any{
				"user_id":      u.UserID,
				"username":     u.Username,
				"created_tick": u.CreatedTick,
			})
		}
	case "posts":
		for _, p := range s.Posts {
			rows = append(rows, map[string]any{
				"post_id":      p.PostID,
				"author_id":    p.AuthorID,
				"content":      p.Content,
				"created_tick": p.CreatedTick,
			})
		}
	case "comments":
		for _, c := range s.Comments {
			rows = append(rows, map[string]any{
				"comment_id":   c.CommentID,
				"post_id":      c.PostID,
				"author_id":    c.AuthorID,
				"content":      c.Content,
				"created_tick": c.CreatedTick,
			})
		}
	case "votes":
		for _, v := range s.Votes {
			rows = append(rows, map[string]any{
				"vote_id":      v.VoteID,
				"post_id":      v.PostID,
				"user_id":      v.UserID,
				"vote_type":    v.VoteType,
				"created_tick": v.CreatedTick,
			})
		}
	case "follows":
		for _, f := range s.Follows {
			rows = append(rows, map[string]any{
				"follower_id":  f.FollowerID,
				"followee_id":  f.FolloweeID,
				"created_tick": f.CreatedTick,
			})
		}
	}
	return rows
}

// matchFields reports whether every expected field equals the row's
// value. YAML integers are normalized before comparison so `created_tick: 1`
// matches an int64 row value.
func matchFields(row map[string]any, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := row[key]
		if !ok {
			return false
		}
		if normalize(got) != normalize(want) {
			return false
		}
	}
	return true
}

// normalize collapses the integer types YAML and SQLite scanning
// produce into one comparable form.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return v
	}
}
