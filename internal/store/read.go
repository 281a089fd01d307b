package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/attentionlab/feedsim/internal/event"
)

// EventFilter narrows ListEvents. Zero values mean no constraint except
// Limit, where zero means no limit.
type EventFilter struct {
	Kind    event.Kind
	FromSeq int64 // inclusive lower bound on seq
	Limit   int64
}

const eventColumns = `seq, event_id, kind, tick, actor_id, op_id, timeline_id,
	ranking_version, model_version, prompt_version,
	status, reason, seed, created_at, payload`

// ListEvents returns events in sequence order, forward only. Events are
// returned whole: payloads are decoded before the slice is handed back, so
// a malformed stored payload fails the whole call rather than yielding a
// partial event.
//
// Returns an empty slice (not nil) when nothing matches.
func (q *Queries) ListEvents(ctx context.Context, f EventFilter) ([]event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE seq >= ?`
	args := []any{f.FromSeq}

	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	query += ` ORDER BY seq ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	// Return empty slice instead of nil
	if events == nil {
		events = []event.Event{}
	}

	return events, nil
}

// GetEventByOpID retrieves the event recorded for an operation id.
// Returns ErrNotFound if no event carries the id.
func (q *Queries) GetEventByOpID(ctx context.Context, opID string) (event.Event, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events WHERE op_id = ?
	`, opID)

	ev, err := scanEventRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, ErrNotFound
	}
	return ev, err
}

// LastSeq returns the highest sequence number in the log, 0 when empty.
func (q *Queries) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := q.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// LastTick returns the highest tick recorded in the log, 0 when empty.
// Used to resume the logical clock when reopening an existing run.
func (q *Queries) LastTick(ctx context.Context) (int64, error) {
	var tick int64
	err := q.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(tick), 0) FROM events
	`).Scan(&tick)
	if err != nil {
		return 0, fmt.Errorf("last tick: %w", err)
	}
	return tick, nil
}

// CountEvents returns the total number of events in the log.
func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ActionOutcome is one row of the per-status/per-reason breakdown used by
// the KPI layer.
type ActionOutcome struct {
	Status string
	Reason string
	Tick   int64
}

// ActionOutcomes returns status, reason, and tick for every action event
// in sequence order.
func (q *Queries) ActionOutcomes(ctx context.Context) ([]ActionOutcome, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT status, reason, tick FROM events
		WHERE kind = ?
		ORDER BY seq ASC
	`, string(event.KindAction))
	if err != nil {
		return nil, fmt.Errorf("query action outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []ActionOutcome
	for rows.Next() {
		var o ActionOutcome
		if err := rows.Scan(&o.Status, &o.Reason, &o.Tick); err != nil {
			return nil, fmt.Errorf("scan action outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action outcomes: %w", err)
	}

	if outcomes == nil {
		outcomes = []ActionOutcome{}
	}

	return outcomes, nil
}

// scanTarget is satisfied by both *sql.Rows and *sql.Row.
type scanTarget interface {
	Scan(dest ...any) error
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	ev, err := scanEventFrom(rows)
	if err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	return ev, nil
}

func scanEventRow(row *sql.Row) (event.Event, error) {
	return scanEventFrom(row)
}

func scanEventFrom(t scanTarget) (event.Event, error) {
	var (
		ev         event.Event
		kind       string
		status     string
		opID       sql.NullString
		seed       sql.NullInt64
		createdAt  string
		payloadStr string
	)

	if err := t.Scan(
		&ev.Seq, &ev.ID, &kind, &ev.Tick, &ev.Actor, &opID, &ev.TimelineID,
		&ev.RankingVersion, &ev.ModelVersion, &ev.PromptVersion,
		&status, &ev.Reason, &seed, &createdAt, &payloadStr,
	); err != nil {
		return event.Event{}, err
	}

	ev.Kind = event.Kind(kind)
	ev.Status = event.Status(status)
	if opID.Valid {
		ev.OpID = opID.String
	}
	if seed.Valid {
		ev.Seed = event.SeedOf(seed.Int64)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return event.Event{}, fmt.Errorf("parse created_at: %w", err)
	}
	ev.CreatedAt = ts

	payload, err := event.UnmarshalPayload(ev.Kind, []byte(payloadStr))
	if err != nil {
		return event.Event{}, err
	}
	ev.Payload = payload

	return ev, nil
}
