package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/attentionlab/feedsim/internal/event"
)

// AppendEvent inserts an event into the log and returns its assigned
// sequence number. This is the only path by which the log grows.
//
// The payload is serialized to canonical JSON so identical payloads always
// store identical bytes. Returns ErrDuplicateOperation when ev.OpID is
// already present and ErrDuplicateEventID when ev.ID collides; both leave
// the log unchanged.
func (q *Queries) AppendEvent(ctx context.Context, ev *event.Event) (int64, error) {
	payloadJSON, err := event.MarshalPayload(ev.Payload)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := q.q.ExecContext(ctx, `
		INSERT INTO events
		(event_id, kind, tick, actor_id, op_id, timeline_id,
		 ranking_version, model_version, prompt_version,
		 status, reason, seed, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		string(ev.Kind),
		ev.Tick,
		ev.Actor,
		nullIfEmpty(ev.OpID),
		ev.TimelineID,
		ev.RankingVersion,
		ev.ModelVersion,
		ev.PromptVersion,
		string(ev.Status),
		ev.Reason,
		nullableInt(ev.Seed),
		createdAt.Format(time.RFC3339Nano),
		string(payloadJSON),
	)
	if err != nil {
		if dup := classifyUniqueViolation(err); dup != nil {
			return 0, dup
		}
		return 0, fmt.Errorf("append event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: read seq: %w", err)
	}

	ev.Seq = seq
	ev.CreatedAt = createdAt
	return seq, nil
}

// OperationExists answers idempotency queries against the op_id index.
func (q *Queries) OperationExists(ctx context.Context, opID string) (bool, error) {
	if opID == "" {
		return false, nil
	}

	var one int
	err := q.q.QueryRowContext(ctx, `
		SELECT 1 FROM events WHERE op_id = ?
	`, opID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("operation exists: %w", err)
	}
	return true, nil
}

// classifyUniqueViolation maps SQLite unique-constraint failures on the
// events table to the log's sentinel errors. Returns nil for anything
// else so the raw storage error propagates.
func classifyUniqueViolation(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
		sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return nil
	}

	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "events.op_id"):
		return ErrDuplicateOperation
	case strings.Contains(msg, "events.event_id"):
		return ErrDuplicateEventID
	default:
		return nil
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
