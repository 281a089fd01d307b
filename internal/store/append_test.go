package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attentionlab/feedsim/internal/event"
)

func TestAppendEvent_AssignsMonotonicSeq(t *testing.T) {
	s := createTestStore(t)
	q := s.Queries()

	seqs := appendN(t, q, 3)

	for i, seq := range seqs {
		want := int64(i + 1)
		if seq != want {
			t.Errorf("seq[%d] = %d, want %d", i, seq, want)
		}
	}
}

func TestAppendEvent_SetsSeqOnEvent(t *testing.T) {
	s := createTestStore(t)
	q := s.Queries()
	ctx := context.Background()

	ev := createActionEvent("evt-1", "user-1", "op-1", 5, event.ActionLike)
	seq, err := q.AppendEvent(ctx, &ev)
	if err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}

	if ev.Seq != seq {
		t.Errorf("ev.Seq = %d, want %d", ev.Seq, seq)
	}
}

func TestAppendEvent_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	q := s.Queries()
	ctx := context.Background()

	in := event.Event{
		ID:             "evt-1",
		Kind:           event.KindAction,
		Tick:           7,
		Actor:          "user-9",
		OpID:           "op-9",
		TimelineID:     "tl-3",
		RankingVersion: "v1.0",
		ModelVersion:   "rule",
		PromptVersion:  "p1",
		Status:         event.StatusRejected,
		Reason:         "post_not_found",
		Seed:           event.SeedOf(42),
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload: event.ActionPayload{
			Action:   event.ActionComment,
			TargetID: "post-1",
			Content:  "nice post",
			Position: 2,
		},
	}

	if _, err := q.AppendEvent(ctx, &in); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}

	out, err := q.GetEventByOpID(ctx, "op-9")
	if err != nil {
		t.Fatalf("GetEventByOpID() failed: %v", err)
	}

	if out.ID != in.ID {
		t.Errorf("ID = %q, want %q", out.ID, in.ID)
	}
	if out.Kind != in.Kind {
		t.Errorf("Kind = %q, want %q", out.Kind, in.Kind)
	}
	if out.Tick != in.Tick {
		t.Errorf("Tick = %d, want %d", out.Tick, in.Tick)
	}
	if out.Actor != in.Actor {
		t.Errorf("Actor = %q, want %q", out.Actor, in.Actor)
	}
	if out.TimelineID != in.TimelineID {
		t.Errorf("TimelineID = %q, want %q", out.TimelineID, in.TimelineID)
	}
	if out.Status != in.Status {
		t.Errorf("Status = %q, want %q", out.Status, in.Status)
	}
	if out.Reason != in.Reason {
		t.Errorf("Reason = %q, want %q", out.Reason, in.Reason)
	}
	if out.Seed == nil || *out.Seed != 42 {
		t.Errorf("Seed = %v, want 42", out.Seed)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", out.CreatedAt, in.CreatedAt)
	}

	payload, ok := out.Payload.(event.ActionPayload)
	if !ok {
		t.Fatalf("Payload type = %T, want event.ActionPayload", out.Payload)
	}
	if payload != in.Payload.(event.ActionPayload) {
		t.Errorf("Payload = %+v, want %+v", payload, in.Payload)
	}
}

func TestAppendEvent_DefaultsCreatedAt(t *testing.T) {
	s := createTestStore(t)
	q := s.Queries()
	ctx := context.Background()

	ev := createActionEvent("evt-1", "user-1", "op-1", 0, event.ActionPost)
	before := time.Now().UTC()
	if _, err := q.AppendEvent(ctx, &ev); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}
	after := time.Now().UTC()

	if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
		t.Errorf("CreatedAt = %v, want between %v and %v", ev.CreatedAt, before, after)
	}
}

func TestAppendEvent_DuplicateOpID(t *testing.T) {
	s := createTestStore(t)
	q := s.Queries()
	ctx := context.Background()

	first := createActionEvent("evt-1", "user-1", "op-dup", 0, event.ActionPost)
	if _, err := q.AppendEvent(ctx, &first); err != nil {
		t.Fatalf("first AppendEvent() failed: %v", err)
	}

	second := createActionEvent("evt-2", "user-1", "op-dup", 1, event.ActionPost)
	_, err := q.AppendEvent(ctx, &second)
	if !errors.Is(err, ErrDuplicateOperation) {
		t.Fatalf("AppendEvent() error = %v, want ErrDuplicateOperation", err)
	}

	// The rejected append must not have grown the log
	n, err := q.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("event count = %d, want 1", n)
	}
}

func TestAppendEvent_DuplicateEventID(t *testing.T) {
	s := createTestStore(t)
	q := s.Queries()
	ctx := context.Background()

	first := createActionEvent("evt-same", "user-1", "op-1", 0, event.ActionPost)
	if _, err := q.AppendEvent(ctx, &first); err != nil {
		t.Fatalf("first AppendEvent() failed: %v", err)
	}

	second := createActionEvent("evt-same", "user-1", "op-2", 1, event.ActionPost)
	_, err := q.AppendEvent(ctx, &second)
	if !errors.Is(err, ErrDuplicateEventID) {
		t.Fatalf("AppendEvent() error = %v, want ErrDuplicateEventID", err)
	}
}

func TestAppendEvent_EmptyOpIDsDoNotCollide(t *testing.T) {
	// System events (tick advances, timeline serves) carry no op_id.
	s := createTestStore(t)
	q := s.Queries()
	ctx := context.Background()

	for i, id := range []string{"evt-1", "evt-2", "evt-3"} {
		ev := event.Event{
			ID:     id,
			Kind:   event.KindAdvanceTick,
			Tick:   int64(i + 1),
			Status: event.StatusAccepted,
			Payload: event.AdvanceTickPayload{
				FromTick: int64(i),
				ToTick:   int64(i + 1),
			},
		}
		if _, err := q.AppendEvent(ctx, &ev); err != nil {
			t.Errorf("AppendEvent(%q) with empty op id failed: %v", id, err)
		}
	}
}

func TestOperationExists(t *testing.T) {
	s := createTestStore(t)
	q := s.Queries()
	ctx := context.Background()

	ev := createActionEvent("evt-1", "user-1", "op-1", 0, event.ActionPost)
	if _, err := q.AppendEvent(ctx, &ev); err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}

	exists, err := q.OperationExists(ctx, "op-1")
	if err != nil {
		t.Fatalf("OperationExists() failed: %v", err)
	}
	if !exists {
		t.Error("OperationExists(op-1) = false, want true")
	}

	exists, err = q.OperationExists(ctx, "op-unknown")
	if err != nil {
		t.Fatalf("OperationExists() failed: %v", err)
	}
	if exists {
		t.Error("OperationExists(op-unknown) = true, want false")
	}

	// Empty op id never matches the NULL rows
	exists, err = q.OperationExists(ctx, "")
	if err != nil {
		t.Fatalf("OperationExists() failed: %v", err)
	}
	if exists {
		t.Error(`OperationExists("") = true, want false`)
	}
}
