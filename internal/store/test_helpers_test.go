package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/attentionlab/feedsim/internal/event"
)

// createTestStore creates an on-disk store under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createActionEvent builds an accepted action event with minimal fields.
func createActionEvent(id, actor, opID string, tick int64, action event.ActionKind) event.Event {
	return event.Event{
		ID:             id,
		Kind:           event.KindAction,
		Tick:           tick,
		Actor:          actor,
		OpID:           opID,
		RankingVersion: "v1.0",
		Status:         event.StatusAccepted,
		Payload: event.ActionPayload{
			Action:   action,
			TargetID: "post-target",
		},
	}
}

// createUserEvent builds a user_created event.
func createUserEvent(id, userID, username string, tick int64) event.Event {
	return event.Event{
		ID:     id,
		Kind:   event.KindUserCreated,
		Tick:   tick,
		Actor:  userID,
		Status: event.StatusAccepted,
		Payload: event.UserCreatedPayload{
			Username: username,
		},
	}
}

// appendN appends n accepted action events and returns their seqs.
func appendN(t *testing.T, q *Queries, n int) []int64 {
	t.Helper()
	seqs := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ev := createActionEvent(
			fmt.Sprintf("evt-%03d", i),
			"user-1",
			fmt.Sprintf("op-%03d", i),
			int64(i),
			event.ActionPost,
		)
		seq, err := q.AppendEvent(context.Background(), &ev)
		if err != nil {
			t.Fatalf("AppendEvent(%d) failed: %v", i, err)
		}
		seqs = append(seqs, seq)
	}
	return seqs
}
