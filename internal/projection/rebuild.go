package projection

import (
	"context"
	"fmt"

	"github.com/attentionlab/feedsim/internal/store"
)

// rebuildPageSize bounds how many events are held in memory at once while
// walking the log.
const rebuildPageSize = 200

// Rebuild discards the projection tables and refolds the entire log, all
// inside a single transaction so readers never observe a half-built state.
// Returns the number of events folded.
//
// The walk is fail-fast: a hole in the sequence numbers means the log was
// tampered with or truncated, and a projection built from it would be
// silently wrong, so Rebuild aborts instead.
func Rebuild(ctx context.Context, s *store.Store) (int64, error) {
	var count int64

	err := s.InTx(ctx, func(q *store.Queries) error {
		if err := q.ResetProjections(ctx); err != nil {
			return err
		}

		expected := int64(1)
		for {
			page, err := q.ListEvents(ctx, store.EventFilter{
				FromSeq: expected,
				Limit:   rebuildPageSize,
			})
			if err != nil {
				return err
			}
			if len(page) == 0 {
				return nil
			}

			for _, ev := range page {
				if ev.Seq != expected {
					return fmt.Errorf("event sequence gap: expected %d got %d", expected, ev.Seq)
				}
				if err := Apply(ctx, q, ev); err != nil {
					return err
				}
				expected++
				count++
			}
		}
	})
	if err != nil {
		return 0, fmt.Errorf("rebuild: %w", err)
	}

	return count, nil
}
