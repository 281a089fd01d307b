package timeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/store"
)

// ExposureStore tracks which posts were actually shown under each timeline
// id. Action validation consults it to enforce the exposure tie: an actor
// may only like, unlike, or comment on posts from a timeline it was served.
//
// Implementations must allow concurrent readers. Sets are write-once; a
// recorded set is never mutated.
type ExposureStore interface {
	// Record stores the exposure set for a freshly minted timeline id.
	// Recording an id that already exists leaves the original set intact.
	Record(timelineID string, postIDs []string)

	// Has reports whether an exposure set exists for the timeline id.
	Has(timelineID string) bool

	// Contains reports whether postID is in the exposure set of
	// timelineID. Unknown timeline ids contain nothing.
	Contains(timelineID, postID string) bool
}

// MemoryExposureStore is the default ExposureStore: a run-scoped map
// guarded by a read-write lock. It is owned by whoever constructs the
// engine, never package-global, so concurrent runs and tests cannot
// interfere with each other. It holds a run's working set, not permanent
// history; the durable record is the timeline_served events themselves.
type MemoryExposureStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemoryExposureStore creates an empty exposure store.
func NewMemoryExposureStore() *MemoryExposureStore {
	return &MemoryExposureStore{sets: make(map[string]map[string]struct{})}
}

func (m *MemoryExposureStore) Record(timelineID string, postIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sets[timelineID]; exists {
		return
	}

	set := make(map[string]struct{}, len(postIDs))
	for _, id := range postIDs {
		set[id] = struct{}{}
	}
	m.sets[timelineID] = set
}

func (m *MemoryExposureStore) Has(timelineID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sets[timelineID]
	return ok
}

func (m *MemoryExposureStore) Contains(timelineID, postID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.sets[timelineID]
	if !ok {
		return false
	}
	_, ok = set[postID]
	return ok
}

// Len returns the number of recorded exposure sets.
func (m *MemoryExposureStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sets)
}

// rehydratePageSize bounds memory while walking timeline_served history.
const rehydratePageSize = 200

// Rehydrate rebuilds an exposure store from the timeline_served events
// already in the log, so a run can resume against an existing database
// after a process restart. Returns the number of timelines restored.
func Rehydrate(ctx context.Context, q *store.Queries, es ExposureStore) (int, error) {
	restored := 0
	from := int64(1)

	for {
		page, err := q.ListEvents(ctx, store.EventFilter{
			Kind:    event.KindTimelineServed,
			FromSeq: from,
			Limit:   rehydratePageSize,
		})
		if err != nil {
			return 0, fmt.Errorf("rehydrate exposure: %w", err)
		}
		if len(page) == 0 {
			return restored, nil
		}

		for _, ev := range page {
			p, ok := ev.Payload.(event.TimelineServedPayload)
			if !ok {
				return 0, fmt.Errorf("rehydrate exposure: event %s payload is %T", ev.ID, ev.Payload)
			}
			postIDs := make([]string, len(p.Items))
			for i, item := range p.Items {
				postIDs[i] = item.PostID
			}
			es.Record(ev.TimelineID, postIDs)
			restored++
		}

		from = page[len(page)-1].Seq + 1
	}
}
