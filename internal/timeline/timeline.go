// Package timeline builds the ranked per-request read model agents act
// against, and owns the exposure bookkeeping that ties later actions back
// to what was actually shown.
package timeline

import (
	"context"
	"fmt"

	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/idgen"
	"github.com/attentionlab/feedsim/internal/ranking"
	"github.com/attentionlab/feedsim/internal/store"
)

// Item is one ranked post in a served timeline, with its feature snapshot
// frozen at serve time.
type Item struct {
	PostID   string
	AuthorID string
	Score    float64
	UpVotes  int64
	Comments int64
	AgeTicks int64
}

// Timeline is what an actor was shown for one request. EventID and Seq
// identify the timeline_served event that recorded it.
type Timeline struct {
	TimelineID string
	ActorID    string
	Tick       int64
	Algorithm  ranking.Algorithm
	K          int64
	Seed       int64
	Items      []Item
	EventID    string
	Seq        int64
}

// PostIDs returns the exposure set of the timeline in rank order.
func (t *Timeline) PostIDs() []string {
	ids := make([]string, len(t.Items))
	for i, item := range t.Items {
		ids[i] = item.PostID
	}
	return ids
}

// Request carries the parameters of one timeline serve.
type Request struct {
	ActorID   string
	Tick      int64
	K         int64
	Algorithm ranking.Algorithm
	Seed      int64
}

// Service serves timelines: candidates from projections, ranked, truncated
// to k, recorded as an exposure set, and logged as a timeline_served event.
type Service struct {
	exposure ExposureStore
	ids      idgen.Generator
}

// NewService creates a timeline service around the given exposure store
// and id generator.
func NewService(exposure ExposureStore, ids idgen.Generator) *Service {
	return &Service{exposure: exposure, ids: ids}
}

// Serve builds and records a timeline inside the caller's transaction
// scope. The timeline_served event is appended and then the exposure
// set is recorded; on failure the caller gets an error and no timeline,
// and no exposure set exists for an event that never reached the log.
func (s *Service) Serve(ctx context.Context, q *store.Queries, req Request) (*Timeline, error) {
	if !req.Algorithm.Valid() {
		return nil, fmt.Errorf("serve timeline: %w: %q", ranking.ErrUnknownAlgorithm, req.Algorithm)
	}

	cands, err := q.Candidates(ctx, req.Tick)
	if err != nil {
		return nil, fmt.Errorf("serve timeline: %w", err)
	}

	ranked, err := ranking.Rank(cands, req.Algorithm, req.Tick, req.Seed)
	if err != nil {
		return nil, fmt.Errorf("serve timeline: %w", err)
	}

	k := req.K
	if k < 0 {
		k = 0
	}
	if int64(len(ranked)) > k {
		ranked = ranked[:k]
	}

	items := make([]Item, len(ranked))
	payloadItems := make([]event.TimelineItem, len(ranked))
	postIDs := make([]string, len(ranked))
	for i, sc := range ranked {
		items[i] = Item{
			PostID:   sc.PostID,
			AuthorID: sc.AuthorID,
			Score:    sc.Score,
			UpVotes:  sc.UpVotes,
			Comments: sc.Comments,
			AgeTicks: sc.AgeTicks,
		}
		payloadItems[i] = event.TimelineItem{
			PostID:   sc.PostID,
			AuthorID: sc.AuthorID,
			Score:    ranking.FormatScore(sc.Score),
			UpVotes:  sc.UpVotes,
			Comments: sc.Comments,
			AgeTicks: sc.AgeTicks,
		}
		postIDs[i] = sc.PostID
	}

	timelineID := s.ids.TimelineID()

	ev := event.Event{
		ID:             s.ids.EventID(),
		Kind:           event.KindTimelineServed,
		Tick:           req.Tick,
		Actor:          req.ActorID,
		TimelineID:     timelineID,
		RankingVersion: ranking.Version,
		Seed:           event.SeedOf(req.Seed),
		Payload: event.TimelineServedPayload{
			Algorithm: string(req.Algorithm),
			K:         req.K,
			Items:     payloadItems,
		},
	}
	seq, err := q.AppendEvent(ctx, &ev)
	if err != nil {
		return nil, fmt.Errorf("serve timeline: %w", err)
	}

	// Record only after the timeline_served fact is in the log, so the
	// exposure set never outlives a rolled-back append.
	s.exposure.Record(timelineID, postIDs)

	return &Timeline{
		TimelineID: timelineID,
		ActorID:    req.ActorID,
		Tick:       req.Tick,
		Algorithm:  req.Algorithm,
		K:          req.K,
		Seed:       req.Seed,
		Items:      items,
		EventID:    ev.ID,
		Seq:        seq,
	}, nil
}
