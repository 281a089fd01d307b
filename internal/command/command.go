// Package command validates proposed agent actions and records their
// outcome in the event log.
//
// Process runs an ordered, short-circuiting pipeline: idempotency,
// exposure tie, referential existence, business rules. Every call
// appends exactly one action event, accepted or rejected, except when
// the operation id was already seen: duplicates return a rejection
// without touching the log. Rejected events carry a machine-readable
// reason and never mutate projections.
package command

import (
	"context"
	"fmt"

	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/idgen"
	"github.com/attentionlab/feedsim/internal/projection"
	"github.com/attentionlab/feedsim/internal/ranking"
	"github.com/attentionlab/feedsim/internal/store"
	"github.com/attentionlab/feedsim/internal/timeline"
)

// Rejection reasons returned in ActionResult and recorded on rejected
// action events.
const (
	ReasonDuplicateOpID       = "duplicate_op_id"
	ReasonInvalidTimelineID   = "invalid_timeline_id"
	ReasonTargetNotInTimeline = "target_not_in_timeline"
	ReasonPostNotFound        = "post_not_found"
	ReasonUserNotFound        = "user_not_found"
	ReasonAlreadyLiked        = "already_liked"
	ReasonNotLiked            = "not_liked"
	ReasonCannotFollowSelf    = "cannot_follow_self"
	ReasonAlreadyFollowing    = "already_following"
	ReasonNotFollowing        = "not_following"
)

// Action is a proposed agent action, not yet admitted to the log.
//
// OpID is the caller's idempotency key and must be unique per logical
// attempt. TimelineID names the timeline the actor was acting from and
// is required for like, unlike and comment. Position, when nonzero, is
// the 1-based rank of the target in that timeline. ModelVersion and
// PromptVersion are audit tags for model-composed actions.
type Action struct {
	OpID          string
	Actor         string
	Kind          event.ActionKind
	TargetID      string
	Content       string
	TimelineID    string
	Position      int64
	ModelVersion  string
	PromptVersion string
}

// Result is the terminal outcome of a processed action. EventID is set
// only when the action was accepted; Reason only when it was rejected.
type Result struct {
	Status  event.Status
	Reason  string
	EventID string
}

// Accepted reports whether the action was admitted to projections.
func (r *Result) Accepted() bool { return r.Status == event.StatusAccepted }

// Processor runs the action validation pipeline. The exposure store is
// injected so validation never reads the event log to answer fairness
// checks.
type Processor struct {
	exposure timeline.ExposureStore
	ids      idgen.Generator
}

// NewProcessor returns a Processor using the given exposure store and
// id generator.
func NewProcessor(exposure timeline.ExposureStore, ids idgen.Generator) *Processor {
	return &Processor{exposure: exposure, ids: ids}
}

// Process validates act and records its outcome at the given tick.
//
// Callers must run Process inside a single transaction so the
// validation reads, the append and the projection fold commit as one
// unit. A returned error means storage failed and nothing was recorded;
// rejections are results, not errors.
func (p *Processor) Process(ctx context.Context, q *store.Queries, act Action, tick int64) (*Result, error) {
	if !act.Kind.Valid() {
		return nil, fmt.Errorf("process action: unknown action kind %q", act.Kind)
	}

	seen, err := q.OperationExists(ctx, act.OpID)
	if err != nil {
		return nil, fmt.Errorf("process action: %w", err)
	}
	if seen {
		// Dropped, not double-recorded. The original outcome is already
		// final in the log.
		return &Result{Status: event.StatusRejected, Reason: ReasonDuplicateOpID}, nil
	}

	reason, err := p.validate(ctx, q, act)
	if err != nil {
		return nil, fmt.Errorf("process action: %w", err)
	}

	status := event.StatusAccepted
	if reason != "" {
		status = event.StatusRejected
	}

	// Post identity does not exist before acceptance.
	targetID := act.TargetID
	if act.Kind == event.ActionPost && status == event.StatusAccepted {
		targetID = p.ids.PostID()
	}

	ev := event.Event{
		ID:             p.ids.EventID(),
		Kind:           event.KindAction,
		Tick:           tick,
		Actor:          act.Actor,
		OpID:           act.OpID,
		TimelineID:     act.TimelineID,
		RankingVersion: ranking.Version,
		ModelVersion:   act.ModelVersion,
		PromptVersion:  act.PromptVersion,
		Status:         status,
		Reason:         reason,
		Payload: event.ActionPayload{
			Action:   act.Kind,
			TargetID: targetID,
			Content:  act.Content,
			Position: act.Position,
		},
	}
	if _, err := q.AppendEvent(ctx, &ev); err != nil {
		return nil, fmt.Errorf("process action: %w", err)
	}

	if status == event.StatusAccepted {
		if err := projection.Apply(ctx, q, ev); err != nil {
			return nil, fmt.Errorf("process action: %w", err)
		}
		return &Result{Status: status, EventID: ev.ID}, nil
	}
	return &Result{Status: status, Reason: reason}, nil
}

// validate runs pipeline steps 2 through 4 and returns the first
// rejection reason, or empty when the action passes.
func (p *Processor) validate(ctx context.Context, q *store.Queries, act Action) (string, error) {
	switch act.Kind {
	case event.ActionLike, event.ActionUnlike, event.ActionComment:
		// Actors may only engage with what they were actually shown.
		if !p.exposure.Has(act.TimelineID) {
			return ReasonInvalidTimelineID, nil
		}
		if !p.exposure.Contains(act.TimelineID, act.TargetID) {
			return ReasonTargetNotInTimeline, nil
		}
		ok, err := q.PostExists(ctx, act.TargetID)
		if err != nil {
			return "", err
		}
		if !ok {
			return ReasonPostNotFound, nil
		}
	case event.ActionFollow, event.ActionUnfollow:
		ok, err := q.UserExists(ctx, act.TargetID)
		if err != nil {
			return "", err
		}
		if !ok {
			return ReasonUserNotFound, nil
		}
	}

	switch act.Kind {
	case event.ActionLike:
		liked, err := q.HasVote(ctx, act.TargetID, act.Actor)
		if err != nil {
			return "", err
		}
		if liked {
			return ReasonAlreadyLiked, nil
		}
	case event.ActionUnlike:
		liked, err := q.HasVote(ctx, act.TargetID, act.Actor)
		if err != nil {
			return "", err
		}
		if !liked {
			return ReasonNotLiked, nil
		}
	case event.ActionFollow:
		if act.Actor == act.TargetID {
			return ReasonCannotFollowSelf, nil
		}
		following, err := q.IsFollowing(ctx, act.Actor, act.TargetID)
		if err != nil {
			return "", err
		}
		if following {
			return ReasonAlreadyFollowing, nil
		}
	case event.ActionUnfollow:
		following, err := q.IsFollowing(ctx, act.Actor, act.TargetID)
		if err != nil {
			return "", err
		}
		if !following {
			return ReasonNotFollowing, nil
		}
	}

	return "", nil
}
