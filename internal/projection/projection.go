// Package projection folds log events into the derived read-model tables.
//
// The fold is the single unit shared by live processing and replay: both
// paths push every event through Apply, so the two can only diverge if the
// log itself differs. Rejected events and system events fold to nothing.
package projection

import (
	"context"
	"fmt"

	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/store"
)

// Apply folds one event into the projection tables. It is total over the
// known event kinds: kinds that carry no state change return nil without
// touching storage. Mutations are idempotent so double-applying an event
// cannot corrupt derived state.
func Apply(ctx context.Context, q *store.Queries, ev event.Event) error {
	switch ev.Kind {
	case event.KindUserCreated:
		p, ok := ev.Payload.(event.UserCreatedPayload)
		if !ok {
			return fmt.Errorf("apply %s: payload is %T, want UserCreatedPayload", ev.ID, ev.Payload)
		}
		return q.InsertUser(ctx, store.User{
			UserID:      ev.Actor,
			Username:    p.Username,
			CreatedTick: ev.Tick,
		})

	case event.KindAction:
		if ev.Status != event.StatusAccepted {
			return nil
		}
		p, ok := ev.Payload.(event.ActionPayload)
		if !ok {
			return fmt.Errorf("apply %s: payload is %T, want ActionPayload", ev.ID, ev.Payload)
		}
		return applyAction(ctx, q, ev, p)

	case event.KindTimelineServed, event.KindAdvanceTick,
		event.KindRunStarted, event.KindRunConfig:
		return nil

	default:
		return fmt.Errorf("apply %s: unknown event kind %q", ev.ID, ev.Kind)
	}
}

func applyAction(ctx context.Context, q *store.Queries, ev event.Event, p event.ActionPayload) error {
	switch p.Action {
	case event.ActionPost:
		// The post id was minted at acceptance and travels in the payload.
		return q.InsertPost(ctx, store.Post{
			PostID:      p.TargetID,
			AuthorID:    ev.Actor,
			Content:     p.Content,
			CreatedTick: ev.Tick,
		})

	case event.ActionComment:
		return q.InsertComment(ctx, store.Comment{
			CommentID:   ev.ID,
			PostID:      p.TargetID,
			AuthorID:    ev.Actor,
			Content:     p.Content,
			CreatedTick: ev.Tick,
		})

	case event.ActionLike:
		return q.InsertVote(ctx, store.Vote{
			VoteID:      ev.ID,
			PostID:      p.TargetID,
			UserID:      ev.Actor,
			VoteType:    "up",
			CreatedTick: ev.Tick,
		})

	case event.ActionUnlike:
		return q.DeleteVote(ctx, p.TargetID, ev.Actor)

	case event.ActionFollow:
		return q.InsertFollow(ctx, store.Follow{
			FollowerID:  ev.Actor,
			FolloweeID:  p.TargetID,
			CreatedTick: ev.Tick,
		})

	case event.ActionUnfollow:
		return q.DeleteFollow(ctx, ev.Actor, p.TargetID)

	default:
		return fmt.Errorf("apply %s: unknown action kind %q", ev.ID, p.Action)
	}
}
