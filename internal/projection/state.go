package projection

import (
	"context"
	"fmt"

	"github.com/attentionlab/feedsim/internal/event"
	"github.com/attentionlab/feedsim/internal/store"
)

// State is a full snapshot of the projection tables, each table ordered by
// its primary key. Two states with the same rows are identical snapshots,
// no matter how they were built.
type State struct {
	Users    []store.User
	Posts    []store.Post
	Comments []store.Comment
	Votes    []store.Vote
	Follows  []store.Follow
}

// Snapshot reads all projection tables into a State.
func Snapshot(ctx context.Context, q *store.Queries) (State, error) {
	var (
		s   State
		err error
	)

	if s.Users, err = q.ListUsers(ctx); err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}
	if s.Posts, err = q.ListPosts(ctx); err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}
	if s.Comments, err = q.ListComments(ctx); err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}
	if s.Votes, err = q.ListVotes(ctx); err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}
	if s.Follows, err = q.ListFollows(ctx); err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}

	return s, nil
}

// CanonicalState renders a snapshot as canonical JSON. Row order within
// each table follows the snapshot's primary-key ordering and field order
// follows canonical key sorting, so equal states yield equal bytes.
func CanonicalState(s State) ([]byte, error) {
	users := make([]any, len(s.Users))
	for i, u := range s.Users {
		users[i] = map[string]any{
			"user_id":      u.UserID,
			"username":     u.Username,
			"created_tick": u.CreatedTick,
		}
	}

	posts := make([]any, len(s.Posts))
	for i, p := range s.Posts {
		posts[i] = map[string]any{
			"post_id":      p.PostID,
			"author_id":    p.AuthorID,
			"content":      p.Content,
			"created_tick": p.CreatedTick,
		}
	}

	comments := make([]any, len(s.Comments))
	for i, c := range s.Comments {
		comments[i] = map[string]any{
			"comment_id":   c.CommentID,
			"post_id":      c.PostID,
			"author_id":    c.AuthorID,
			"content":      c.Content,
			"created_tick": c.CreatedTick,
		}
	}

	votes := make([]any, len(s.Votes))
	for i, v := range s.Votes {
		votes[i] = map[string]any{
			"vote_id":      v.VoteID,
			"post_id":      v.PostID,
			"user_id":      v.UserID,
			"vote_type":    v.VoteType,
			"created_tick": v.CreatedTick,
		}
	}

	follows := make([]any, len(s.Follows))
	for i, f := range s.Follows {
		follows[i] = map[string]any{
			"follower_id":  f.FollowerID,
			"followee_id":  f.FolloweeID,
			"created_tick": f.CreatedTick,
		}
	}

	return event.MarshalCanonical(map[string]any{
		"users":    users,
		"posts":    posts,
		"comments": comments,
		"votes":    votes,
		"follows":  follows,
	})
}

// ContentHash computes the domain-separated digest of a snapshot. Equal
// hashes prove two projections are observationally identical; it is the
// check behind replay verification.
func ContentHash(s State) (string, error) {
	data, err := CanonicalState(s)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return event.HashWithDomain(event.DomainState, data), nil
}
