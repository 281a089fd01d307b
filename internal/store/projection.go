package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/attentionlab/feedsim/internal/ranking"
)

// candidateLimit caps how many posts enter a ranking pass.
const candidateLimit = 100

// User is a row of the users projection table.
type User struct {
	UserID      string
	Username    string
	CreatedTick int64
}

// Post is a row of the posts projection table.
type Post struct {
	PostID      string
	AuthorID    string
	Content     string
	CreatedTick int64
}

// Comment is a row of the comments projection table.
type Comment struct {
	CommentID   string
	PostID      string
	AuthorID    string
	Content     string
	CreatedTick int64
}

// Vote is a row of the votes projection table.
type Vote struct {
	VoteID      string
	PostID      string
	UserID      string
	VoteType    string
	CreatedTick int64
}

// Follow is a row of the follows projection table.
type Follow struct {
	FollowerID  string
	FolloweeID  string
	CreatedTick int64
}

// InsertUser records a user row. Re-inserting the same user id is a no-op
// so folds stay idempotent across replays.
func (q *Queries) InsertUser(ctx context.Context, u User) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (user_id, username, created_tick)
		VALUES (?, ?, ?)
	`, u.UserID, u.Username, u.CreatedTick)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// InsertPost records a post row.
func (q *Queries) InsertPost(ctx context.Context, p Post) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO posts (post_id, author_id, content, created_tick)
		VALUES (?, ?, ?, ?)
	`, p.PostID, p.AuthorID, p.Content, p.CreatedTick)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// InsertComment records a comment row.
func (q *Queries) InsertComment(ctx context.Context, c Comment) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO comments (comment_id, post_id, author_id, content, created_tick)
		VALUES (?, ?, ?, ?, ?)
	`, c.CommentID, c.PostID, c.AuthorID, c.Content, c.CreatedTick)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// InsertVote records a vote row. The UNIQUE(post_id, user_id) constraint
// makes a second vote by the same user on the same post a no-op.
func (q *Queries) InsertVote(ctx context.Context, v Vote) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO votes (vote_id, post_id, user_id, vote_type, created_tick)
		VALUES (?, ?, ?, ?, ?)
	`, v.VoteID, v.PostID, v.UserID, v.VoteType, v.CreatedTick)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// DeleteVote removes a user's vote on a post. Deleting a vote that does
// not exist is a no-op.
func (q *Queries) DeleteVote(ctx context.Context, postID, userID string) error {
	_, err := q.q.ExecContext(ctx, `
		DELETE FROM votes WHERE post_id = ? AND user_id = ?
	`, postID, userID)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return nil
}

// InsertFollow records a follow edge. Re-following is a no-op.
func (q *Queries) InsertFollow(ctx context.Context, f Follow) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO follows (follower_id, followee_id, created_tick)
		VALUES (?, ?, ?)
	`, f.FollowerID, f.FolloweeID, f.CreatedTick)
	if err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

// DeleteFollow removes a follow edge. Removing an absent edge is a no-op.
func (q *Queries) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	_, err := q.q.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = ? AND followee_id = ?
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

// UserExists reports whether a user row exists.
func (q *Queries) UserExists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, `
		SELECT 1 FROM users WHERE user_id = ?
	`, userID).Scan(&one)
	return existsResult(err, "check user")
}

// PostExists reports whether a post row exists.
func (q *Queries) PostExists(ctx context.Context, postID string) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, `
		SELECT 1 FROM posts WHERE post_id = ?
	`, postID).Scan(&one)
	return existsResult(err, "check post")
}

// HasVote reports whether the user currently has a vote on the post.
func (q *Queries) HasVote(ctx context.Context, postID, userID string) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, `
		SELECT 1 FROM votes WHERE post_id = ? AND user_id = ?
	`, postID, userID).Scan(&one)
	return existsResult(err, "check vote")
}

// IsFollowing reports whether the follow edge exists.
func (q *Queries) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, `
		SELECT 1 FROM follows WHERE follower_id = ? AND followee_id = ?
	`, followerID, followeeID).Scan(&one)
	return existsResult(err, "check follow")
}

// Candidates returns the ranking input set for a timeline request at the
// given tick. Posts created after the tick are outside the window and
// never rank. Ordering is part of the engine's determinism contract:
// newest posts first, post id descending as the within-tick tie split,
// truncated to the candidate cap before any scoring happens.
func (q *Queries) Candidates(ctx context.Context, tick int64) ([]ranking.Candidate, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT p.post_id, p.author_id, p.created_tick,
		       COALESCE(v.ups, 0) AS up_votes,
		       COALESCE(c.n, 0) AS comments
		FROM posts p
		LEFT JOIN (
			SELECT post_id, COUNT(*) AS ups FROM votes
			WHERE vote_type = 'up' GROUP BY post_id
		) v ON v.post_id = p.post_id
		LEFT JOIN (
			SELECT post_id, COUNT(*) AS n FROM comments GROUP BY post_id
		) c ON c.post_id = p.post_id
		WHERE p.created_tick <= ?
		ORDER BY p.created_tick DESC, p.post_id DESC
		LIMIT ?
	`, tick, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var cands []ranking.Candidate
	for rows.Next() {
		var c ranking.Candidate
		if err := rows.Scan(&c.PostID, &c.AuthorID, &c.CreatedTick, &c.UpVotes, &c.Comments); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.AgeTicks = tick - c.CreatedTick
		cands = append(cands, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	if cands == nil {
		cands = []ranking.Candidate{}
	}

	return cands, nil
}

// ListUsers returns every user row ordered by user id.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT user_id, username, created_tick FROM users ORDER BY user_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.Username, &u.CreatedTick); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// ListPosts returns every post row ordered by post id.
func (q *Queries) ListPosts(ctx context.Context) ([]Post, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT post_id, author_id, content, created_tick FROM posts ORDER BY post_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.PostID, &p.AuthorID, &p.Content, &p.CreatedTick); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// ListComments returns every comment row ordered by comment id.
func (q *Queries) ListComments(ctx context.Context) ([]Comment, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT comment_id, post_id, author_id, content, created_tick
		FROM comments ORDER BY comment_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.CommentID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedTick); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

// ListVotes returns every vote row ordered by vote id.
func (q *Queries) ListVotes(ctx context.Context) ([]Vote, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT vote_id, post_id, user_id, vote_type, created_tick
		FROM votes ORDER BY vote_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	var votes []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.VoteID, &v.PostID, &v.UserID, &v.VoteType, &v.CreatedTick); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	if votes == nil {
		votes = []Vote{}
	}
	return votes, nil
}

// ListFollows returns every follow edge ordered by follower then followee.
func (q *Queries) ListFollows(ctx context.Context) ([]Follow, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT follower_id, followee_id, created_tick
		FROM follows ORDER BY follower_id ASC, followee_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}
	defer rows.Close()

	var follows []Follow
	for rows.Next() {
		var f Follow
		if err := rows.Scan(&f.FollowerID, &f.FolloweeID, &f.CreatedTick); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		follows = append(follows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follows: %w", err)
	}
	if follows == nil {
		follows = []Follow{}
	}
	return follows, nil
}

// ResetProjections clears every projection table while leaving the event
// log untouched. Replay rebuilds the tables from the log afterwards.
func (q *Queries) ResetProjections(ctx context.Context) error {
	for _, table := range []string{"votes", "follows", "comments", "posts", "users"} {
		if _, err := q.q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func existsResult(err error, op string) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("%s: %w", op, err)
}
