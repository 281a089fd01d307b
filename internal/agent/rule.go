package agent

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/attentionlab/feedsim/internal/timeline"
)

// Rule is the default strategy: one seeded draw per plan walked down
// the probability ladder, and numbered templates for text. A single
// Rule value backs both capabilities so a model-backed strategy can
// reuse it as its fallback without forking the PRNG stream or the
// counters.
type Rule struct {
	username string
	probs    Probabilities
	rng      *rand.Rand
	stats    *Stats
}

// NewRule builds a rule strategy sharing the caller's PRNG and stats.
func NewRule(username string, probs Probabilities, rng *rand.Rand, stats *Stats) *Rule {
	return &Rule{username: username, probs: probs, rng: rng, stats: stats}
}

// Plan draws once and walks the ladder. Engagement bands are skipped
// entirely when the timeline is empty; posting is always available.
func (r *Rule) Plan(_ context.Context, tl *timeline.Timeline) (Intent, error) {
	draw := r.rng.Float64()

	if draw < r.probs.Post {
		return IntentPost, nil
	}
	draw -= r.probs.Post

	if len(tl.Items) > 0 {
		if draw < r.probs.Like {
			return IntentLike, nil
		}
		draw -= r.probs.Like

		if draw < r.probs.Comment {
			return IntentComment, nil
		}
		draw -= r.probs.Comment

		if draw < r.probs.Follow {
			return IntentFollow, nil
		}
	}

	return IntentIdle, nil
}

// ComposePost numbers the post and stamps author and tick into the
// template.
func (r *Rule) ComposePost(_ context.Context, tick int64) (string, error) {
	r.stats.Posts++
	return fmt.Sprintf("Post #%d from %s at tick %d", r.stats.Posts, r.username, tick), nil
}

// ComposeComment numbers the comment against a truncated target id.
func (r *Rule) ComposeComment(_ context.Context, postID string) (string, error) {
	r.stats.Comments++
	return fmt.Sprintf("Comment #%d on %s by %s", r.stats.Comments, shortID(postID), r.username), nil
}
