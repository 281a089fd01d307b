package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/attentionlab/feedsim/internal/timeline"
)

// PromptVersion tags actions planned or composed by the current prompt
// set.
const PromptVersion = "p1"

// DefaultTemperature is the sampling temperature for planning and
// composition calls.
const DefaultTemperature = 0.7

// Token budgets per call. Planning needs one word; composition a short
// paragraph.
const (
	planMaxTokens    = 10
	composeMaxTokens = 100
)

// ChatClient is the one-shot generation surface the model strategy
// calls. *OllamaClient satisfies it.
type ChatClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// LLM plans and composes through a chat model. Model failures never
// propagate: they fall back to the rule strategy, and a planning reply
// that names no intent reads as idle. It implements Planner and
// Composer.
type LLM struct {
	client      ChatClient
	username    string
	temperature float64
	stats       *Stats
	fallback    *Rule
}

// NewLLM builds a model-backed strategy around client. fallback absorbs
// every model failure and shares the stats counters so numbering stays
// continuous across fallbacks.
func NewLLM(client ChatClient, username string, stats *Stats, fallback *Rule) *LLM {
	return &LLM{
		client:      client,
		username:    username,
		temperature: DefaultTemperature,
		stats:       stats,
		fallback:    fallback,
	}
}

// Plan asks the model for a one-word decision over the timeline.
func (l *LLM) Plan(ctx context.Context, tl *timeline.Timeline) (Intent, error) {
	system := fmt.Sprintf(`You are %s, a user on a social network.
Based on the timeline, decide what action to take.

Available actions:
- idle: Do nothing this turn
- post: Create a new post
- like: Like a post from the timeline
- comment: Comment on a post from the timeline
- follow: Follow the author of a post

Consider:
- The content and engagement of posts in the timeline
- Your past behavior (you've made %d posts, %d likes, %d comments)
- Whether you want to engage with existing content or create your own`,
		l.username, l.stats.Posts, l.stats.Likes, l.stats.Comments)

	prompt := fmt.Sprintf(`Timeline:
%s

What do you want to do? Respond with exactly one word: idle, post, like, comment, or follow.`,
		timelineSummary(tl))

	reply, err := l.client.Generate(ctx, GenerateRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: l.temperature,
		MaxTokens:   planMaxTokens,
	})
	if err != nil {
		slog.Warn("model plan failed, using rule plan", "agent", l.username, "error", err)
		return l.fallback.Plan(ctx, tl)
	}

	if intent, ok := ParseIntent(reply); ok {
		return intent, nil
	}
	return IntentIdle, nil
}

// ComposePost asks the model for a short original post.
func (l *LLM) ComposePost(ctx context.Context, tick int64) (string, error) {
	system := fmt.Sprintf(`You are %s, a user on a social network.
Write an engaging, original post. Be creative, conversational, and authentic.
Keep it under 280 characters.`, l.username)

	prompt := fmt.Sprintf(`Write a social media post for tick %d.

This is post #%d from you. Make it interesting and varied!

Post:`, tick, l.stats.Posts+1)

	text, err := l.client.Generate(ctx, GenerateRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: l.temperature,
		MaxTokens:   composeMaxTokens,
	})
	if err != nil {
		slog.Warn("model compose failed, using template", "agent", l.username, "error", err)
		return l.fallback.ComposePost(ctx, tick)
	}

	l.stats.Posts++
	return text, nil
}

// ComposeComment asks the model for a short comment on the target post.
func (l *LLM) ComposeComment(ctx context.Context, postID string) (string, error) {
	system := fmt.Sprintf(`You are %s, commenting on a social network.
Write a thoughtful, engaging comment. Be authentic and add value to the conversation.
Keep it under 280 characters.`, l.username)

	prompt := fmt.Sprintf(`Write a comment on post %s.

This is comment #%d from you.

Comment:`, shortID(postID), l.stats.Comments+1)

	text, err := l.client.Generate(ctx, GenerateRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: l.temperature,
		MaxTokens:   composeMaxTokens,
	})
	if err != nil {
		slog.Warn("model compose failed, using template", "agent", l.username, "error", err)
		return l.fallback.ComposeComment(ctx, postID)
	}

	l.stats.Comments++
	return text, nil
}

// timelineSummary renders the top items the way the planning prompt
// shows them to the model.
func timelineSummary(tl *timeline.Timeline) string {
	if len(tl.Items) == 0 {
		return "Timeline is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d posts in timeline:\n", len(tl.Items))
	for i, item := range tl.Items {
		if i == targetPoolSize {
			break
		}
		fmt.Fprintf(&b, "  %d. Post %s (score: %.2f, votes: %d, comments: %d)\n",
			i+1, shortID(item.PostID), item.Score, item.UpVotes, item.Comments)
	}
	return b.String()
}
