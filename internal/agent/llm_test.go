package agent

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attentionlab/feedsim/internal/timeline"
)

// stubChat answers every Generate call with a canned reply or error and
// records the requests it saw.
type stubChat struct {
	reply    string
	err      error
	requests []GenerateRequest
}

func (s *stubChat) Generate(_ context.Context, req GenerateRequest) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestLLM(chat ChatClient, probs Probabilities) (*LLM, *Stats) {
	stats := &Stats{}
	rule := NewRule("user_0007", probs, rand.New(rand.NewPCG(7, 7)), stats)
	return NewLLM(chat, "user_0007", stats, rule), stats
}

func TestLLM_PlanParsesReply(t *testing.T) {
	chat := &stubChat{reply: "post"}
	llm, _ := newTestLLM(chat, Probabilities{Like: 1})

	got, err := llm.Plan(context.Background(), servedTimeline())
	require.NoError(t, err)
	assert.Equal(t, IntentPost, got)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, planMaxTokens, req.MaxTokens)
	assert.Equal(t, DefaultTemperature, req.Temperature)
	assert.Contains(t, req.System, "You are user_0007")
	assert.Contains(t, req.System, "you've made 0 posts, 0 likes, 0 comments")
	assert.Contains(t, req.Prompt, "Timeline is empty.")
	assert.Contains(t, req.Prompt, "Respond with exactly one word")
}

func TestLLM_PlanSummarizesTopItems(t *testing.T) {
	chat := &stubChat{reply: "like"}
	llm, _ := newTestLLM(chat, Probabilities{})

	items := make([]timeline.Item, 7)
	for i := range items {
		items[i] = timeline.Item{
			PostID:   "post-aaaaaaaaaa",
			AuthorID: "user-9",
			Score:    float64(7 - i),
			UpVotes:  int64(i),
		}
	}
	_, err := llm.Plan(context.Background(), servedTimeline(items...))
	require.NoError(t, err)

	prompt := chat.requests[0].Prompt
	assert.Contains(t, prompt, "7 posts in timeline:")
	assert.Contains(t, prompt, "1. Post post-aaa (score: 7.00, votes: 0, comments: 0)")
	assert.Contains(t, prompt, "5. Post post-aaa")
	assert.NotContains(t, prompt, "6. Post")
}

func TestLLM_PlanUnparseableReadsAsIdle(t *testing.T) {
	chat := &stubChat{reply: "ponder the void"}
	// A like-everything fallback would return like if it were consulted.
	llm, _ := newTestLLM(chat, Probabilities{Like: 1})

	tl := servedTimeline(timeline.Item{PostID: "post-aaaaaaaaaa", AuthorID: "user-9"})
	got, err := llm.Plan(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, IntentIdle, got)
}

func TestLLM_PlanFallsBackOnError(t *testing.T) {
	chat := &stubChat{err: errors.New("connection refused")}
	llm, _ := newTestLLM(chat, Probabilities{Post: 1})

	got, err := llm.Plan(context.Background(), servedTimeline())
	require.NoError(t, err)
	assert.Equal(t, IntentPost, got)
}

func TestLLM_ComposePostNumbersFromStats(t *testing.T) {
	chat := &stubChat{reply: "Big day on the feed."}
	llm, stats := newTestLLM(chat, Probabilities{})
	stats.Posts = 2

	text, err := llm.ComposePost(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Big day on the feed.", text)
	assert.Equal(t, int64(3), stats.Posts)

	req := chat.requests[0]
	assert.Equal(t, composeMaxTokens, req.MaxTokens)
	assert.Contains(t, req.Prompt, "post for tick 9")
	assert.Contains(t, req.Prompt, "This is post #3 from you")
	assert.Contains(t, req.System, "Keep it under 280 characters")
}

func TestLLM_ComposePostFallsBackToTemplate(t *testing.T) {
	chat := &stubChat{err: errors.New("model not loaded")}
	llm, stats := newTestLLM(chat, Probabilities{})

	text, err := llm.ComposePost(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "Post #1 from user_0007 at tick 4", text)
	assert.Equal(t, int64(1), stats.Posts)
}

func TestLLM_ComposeCommentTruncatesTarget(t *testing.T) {
	chat := &stubChat{reply: "Strong agree."}
	llm, stats := newTestLLM(chat, Probabilities{})

	text, err := llm.ComposeComment(context.Background(), "post-abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, "Strong agree.", text)
	assert.Equal(t, int64(1), stats.Comments)

	req := chat.requests[0]
	assert.Contains(t, req.Prompt, "comment on post post-abc")
	assert.Contains(t, req.Prompt, "This is comment #1 from you")
	assert.False(t, strings.Contains(req.Prompt, "post-abcdefghij"))
}

func TestLLM_ComposeCommentFallsBackToTemplate(t *testing.T) {
	chat := &stubChat{err: errors.New("model not loaded")}
	llm, stats := newTestLLM(chat, Probabilities{})

	text, err := llm.ComposeComment(context.Background(), "post-abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, "Comment #1 on post-abc by user_0007", text)
	assert.Equal(t, int64(1), stats.Comments)
}

func TestWithOllama_InstallsStrategyAndTags(t *testing.T) {
	// The transport refuses every call, so each submission exercises
	// the full fallback path while keeping the model's audit tags.
	client := NewOllamaClient(OllamaConfig{
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			}),
		},
	})
	a := New(Config{
		AgentID:       "agent_0001",
		Username:      "user_0001",
		Seed:          1,
		Probabilities: Probabilities{Post: 1},
	}, WithOllama(client))
	sink := &recordingSink{}

	results, err := a.Act(context.Background(), sink, servedTimeline())
	require.NoError(t, err)
	require.Len(t, results, DefaultMaxActionsPerTick)

	for _, act := range sink.actions {
		assert.Equal(t, DefaultOllamaModel, act.ModelVersion)
		assert.Equal(t, PromptVersion, act.PromptVersion)
	}
	assert.Equal(t, "Post #1 from user_0001 at tick 5", sink.actions[0].Content)
}
