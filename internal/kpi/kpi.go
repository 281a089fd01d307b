// Package kpi computes run health metrics from projected state.
//
// Everything here is pure: callers pass a projection snapshot and the
// action outcome list, and get numbers back. The package never touches
// storage, so the same inputs always yield the same report.
package kpi

import (
	"math"
	"sort"
	"strings"

	"github.com/attentionlab/feedsim/internal/projection"
	"github.com/attentionlab/feedsim/internal/store"
)

// Gini returns the Gini coefficient of values: 0 is perfect equality,
// 1 is perfect inequality. Empty, single-value, and zero-mean inputs
// return 0.
func Gini(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var cumsum, sum float64
	for i, v := range sorted {
		cumsum += float64(2*(i+1)-n-1) * v
		sum += v
	}

	mean := sum / float64(n)
	if mean == 0 {
		return 0
	}
	return cumsum / (float64(n) * float64(n) * mean)
}

// Entropy returns the Shannon entropy of a count distribution, in bits.
func Entropy(counts []int64) float64 {
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}

	var h float64
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / float64(total)
			h -= p * math.Log2(p)
		}
	}
	return h
}

// Counts is the table-size section of a report.
type Counts struct {
	Posts    int64 `json:"posts"`
	Users    int64 `json:"users"`
	Votes    int64 `json:"votes"`
	Comments int64 `json:"comments"`
	Follows  int64 `json:"follows"`
}

// ActionBreakdown summarizes action outcomes by status and reason.
type ActionBreakdown struct {
	Accepted         int64            `json:"accepted"`
	Rejected         int64            `json:"rejected"`
	RejectionReasons map[string]int64 `json:"rejection_reasons"`
}

// Report is the full KPI set for a run.
type Report struct {
	Counts              Counts          `json:"counts"`
	Actions             ActionBreakdown `json:"actions"`
	AttentionGini       float64         `json:"attention_gini"`
	AuthorAttentionGini float64         `json:"author_attention_gini"`
	TopicEntropy        float64         `json:"topic_entropy"`
}

// Compute builds the full report from a snapshot and the per-action
// outcome list.
func Compute(s projection.State, outcomes []store.ActionOutcome) Report {
	return Report{
		Counts: Counts{
			Posts:    int64(len(s.Posts)),
			Users:    int64(len(s.Users)),
			Votes:    int64(len(s.Votes)),
			Comments: int64(len(s.Comments)),
			Follows:  int64(len(s.Follows)),
		},
		Actions:             Breakdown(outcomes),
		AttentionGini:       AttentionGini(s),
		AuthorAttentionGini: AuthorAttentionGini(s),
		TopicEntropy:        TopicEntropy(s),
	}
}

// Breakdown counts accepted and rejected actions and tallies rejection
// reasons.
func Breakdown(outcomes []store.ActionOutcome) ActionBreakdown {
	b := ActionBreakdown{RejectionReasons: make(map[string]int64)}
	for _, o := range outcomes {
		switch o.Status {
		case "accepted":
			b.Accepted++
		case "rejected":
			b.Rejected++
			reason := o.Reason
			if reason == "" {
				reason = "unknown"
			}
			b.RejectionReasons[reason]++
		}
	}
	return b
}

// AttentionGini measures how unevenly engagement (up-votes plus
// comments) is spread across posts. Posts with no engagement count.
func AttentionGini(s projection.State) float64 {
	if len(s.Posts) == 0 {
		return 0
	}

	engagement := engagementByPost(s)
	values := make([]float64, 0, len(s.Posts))
	for _, p := range s.Posts {
		values = append(values, float64(engagement[p.PostID]))
	}
	return Gini(values)
}

// AuthorAttentionGini measures how unevenly engagement is spread across
// content authors.
func AuthorAttentionGini(s projection.State) float64 {
	if len(s.Posts) == 0 {
		return 0
	}

	engagement := engagementByPost(s)
	byAuthor := make(map[string]int64)
	for _, p := range s.Posts {
		byAuthor[p.AuthorID] += engagement[p.PostID]
	}

	values := make([]float64, 0, len(byAuthor))
	for _, total := range byAuthor {
		values = append(values, float64(total))
	}
	return Gini(values)
}

// TopicEntropy measures content diversity. Topic extraction is the
// lowercased first word of each post.
func TopicEntropy(s projection.State) float64 {
	topics := make(map[string]int64)
	for _, p := range s.Posts {
		words := strings.Fields(p.Content)
		if len(words) == 0 {
			continue
		}
		topics[strings.ToLower(words[0])]++
	}
	if len(topics) == 0 {
		return 0
	}

	counts := make([]int64, 0, len(topics))
	for _, c := range topics {
		counts = append(counts, c)
	}
	return Entropy(counts)
}

// TickPoint is one entry of the attention time series.
type TickPoint struct {
	Tick          int64   `json:"tick"`
	AttentionGini float64 `json:"attention_gini"`
	PostCount     int64   `json:"post_count"`
}

// OverTicks computes the attention Gini at every tick up to the last
// post, counting only posts, votes and comments created by then.
func OverTicks(s projection.State) []TickPoint {
	var maxTick int64 = -1
	for _, p := range s.Posts {
		if p.CreatedTick > maxTick {
			maxTick = p.CreatedTick
		}
	}
	if maxTick < 0 {
		return []TickPoint{}
	}

	points := make([]TickPoint, 0, maxTick+1)
	for tick := int64(0); tick <= maxTick; tick++ {
		engagement := make(map[string]int64)
		for _, v := range s.Votes {
			if v.VoteType == "up" && v.CreatedTick <= tick {
				engagement[v.PostID]++
			}
		}
		for _, c := range s.Comments {
			if c.CreatedTick <= tick {
				engagement[c.PostID]++
			}
		}

		values := make([]float64, 0, len(s.Posts))
		for _, p := range s.Posts {
			if p.CreatedTick <= tick {
				values = append(values, float64(engagement[p.PostID]))
			}
		}

		points = append(points, TickPoint{
			Tick:          tick,
			AttentionGini: Gini(values),
			PostCount:     int64(len(values)),
		})
	}
	return points
}

// engagementByPost tallies up-votes plus comments per post id.
func engagementByPost(s projection.State) map[string]int64 {
	engagement := make(map[string]int64)
	for _, v := range s.Votes {
		if v.VoteType == "up" {
			engagement[v.PostID]++
		}
	}
	for _, c := range s.Comments {
		engagement[c.PostID]++
	}
	return engagement
}
