package event

import (
	"encoding/json"
	"fmt"
)

// Payload is the kind-specific body of an event. The union is closed:
// exactly one payload type exists per event kind, so the projection fold
// can switch over payload types exhaustively instead of probing loosely
// typed maps at runtime.
type Payload interface {
	PayloadKind() Kind

	// canonicalMap returns the payload as plain values suitable for
	// MarshalCanonical. Implementing it seals the union to this package.
	canonicalMap() map[string]any
}

// TimelineItem is one ranked entry inside a timeline_served payload.
//
// Score is a fixed six-decimal string so the stored encoding stays
// float-free; the live read model keeps numeric scores.
type TimelineItem struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Score    string `json:"score"`
	UpVotes  int64  `json:"up_votes"`
	Comments int64  `json:"comments"`
	AgeTicks int64  `json:"age_ticks"`
}

// TimelineServedPayload records what a timeline response contained.
// The post ids listed here are the exposure set for the timeline id.
type TimelineServedPayload struct {
	Algorithm string         `json:"algorithm"`
	K         int64          `json:"k"`
	Items     []TimelineItem `json:"items"`
}

func (TimelineServedPayload) PayloadKind() Kind { return KindTimelineServed }

func (p TimelineServedPayload) canonicalMap() map[string]any {
	items := make([]any, len(p.Items))
	for i, it := range p.Items {
		items[i] = map[string]any{
			"post_id":   it.PostID,
			"author_id": it.AuthorID,
			"score":     it.Score,
			"up_votes":  it.UpVotes,
			"comments":  it.Comments,
			"age_ticks": it.AgeTicks,
		}
	}
	return map[string]any{
		"algorithm": p.Algorithm,
		"k":         p.K,
		"items":     items,
	}
}

// ActionPayload is the detail of an attempted action, recorded whether the
// action was accepted or rejected. For accepted post actions TargetID holds
// the server-minted post id; for everything else it is the id the actor
// supplied. Position, when set, is the 1-based rank of the target in the
// timeline the actor acted from; zero means the actor did not report one.
type ActionPayload struct {
	Action   ActionKind `json:"action"`
	TargetID string     `json:"target_id,omitempty"`
	Content  string     `json:"content,omitempty"`
	Position int64      `json:"position,omitempty"`
}

func (ActionPayload) PayloadKind() Kind { return KindAction }

func (p ActionPayload) canonicalMap() map[string]any {
	m := map[string]any{"action": string(p.Action)}
	if p.TargetID != "" {
		m["target_id"] = p.TargetID
	}
	if p.Content != "" {
		m["content"] = p.Content
	}
	if p.Position != 0 {
		m["position"] = p.Position
	}
	return m
}

// AdvanceTickPayload records a logical clock advance.
type AdvanceTickPayload struct {
	FromTick int64 `json:"from_tick"`
	ToTick   int64 `json:"to_tick"`
}

func (AdvanceTickPayload) PayloadKind() Kind { return KindAdvanceTick }

func (p AdvanceTickPayload) canonicalMap() map[string]any {
	return map[string]any{"from_tick": p.FromTick, "to_tick": p.ToTick}
}

// RunStartedPayload marks the beginning of a simulation run. Audit only.
type RunStartedPayload struct {
	Message string `json:"message"`
}

func (RunStartedPayload) PayloadKind() Kind { return KindRunStarted }

func (p RunStartedPayload) canonicalMap() map[string]any {
	return map[string]any{"message": p.Message}
}

// RunConfigPayload records the parameters a simulation run was started
// with. Audit only; never consumed programmatically.
type RunConfigPayload struct {
	NumAgents        int64  `json:"num_agents"`
	NumTicks         int64  `json:"num_ticks"`
	K                int64  `json:"k"`
	RankingAlgorithm string `json:"ranking_algorithm"`
	Seed             int64  `json:"seed"`
}

func (RunConfigPayload) PayloadKind() Kind { return KindRunConfig }

func (p RunConfigPayload) canonicalMap() map[string]any {
	return map[string]any{
		"num_agents":        p.NumAgents,
		"num_ticks":         p.NumTicks,
		"k":                 p.K,
		"ranking_algorithm": p.RankingAlgorithm,
		"seed":              p.Seed,
	}
}

// UserCreatedPayload registers a user in the simulated population.
type UserCreatedPayload struct {
	Username string `json:"username"`
}

func (UserCreatedPayload) PayloadKind() Kind { return KindUserCreated }

func (p UserCreatedPayload) canonicalMap() map[string]any {
	return map[string]any{"username": p.Username}
}

// MarshalPayload encodes a payload as canonical JSON. This is the only
// encoding ever written to storage, so stored payload bytes are stable
// across appends of semantically identical payloads.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal payload: nil payload")
	}
	data, err := MarshalCanonical(p.canonicalMap())
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.PayloadKind(), err)
	}
	return data, nil
}

// UnmarshalPayload decodes stored payload bytes for the given kind.
// Unknown kinds are an error: replay must fail fast on facts it cannot
// interpret rather than fold partial state.
func UnmarshalPayload(kind Kind, data []byte) (Payload, error) {
	switch kind {
	case KindTimelineServed:
		var p TimelineServedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case KindAction:
		var p ActionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case KindAdvanceTick:
		var p AdvanceTickPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case KindRunStarted:
		var p RunStartedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case KindRunConfig:
		var p RunConfigPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case KindUserCreated:
		var p UserCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unmarshal payload: unknown event kind %q", kind)
	}
}
