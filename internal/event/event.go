package event

import "time"

// Kind identifies the closed set of fact types the log can hold.
type Kind string

const (
	KindTimelineServed Kind = "timeline_served"
	KindAction         Kind = "action"
	KindAdvanceTick    Kind = "advance_tick"
	KindRunStarted     Kind = "run_started"
	KindRunConfig      Kind = "run_config"
	KindUserCreated    Kind = "user_created"
)

// Valid reports whether k is one of the known event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTimelineServed, KindAction, KindAdvanceTick,
		KindRunStarted, KindRunConfig, KindUserCreated:
		return true
	}
	return false
}

// Status is the terminal outcome of an action event.
// Empty for every other kind.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// ActionKind identifies the closed set of actions agents may attempt.
type ActionKind string

const (
	ActionPost     ActionKind = "post"
	ActionLike     ActionKind = "like"
	ActionUnlike   ActionKind = "unlike"
	ActionComment  ActionKind = "comment"
	ActionFollow   ActionKind = "follow"
	ActionUnfollow ActionKind = "unfollow"
)

// Valid reports whether a is one of the known action kinds.
func (a ActionKind) Valid() bool {
	switch a {
	case ActionPost, ActionLike, ActionUnlike, ActionComment, ActionFollow, ActionUnfollow:
		return true
	}
	return false
}

// Event is a single immutable fact in the append-only log.
//
// Seq is assigned by the log on append and defines the total order.
// ID is server-minted and globally unique. OpID, when present, is the
// client-supplied idempotency key and is unique across all events.
// Once appended an event is never mutated or removed.
type Event struct {
	Seq        int64
	ID         string
	Kind       Kind
	Tick       int64
	Actor      string // optional
	OpID       string // optional, idempotency key
	TimelineID string // optional

	// Version tags carried for audit. RankingVersion is set on
	// timeline_served events; ModelVersion and PromptVersion are set on
	// action events composed by a model-backed planner.
	RankingVersion string
	ModelVersion   string
	PromptVersion  string

	Status Status // action events only
	Reason string // rejected action events only
	Seed   *int64 // optional

	// CreatedAt is wall-clock audit metadata. It is never part of the
	// canonical payload encoding or any content hash.
	CreatedAt time.Time

	Payload Payload
}

// SeedOf returns a pointer to v for optional seed fields.
func SeedOf(v int64) *int64 { return &v }
