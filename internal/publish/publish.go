// Package publish emits appended events to interested subscribers.
//
// Publishing is best-effort notification for dashboards and external
// consumers. The event log is the source of truth; a lost notice never
// affects replay or projections.
package publish

import (
	"context"

	"github.com/attentionlab/feedsim/internal/event"
)

// TopicPrefix is the subject namespace for event notices.
const TopicPrefix = "feedsim.event."

// TopicFor returns the subject an event of the given kind is published to,
// e.g. "feedsim.event.timeline_served".
func TopicFor(kind event.Kind) string {
	return TopicPrefix + string(kind)
}

// EventNotice is the JSON body published for each appended event. It is a
// compact summary; subscribers needing payload detail read the log.
type EventNotice struct {
	Seq     int64  `json:"seq"`
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
	Tick    int64  `json:"tick"`
	ActorID string `json:"actor_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// NoticeFor builds the published summary of ev.
func NoticeFor(ev event.Event) EventNotice {
	return EventNotice{
		Seq:     ev.Seq,
		EventID: ev.ID,
		Kind:    string(ev.Kind),
		Tick:    ev.Tick,
		ActorID: ev.Actor,
		Status:  string(ev.Status),
		Reason:  ev.Reason,
	}
}

// Publisher is the interface for emitting event notices.
type Publisher interface {
	Publish(ctx context.Context, topic string, notice any) error
	Close() error
}
