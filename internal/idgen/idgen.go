// Package idgen mints the identifiers the engine hands out: event ids,
// operation ids, and short prefixed entity ids.
package idgen

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes distinguish entity id families at a glance in logs and events.
const (
	PostPrefix     = "post-"
	TimelinePrefix = "tl-"
)

// Alphabet defines the character set used for the random portion of
// entity ids.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generator mints every identifier the engine needs. It is injected
// wherever ids are created so tests and golden scenarios can pin the id
// stream and stay deterministic.
type Generator interface {
	// EventID returns a globally unique id for a new log event.
	EventID() string
	// OpID returns a fresh idempotency key for a client-originated command.
	OpID() string
	// PostID returns a prefixed id for a post minted at acceptance.
	PostID() string
	// TimelineID returns a prefixed id for a freshly served timeline.
	TimelineID() string
}

// Random is the production Generator.
//
// Event ids are UUIDv7: the embedded timestamp makes them sortable by
// creation time, which is helpful when eyeballing exported logs. Op ids
// are UUIDv4. Entity ids are short nanoid strings behind a type prefix.
//
// Thread-safety: Random is stateless and safe for concurrent use.
type Random struct{}

func (Random) EventID() string { return uuid.Must(uuid.NewV7()).String() }

func (Random) OpID() string { return uuid.NewString() }

func (Random) PostID() string { return PostPrefix + mustNano() }

func (Random) TimelineID() string { return TimelinePrefix + mustNano() }

func mustNano() string {
	return nanoid.MustGenerate(Alphabet, Length)
}

// Sequential returns counter-based ids for tests and golden scenarios.
//
// Each id family counts independently, so a run produces evt-000001,
// op-000001, post-000001, tl-000001 and so on in creation order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type Sequential struct {
	mu       sync.Mutex
	event    int
	op       int
	post     int
	timeline int
}

// NewSequential creates a Sequential with all counters at zero.
func NewSequential() *Sequential {
	return &Sequential{}
}

func (g *Sequential) EventID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.event++
	return fmt.Sprintf("evt-%06d", g.event)
}

func (g *Sequential) OpID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.op++
	return fmt.Sprintf("op-%06d", g.op)
}

func (g *Sequential) PostID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.post++
	return fmt.Sprintf("%s%06d", PostPrefix, g.post)
}

func (g *Sequential) TimelineID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeline++
	return fmt.Sprintf("%s%06d", TimelinePrefix, g.timeline)
}
