// Package engine implements the feedsim event-sourcing engine.
//
// The engine is the write path of the simulation: it serves ranked
// timelines, validates agent actions, appends facts to the event log,
// and folds accepted facts into projections.
//
// ARCHITECTURE:
//
// Single-Writer Transactions:
// Every mutating operation runs inside one store transaction covering
// its validation reads, log append and projection fold. The store
// allows one writer at a time, so concurrent callers serialize on the
// transaction boundary and each operation observes a consistent view
// of "what has already been appended".
//
// Operation Flow:
//  1. ServeTimeline ranks candidates, records the exposure set, and
//     appends a timeline_served event.
//  2. ProcessAction runs the validation pipeline and appends exactly
//     one accepted-or-rejected action event (none for duplicates).
//  3. Accepted actions are folded into projections in the same
//     transaction; rejected ones never are.
//  4. AdvanceTick moves the logical clock and records the advance.
//
// CRITICAL PATTERNS:
//
// CP-1: Logical Tick Clock
// All events are stamped with the engine clock's current tick. Only
// AdvanceTick moves it. NEVER use wall-clock timestamps for ordering.
//
// CP-2: Exposure Tie
// Engagement actions are validated against the exposure set recorded
// when the timeline was served. Exposure sets are write-once and
// rehydrated from the log on Start, never mutated afterwards.
//
// CP-3: Structural Replay
// Replay re-runs the same fold over the log from empty state. Content
// hashes of live and replayed projections must be byte-identical; see
// replay.go.
//
// Event notices published after commit are best-effort observability.
// The log is the source of truth, not the bus.
package engine
