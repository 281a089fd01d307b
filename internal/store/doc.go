// Package store provides SQLite-backed durable storage for the feedsim
// event log and its projection tables.
//
// The store implements an append-only log plus materialized read models:
//   - Events: every timeline request, agent action, tick advance, and
//     run marker, accepted or rejected
//   - Users / Posts / Comments / Votes / Follows: projection tables
//     derived from accepted events by the fold in internal/projection
//
// # Critical Patterns
//
// CP-1: Append-Only Sequencing
//   - seq INTEGER PRIMARY KEY AUTOINCREMENT, never reused after delete
//   - All ordering uses seq (logical clock), NEVER timestamps
//
// CP-2: Operation-Level Idempotency
//   - UNIQUE constraint on op_id rejects a retried command before it
//     can append a second event
//
// CP-3: Deterministic Query Results
//   - Every multi-row query carries an explicit ORDER BY on stable
//     columns so replays and snapshots see identical row order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - MaxOpenConns(1): Single writer, single connection
//
// State hashes over the projection tables are computed in
// internal/projection using RFC 8785 canonical JSON and SHA-256 with
// domain separation.
package store
