// Package harness runs YAML-defined simulation scenarios against a real
// engine and compares the resulting trace with golden snapshots.
//
// Every scenario executes in a fresh in-memory store with a sequential
// id generator, so two runs of the same scenario produce byte-identical
// traces. Scenario steps drive the engine's public operations: create
// users, advance the tick, serve timelines, submit actions. Flow steps
// carry expect clauses validated against the engine's actual outcome,
// and assertions check the trace, the final projected state, and replay
// determinism.
//
// Because ids are minted in a fixed order (evt-000001, op-000001,
// post-000001, tl-000001, ...), scenario files can name posts and
// timelines by their literal ids.
package harness
