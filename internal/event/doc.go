// Package event defines the immutable facts the log records: the closed
// set of event kinds, the tagged payload union, the canonical JSON
// encoding used for stored payloads, and domain-separated hashing.
//
// Everything downstream (storage, projections, replay, hashing) treats
// this package as the single vocabulary for what can happen in a run.
package event
