package store

import "errors"

// Sentinel errors surfaced by the event log. Callers distinguish them with
// errors.Is; everything else out of this package is a storage fault.
var (
	// ErrDuplicateOperation means the event's operation id is already
	// present in the log. The original operation's outcome is final.
	ErrDuplicateOperation = errors.New("operation id already exists")

	// ErrDuplicateEventID means the event id collides with a stored
	// event. Should not occur under correct id generation.
	ErrDuplicateEventID = errors.New("event id already exists")

	// ErrNotFound is returned by single-row lookups with no match.
	ErrNotFound = errors.New("not found")
)
