package engine

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes fatal engine failures. Rejected actions
// are results, not errors, and never carry one of these codes.
type RuntimeErrorCode string

const (
	// ErrCodeStorage indicates the log or projections could not be
	// read or written. The enclosing transaction was rolled back.
	ErrCodeStorage RuntimeErrorCode = "STORAGE_FAILURE"

	// ErrCodeReplay indicates a replay aborted: a sequence gap, a
	// malformed payload, or a fold failure. Projections may have been
	// rebuilt partially inside a transaction that was rolled back.
	ErrCodeReplay RuntimeErrorCode = "REPLAY_FAILURE"

	// ErrCodeUnknownAlgorithm indicates a timeline request named a
	// ranking algorithm the engine does not implement.
	ErrCodeUnknownAlgorithm RuntimeErrorCode = "UNKNOWN_ALGORITHM"

	// ErrCodeUnknownUser indicates a timeline request named an actor
	// with no user_created fact in the log.
	ErrCodeUnknownUser RuntimeErrorCode = "UNKNOWN_USER"
)

// RuntimeError is a fatal engine failure with a stable code for
// programmatic handling at the CLI boundary.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps a storage-layer failure during op.
func NewStorageError(op string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeStorage, Message: op, Err: err}
}

// NewReplayError wraps a replay abort.
func NewReplayError(err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeReplay, Message: "replay aborted", Err: err}
}

// NewUnknownAlgorithmError reports an unimplemented ranking algorithm.
// The wrapped error is ranking.ErrUnknownAlgorithm so errors.Is checks
// against the sentinel keep working.
func NewUnknownAlgorithmError(algorithm string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownAlgorithm,
		Message: fmt.Sprintf("algorithm %q", algorithm),
		Err:     err,
	}
}

// NewUnknownUserError reports a timeline request for a nonexistent user.
func NewUnknownUserError(userID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownUser,
		Message: fmt.Sprintf("user %q", userID),
	}
}

// IsStorageError reports whether err is a storage failure.
// Uses errors.As to handle wrapped errors.
func IsStorageError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStorage
	}
	return false
}

// IsReplayError reports whether err is a replay failure.
// Uses errors.As to handle wrapped errors.
func IsReplayError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeReplay
	}
	return false
}

// CodeOf returns the runtime error code of err, or "" when err carries
// none.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
