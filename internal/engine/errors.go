package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/reqlog/internal/ir"
)

// RuntimeError represents an error detected during replay.
//
// Runtime errors include:
//   - Invariant violation: the reducer produced an impossible state
//   - Nondeterministic replay: two replays of one log disagree
//   - Unexpected error: a collaborator failed with a non-rejection error
//
// RuntimeError wraps the underlying cause so errors.As on the cause still
// works.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RequestID identifies the affected request, when known.
	RequestID string

	// ActionHash identifies the action being applied, when known.
	ActionHash string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvariantViolation indicates the reducer returned an
	// *ir.InvariantError.
	ErrCodeInvariantViolation RuntimeErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeNondeterministic indicates two replays of the same entries
	// produced different canonical bytes.
	ErrCodeNondeterministic RuntimeErrorCode = "NONDETERMINISTIC_REPLAY"

	// ErrCodeUnexpected indicates an error that is neither a rejection nor
	// an invariant violation.
	ErrCodeUnexpected RuntimeErrorCode = "UNEXPECTED_ERROR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RequestID != "" && e.ActionHash != "" {
		return fmt.Sprintf("%s: %s (request=%s, action=%s)", e.Code, e.Message, e.RequestID, e.ActionHash)
	}
	if e.ActionHash != "" {
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.ActionHash)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsInvariantViolation returns true if the error is an invariant violation.
// Uses errors.As to handle wrapped errors.
func IsInvariantViolation(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvariantViolation
	}
	return false
}

// IsNondeterministic returns true if the error reports diverging replays.
func IsNondeterministic(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNondeterministic
	}
	return false
}

// newApplyError classifies a non-rejection error from the reducer.
func newApplyError(requestID, actionHash string, err error) *RuntimeError {
	code := ErrCodeUnexpected
	if ir.IsInvariantError(err) {
		code = ErrCodeInvariantViolation
	}
	return &RuntimeError{
		Code:       code,
		Message:    err.Error(),
		RequestID:  requestID,
		ActionHash: actionHash,
		Err:        err,
	}
}
