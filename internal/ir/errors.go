package ir

import (
	"errors"
	"fmt"
)

// RejectReason categorizes why a reducer refused an action.
type RejectReason string

const (
	// ReasonUnauthorized: the signer is not entitled to this transition, or
	// the signature does not verify.
	ReasonUnauthorized RejectReason = "UNAUTHORIZED"

	// ReasonInvalidTransition: the request's state does not allow the action.
	ReasonInvalidTransition RejectReason = "INVALID_TRANSITION"

	// ReasonInvalidAmount: malformed amount, or a result below zero.
	ReasonInvalidAmount RejectReason = "INVALID_AMOUNT"

	// ReasonDuplicateCreate: a create for a channel that already has one.
	ReasonDuplicateCreate RejectReason = "DUPLICATE_CREATE"

	// ReasonInvalidParameters: parameters are well-formed JSON but do not
	// fit the action (wrong request id, unsupported version, bad address).
	ReasonInvalidParameters RejectReason = "INVALID_PARAMETERS"

	// ReasonExtensionNotRecognized: an applyExtension names an id with no
	// registered module.
	ReasonExtensionNotRecognized RejectReason = "EXTENSION_NOT_RECOGNIZED"
)

// RejectError is returned by reducers for actions that must be skipped.
// The replay engine records it on the request's event log and continues.
type RejectError struct {
	Reason  RejectReason
	Message string
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Reject builds a RejectError with a formatted message.
func Reject(reason RejectReason, format string, args ...any) *RejectError {
	return &RejectError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrExtensionNotRecognized matches any ExtensionNotRecognizedError via
// errors.Is.
var ErrExtensionNotRecognized = errors.New("extension not recognized")

// ExtensionNotRecognizedError reports an extension id with no registered
// module. Its message format is a contract other layers match on.
type ExtensionNotRecognizedError struct {
	ID string
}

// Error implements the error interface.
func (e *ExtensionNotRecognizedError) Error() string {
	return "extension not recognized, id: " + e.ID
}

// Is makes errors.Is(err, ErrExtensionNotRecognized) true.
func (e *ExtensionNotRecognizedError) Is(target error) bool {
	return target == ErrExtensionNotRecognized
}

// InvariantError signals a reducer bug: state that valid input can never
// produce. Replay aborts on it.
type InvariantError struct {
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Message
}

// RejectReasonOf classifies an error from a reducer. The second result is
// false for errors that are not rejections (invariant violations, bugs).
func RejectReasonOf(err error) (RejectReason, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	var ne *ExtensionNotRecognizedError
	if errors.As(err, &ne) {
		return ReasonExtensionNotRecognized, true
	}
	return "", false
}

// IsReject reports whether err is a rejection with the given reason.
func IsReject(err error, reason RejectReason) bool {
	got, ok := RejectReasonOf(err)
	return ok && got == reason
}

// IsInvariantError reports whether err is, or wraps, an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
