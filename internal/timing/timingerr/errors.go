// Package timingerr defines the observable error taxonomy for the timing
// intelligence layer. Retryable-vs-poison is a property of the Kind, not
// of the call site: the ingestion pipeline and the decision engine both
// consult Kind.Retryable() rather than re-deriving policy from error text.
package timingerr

import (
	"errors"
	"fmt"
)

// Kind is one of the observable error kinds from the error handling design.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindIdentityUnresolved   Kind = "identity_unresolved"
	KindCurveUnavailable     Kind = "curve_unavailable"
	KindPredictorUnavailable Kind = "predictor_unavailable"
	KindWindowExpired        Kind = "window_expired"
	KindSuppressed           Kind = "suppressed"
	KindTimeout              Kind = "timeout"
	KindBackendUnavailable   Kind = "backend_unavailable"
)

// Retryable reports whether an error of this kind should be retried with
// backoff (true) or routed to the dead-letter sink on first occurrence
// (false). Suppressed is not a failure at all; callers should not retry it.
func (k Kind) Retryable() bool {
	switch k {
	case KindBackendUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is a structured error with a Kind, a caller-facing message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
