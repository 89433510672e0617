// Package errorkind defines the closed error taxonomy surfaced across
// component boundaries (checkpoint store, fetcher, buffer, persistor,
// verification coordinator).
package errorkind

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way callers at an API boundary need to
// react to it (HTTP status, retry policy, per-item batch status).
type Kind int

const (
	// Internal covers programmer errors and unexpected database failures.
	Internal Kind = iota
	// InvalidArgument covers malformed input: unparseable hex, unknown
	// enum variant, invalid address, absent required field.
	InvalidArgument
	// NotFound covers a requested entity absent from the current state.
	NotFound
	// Conflict covers a violated state-machine precondition.
	Conflict
	// Unauthorized covers missing or invalid caller credentials.
	Unauthorized
	// Forbidden covers a caller lacking scope for an otherwise valid request.
	Forbidden
	// Upstream covers a failed external provider; the caller may retry.
	Upstream
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Upstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// classification without string-matching messages.
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

// New builds a classified error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error, attaching a message for context.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error,
// defaulting to Internal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Retryable reports whether err's kind is recoverable by the retry
// harness (§7: "Recovered locally": transient upstream errors).
func Retryable(err error) bool {
	return KindOf(err) == Upstream
}
