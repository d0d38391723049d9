// Package agenterr defines the error taxonomy shared by every component of
// the agent core: Transport, ProviderRejected, Auth, ToolInput,
// ToolExecution, Cancelled, Fatal.
package agenterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for routing decisions: retry, surface to the
// model as a tool result, surface to the user, or abort.
type Kind int

const (
	// Transport is a retriable network/timeout failure.
	Transport Kind = iota
	// ProviderRejected is a non-retriable model-side rejection.
	ProviderRejected
	// Auth is a missing/invalid API key or subscription refusal.
	Auth
	// ToolInput is a tool call whose JSON failed schema validation.
	ToolInput
	// ToolExecution is a tool that ran and failed.
	ToolExecution
	// Cancelled means the user or a parent agent cancelled the operation.
	Cancelled
	// Fatal is an invariant violation that must abort the session.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case ProviderRejected:
		return "provider_rejected"
	case Auth:
		return "auth"
	case ToolInput:
		return "tool_input"
	case ToolExecution:
		return "tool_execution"
	case Cancelled:
		return "cancelled"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is an agenterr-classified error wrapping an underlying cause.
type Error struct {
	Kind      Kind
	Retriable bool
	Msg       string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Retriable: kind == Transport}
}

// Wrap builds an Error of the given kind wrapping cause, following the
// repo-wide fmt.Errorf("...: %w", err) convention.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause, Retriable: kind == Transport}
}

// WithRetriable overrides the default retriable flag (used for the
// "overload" transient sub-class, which is still retriable but with a
// different backoff policy upstream).
func (e *Error) WithRetriable(r bool) *Error {
	e.Retriable = r
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRetriable reports whether err is a retriable agenterr.Error.
func IsRetriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retriable
	}
	return false
}
