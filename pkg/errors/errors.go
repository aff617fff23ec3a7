// Package errors provides the tagged error taxonomy shared by every
// component of the ingest pipeline.
//
// Errors are split into two buckets: init-time errors, which are
// fatal and returned directly to the caller of Init, and per-record
// errors, which the ingest consumer logs and drops without ever
// propagating back to a producer.
package errors

import (
	"fmt"
	"time"
)

// Kind classifies an Error for dispatch and logging purposes.
type Kind string

const (
	// KindAuthRequired means no auth token was configured. Fatal at init.
	KindAuthRequired Kind = "auth_required"
	// KindAuthFailed means the remote session rejected the token. Fatal at init.
	KindAuthFailed Kind = "auth_failed"
	// KindInitializedTwice means Init was called while a previous
	// Init is still live. Fatal at init.
	KindInitializedTwice Kind = "initialized_twice"
	// KindUnexpectedFailure covers any other session failure (key
	// interning, open-timeline, metadata write, event write, flush)
	// or inability to read a system resource. Per-record: logged and
	// dropped, never fatal.
	KindUnexpectedFailure Kind = "unexpected_failure"
)

// Error is the single error type returned by this module. Component
// and Operation identify where the error originated, matching the
// [component:operation] convention used across the pipeline's logs.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so
// callers can write errors.Is(err, errors.AuthRequired("", "")) or,
// more idiomatically, check (*Error).Kind directly.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newError(kind Kind, component, operation, message string) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// AuthRequired builds a fatal "no token configured" error.
func AuthRequired(component, operation string) *Error {
	return newError(KindAuthRequired, component, operation, "auth token is required but was not configured")
}

// AuthFailed builds a fatal "token rejected" error, wrapping cause.
func AuthFailed(component, operation string, cause error) *Error {
	return newError(KindAuthFailed, component, operation, "remote session rejected the auth token").Wrap(cause)
}

// InitializedTwice builds the fatal double-init error.
func InitializedTwice(component, operation string) *Error {
	return newError(KindInitializedTwice, component, operation, "Init called while a previous Init is still live")
}

// UnexpectedFailure builds a per-record error wrapping cause.
func UnexpectedFailure(component, operation, message string, cause error) *Error {
	return newError(KindUnexpectedFailure, component, operation, message).Wrap(cause)
}

// Wrap attaches cause to e and returns e for chaining.
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := err.(*Error)
	return ok && appErr.Kind == kind
}
