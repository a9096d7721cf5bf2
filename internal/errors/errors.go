// Package errors provides centralized error definitions and error handling
// utilities for simtree. It defines domain-specific error types, sentinel
// errors, and classification helpers shared by the crunching manager and
// its collaborators.
//
// The package provides two error types beyond plain sentinels:
//
//   - ConfigurationError: the project or simulation package is set up in a
//     way that makes crunching impossible (for example, the simpack declares
//     no compatible cruncher backend). Fatal, surfaced immediately.
//   - UnexpectedQueueItem: a cruncher pushed a payload outside the closed
//     work-queue contract. Fatal, since continuing would silently corrupt
//     the history tree.
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNoBackends) { ... }
//
//	var uqi *errors.UnexpectedQueueItem
//	if errors.As(err, &uqi) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience, so callers can
// import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoBackends indicates that a simpack declares no cruncher backend
	// that is registered in this build.
	ErrNoBackends = New("no compatible cruncher backend available")
	// ErrUnknownBackend indicates a backend name that is not registered.
	ErrUnknownBackend = New("unknown cruncher backend")
	// ErrUnknownStep indicates a step-function name the simpack does not define.
	ErrUnknownStep = New("unknown step function")
	// ErrNotAStepProfile indicates that a value passed where a step profile
	// was required is not one.
	ErrNotAStepProfile = New("not a step profile")
)

// -----------------------------------------------------------------------------
// ConfigurationError
// -----------------------------------------------------------------------------

// ConfigurationError indicates that the project, simpack, or runtime
// configuration rules out crunching entirely. It is fatal: callers should
// surface it and not retry.
type ConfigurationError struct {
	message string
	cause   error
}

// NewConfigurationError creates a ConfigurationError wrapping an optional cause.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{message: message, cause: cause}
}

// Error returns the error message, including the cause when present.
func (e *ConfigurationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("configuration: %s: %v", e.message, e.cause)
	}
	return fmt.Sprintf("configuration: %s", e.message)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.cause }

// -----------------------------------------------------------------------------
// UnexpectedQueueItem
// -----------------------------------------------------------------------------

// UnexpectedQueueItem indicates that a cruncher produced a work-queue payload
// outside the closed contract (state, end marker, or step-profile update).
// This is a programming-contract violation, never a recoverable condition.
type UnexpectedQueueItem struct {
	// Item is the offending payload, kept for diagnostics.
	Item any
}

// NewUnexpectedQueueItem creates an UnexpectedQueueItem for the given payload.
func NewUnexpectedQueueItem(item any) *UnexpectedQueueItem {
	return &UnexpectedQueueItem{Item: item}
}

// Error returns the error message.
func (e *UnexpectedQueueItem) Error() string {
	return fmt.Sprintf("unexpected object %T in work queue: %v", e.Item, e.Item)
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsFatal reports whether err is one of the fatal contract violations that
// should abort the caller rather than be retried on the next sync.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConfigurationError
	var uqi *UnexpectedQueueItem
	return As(err, &ce) || As(err, &uqi)
}
