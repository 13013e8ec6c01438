package ir

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes engine errors.
//
// The three kinds never mix: a contract violation is the caller's fault, a
// backend failure means code generation rejected a request, and an
// internal error means the engine broke one of its own invariants.
type ErrorKind string

const (
	// KindContract marks caller misuse: a wrong basic type at a typed
	// bind entry point, an unrecognized key character, an over-long key.
	KindContract ErrorKind = "CONTRACT_VIOLATION"

	// KindBackend marks a code generation backend rejecting a request.
	// These are not transient and are never retried.
	KindBackend ErrorKind = "BACKEND_FAILURE"

	// KindInternal marks a broken engine invariant, such as a species
	// found through the lattice that does not match the requested key.
	KindInternal ErrorKind = "INTERNAL_ERROR"
)

// Error is the structured error returned by every engine operation.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Op names the failing operation.
	Op string

	// Message is a human-readable description.
	Message string

	// Key is the signature key or unit name involved, if any.
	Key string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key=%q)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewContractError creates a caller contract violation.
func NewContractError(op, message string) *Error {
	return &Error{Kind: KindContract, Op: op, Message: message}
}

// NewBackendError creates a code generation failure wrapping cause.
func NewBackendError(op, key string, cause error) *Error {
	return &Error{Kind: KindBackend, Op: op, Key: key, Message: "code generation rejected request", Err: cause}
}

// NewInternalError creates an invariant breach.
func NewInternalError(op, message string) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: message}
}

// IsContractError returns true if err is a contract violation.
// Uses errors.As to handle wrapped errors.
func IsContractError(err error) bool {
	return kindOf(err) == KindContract
}

// IsBackendError returns true if err is a code generation failure.
func IsBackendError(err error) bool {
	return kindOf(err) == KindBackend
}

// IsInternalError returns true if err is an engine invariant breach.
func IsInternalError(err error) bool {
	return kindOf(err) == KindInternal
}

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
