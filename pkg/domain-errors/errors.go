// Package domainerrors provides coded domain errors shared across bounded contexts.
//
// Services return these so transport layers can map failures to stable wire
// responses without inspecting error strings. Infrastructure facts (not-found,
// expired, conflict) live in pkg/platform/sentinel; services translate them
// into coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"

	// CodeNotEnrolled means the subject has no enrolled voice profile; the
	// caller must complete enrollment before verification can run.
	CodeNotEnrolled Code = "not_enrolled"

	// CodeProviderUnavailable means the external verification provider failed
	// and fallback was disabled or exhausted.
	CodeProviderUnavailable Code = "provider_unavailable"

	// CodeStorageUnavailable means a durable store (session, profile, blob)
	// failed; the request is not retried by the core.
	CodeStorageUnavailable Code = "storage_unavailable"

	CodeInternal Code = "internal_error"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded domain error preserving the underlying cause for
// logging and errors.Is/As chains.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in domain logic.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
