package provider

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy for the external
// verification service. Every category is treated as "tier unavailable" by
// the decision engine; the category only drives logging and metrics.
type ErrorCategory string

const (
	// ErrorTimeout indicates the service took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorHTTP indicates the service answered with a non-2xx status
	ErrorHTTP ErrorCategory = "http_error"

	// ErrorMalformedResponse indicates the service body was not parseable
	ErrorMalformedResponse ErrorCategory = "malformed_response"

	// ErrorNetwork indicates the request never completed
	ErrorNetwork ErrorCategory = "network"
)

// Error wraps external service failures with normalized categorization
type Error struct {
	Category   ErrorCategory
	Message    string
	StatusCode int // set only for ErrorHTTP
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("voice provider [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("voice provider [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func newError(category ErrorCategory, message string, underlying error) *Error {
	return &Error{Category: category, Message: message, Underlying: underlying}
}

// CategoryOf extracts the error category from an error chain
func CategoryOf(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorNetwork
}
