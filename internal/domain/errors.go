package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")

	// ErrInvalidTransition marks a status change that the state machine
	// does not allow. The card is left unchanged when it is returned.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUpstreamUnavailable is a transient upstream failure: the sync pass
	// is a no-op and the same window is retried next cycle.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected is a permanent upstream rejection for the requested
	// window. The watermark is not advanced to avoid silently skipping data.
	ErrUpstreamRejected = errors.New("upstream rejected request")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s — %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}
