package core

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks client input that is malformed or incomplete.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an update, delete or lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a store that cannot be reached or refused the
	// connection. It is attached by inspecting the driver failure, never by
	// matching message text.
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError describes what was wrong with client input.
type ValidationError struct {
	Message string
	Missing []string
}

// NewValidationError creates a ValidationError with an optional list of
// missing field names.
func NewValidationError(message string, missing ...string) *ValidationError {
	return &ValidationError{Message: message, Missing: missing}
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Missing, ", ")
}

// Is reports ErrValidation as the sentinel for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
