// Package errs defines the shared error taxonomy for domain services.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates the actor may not touch the resource.
	// Handlers blend this with not-found so callers cannot probe for
	// records belonging to other patients.
	ErrAccessDenied = errors.New("access denied")
	// ErrConflict indicates the write collides with existing state.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed or out-of-range input along with the
// offending field so the caller can correct the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AsValidation extracts a ValidationError if err is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
