package domain

import "errors"

var (
	// ErrNotFound is returned when a task or project does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller is not a member of the project.
	ErrForbidden = errors.New("not authorized")
	// ErrValidation wraps every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a rejected client supplied field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func (e ValidationError) Unwrap() error { return ErrValidation }
