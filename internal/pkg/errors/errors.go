package errors

import "errors"

// Common application errors. Domain packages wrap these with %w so that
// handlers can map them to HTTP status codes with errors.Is.
var (
	// ErrNotFound is used when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is used for invalid input data.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is used when the current state forbids the operation
	// (spin already running, check-in locked, winner cannot be deleted).
	ErrConflict = errors.New("resource state conflict")
)
