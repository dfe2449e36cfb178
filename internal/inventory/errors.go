package inventory

import (
	"errors"
	"fmt"
)

// Sentinel errors classified by the HTTP layer with errors.Is.
var (
	// ErrNotFound indicates a referenced code, batch, funnel, product or allocation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the row is not in a state that allows the operation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates the caller supplied invalid input.
	ErrValidation = errors.New("validation failed")
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
