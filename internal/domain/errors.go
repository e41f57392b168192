package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the store and service layers wraps exactly one of these,
// so callers classify failures with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrCapacity    = errors.New("no copies available")
	ErrReferential = errors.New("referenced by open loans")
	ErrConflict    = errors.New("conflict")
	ErrStore       = errors.New("store error")

	// ErrAlreadyReturned is the conflict raised by a second return of the same loan.
	ErrAlreadyReturned = fmt.Errorf("%w: loan already returned", ErrConflict)
)

// Errorf wraps kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns the error kind wrapped by err, or ErrStore for anything unclassified.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrCapacity, ErrReferential, ErrConflict, ErrStore} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrStore
}
