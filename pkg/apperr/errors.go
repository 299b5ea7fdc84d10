// Package apperr holds the error kinds shared by the vector store, retrieval and chat layers.
// Callers wrap one of the sentinels with fmt.Errorf("%w: ...") and inspect with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for empty or malformed identifiers, before any I/O happens.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat is returned by ingestion for source types without a loader.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNotFound is returned when a session has no embeddings or a local id is missing.
	ErrNotFound = errors.New("not found")

	// ErrProvider is returned when an embedding or LLM call failed.
	ErrProvider = errors.New("provider error")

	// ErrTierUnavailable marks a retrieval tier that errored. Retrieval logs it and falls
	// through; a failed remote probe for session existence surfaces it to the caller.
	ErrTierUnavailable = errors.New("retrieval tier unavailable")
)

// Invalid builds an ErrInvalidInput with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Provider wraps a failed provider call.
func Provider(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
}

// RequireID rejects an empty identifier.
func RequireID(name, value string) error {
	if value == "" {
		return Invalid("%s must be a non-empty string", name)
	}
	return nil
}
