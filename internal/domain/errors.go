package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEvent marks events that can never be processed. The intake
	// dead-letters them instead of retrying.
	ErrInvalidEvent = errors.New("invalid score event")

	// ErrBackendUnavailable is returned by the cache when retries are
	// exhausted or its circuit breaker is open.
	ErrBackendUnavailable = errors.New("cache backend unavailable")

	ErrGameNotFound = errors.New("game not found")
)

// ValidationError lists the field rules a score event violates.
type ValidationError struct {
	ID         int64
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("game %d: %s", e.ID, strings.Join(e.Violations, "; "))
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidEvent).
func (e *ValidationError) Unwrap() error { return ErrInvalidEvent }
