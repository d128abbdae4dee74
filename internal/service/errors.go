package service

import (
	"errors"
	"fmt"
)

var (
	// ErrSearchFailed marks a provider failure, as opposed to a search with no results.
	ErrSearchFailed = errors.New("search failed")
	// ErrFlightContextMissing means no cached flight, session or search params could resolve a flight id.
	ErrFlightContextMissing = errors.New("flight context missing")
	// ErrStoreUnavailable means the store holding required state could not be read.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// SearchError wraps a provider failure. It matches both ErrSearchFailed and the
// provider's error class.
type SearchError struct {
	Provider string
	Err      error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed (%s): %v", e.Provider, e.Err)
}

func (e *SearchError) Unwrap() []error {
	return []error{ErrSearchFailed, e.Err}
}
