// Package provider talks to flight search backends.
package provider

import (
	"context"
	"errors"

	"fareradar/internal/flights"
)

// Error classes returned by providers. Callers match them with errors.Is.
var (
	ErrAuth        = errors.New("provider authentication failed")
	ErrRateLimited = errors.New("provider rate limited")
	ErrTransient   = errors.New("provider temporarily unavailable")
)

// SearchProvider runs a flight search. An empty slice with a nil error means the
// search succeeded and found nothing.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, q flights.SearchQuery) ([]flights.FlightResult, error)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}
