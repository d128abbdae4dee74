package service

import (
	"context"
	"fmt"

	"fareradar/internal/flights"
)

// Lookup sources, reported to clients.
const (
	SourceFlightCache = "flight"
	SourceSession     = "session"
	SourceRefetch     = "refetch"
)

// LookupHint carries whatever context the client still has about a flight.
type LookupHint struct {
	SearchID string
	Query    *flights.SearchQuery
}

// FlightLookup is a resolved flight and where it came from.
type FlightLookup struct {
	Flight flights.FlightResult `json:"flight"`
	Source string               `json:"source"`
}

// FindFlight resolves a flight id by trying the flight cache, then the search
// session, then a new search with the hinted params.
func (s *Service) FindFlight(ctx context.Context, id string, hint LookupHint) (FlightLookup, error) {
	if s.cache == nil {
		return FlightLookup{}, fmt.Errorf("flight %s: %w", id, ErrStoreUnavailable)
	}

	var f flights.FlightResult
	ok, err := s.cache.GetJSON(ctx, s.opts.Keys.Flight(id), &f)
	if err != nil {
		return FlightLookup{}, fmt.Errorf("flight %s: %w: %v", id, ErrStoreUnavailable, err)
	}
	if ok {
		return FlightLookup{Flight: f, Source: SourceFlightCache}, nil
	}

	if hint.SearchID != "" {
		var session Session
		ok, err := s.cache.GetJSON(ctx, s.opts.Keys.Session(hint.SearchID), &session)
		if err != nil {
			return FlightLookup{}, fmt.Errorf("session %s: %w: %v", hint.SearchID, ErrStoreUnavailable, err)
		}
		if ok {
			if found, hit := findByID(session.Flights, id); hit {
				return FlightLookup{Flight: found, Source: SourceSession}, nil
			}
		}
	}

	if hint.Query != nil {
		res, err := s.Search(ctx, *hint.Query)
		if err != nil {
			return FlightLookup{}, err
		}
		for _, sf := range res.Flights {
			if sf.ID == id {
				return FlightLookup{Flight: sf.FlightResult, Source: SourceRefetch}, nil
			}
		}
	}

	s.logger.Debug().Str("flight_id", id).Str("search_id", hint.SearchID).Msg("flight context missing")
	return FlightLookup{}, fmt.Errorf("flight %s: %w", id, ErrFlightContextMissing)
}

func findByID(results []flights.FlightResult, id string) (flights.FlightResult, bool) {
	for _, f := range results {
		if f.ID == id {
			return f, true
		}
	}
	return flights.FlightResult{}, false
}
