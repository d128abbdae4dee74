// Package service orchestrates flight searches: provider calls, caching,
// ranking, price insights and price recording.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fareradar/internal/flights"
	"fareradar/internal/insight"
	"fareradar/internal/provider"
	"fareradar/internal/storage"
)

// PriceRecorder stores observed prices.
type PriceRecorder interface {
	RecordSearchPrices(ctx context.Context, results []flights.FlightResult) (int, error)
}

// InsightSource computes price insights for a result set.
type InsightSource interface {
	GetPriceInsightsForFlights(ctx context.Context, results []flights.FlightResult, route flights.Route) (map[string]*insight.PriceInsight, error)
}

// Observer receives search telemetry.
type Observer interface {
	ObserveSearch(source string, cached bool, took time.Duration, err error)
	ObservePricesRecorded(n int, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveSearch(string, bool, time.Duration, error) {}
func (nopObserver) ObservePricesRecorded(int, error)                 {}

// Options tune the Service.
type Options struct {
	Keys          storage.Keyspace
	SearchTTL     time.Duration
	FlightTTL     time.Duration
	SessionTTL    time.Duration
	RecordTimeout time.Duration
}

// Service runs searches and resolves flights by id.
type Service struct {
	provider provider.SearchProvider
	cache    storage.CacheStore
	recorder PriceRecorder
	insights InsightSource
	observer Observer
	opts     Options
	now      func() time.Time
	logger   zerolog.Logger

	recording sync.WaitGroup
}

// New constructs the search service.
func New(p provider.SearchProvider, cache storage.CacheStore, recorder PriceRecorder, insights InsightSource, observer Observer, opts Options, logger zerolog.Logger) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = 5 * time.Minute
	}
	if opts.FlightTTL <= 0 {
		opts.FlightTTL = 30 * time.Minute
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 5 * time.Second
	}
	return &Service{
		provider: p,
		cache:    cache,
		recorder: recorder,
		insights: insights,
		observer: observer,
		opts:     opts,
		now:      time.Now,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// SearchFlight is a search result annotated with its decision and insight.
type SearchFlight struct {
	flights.FlightResult
	Label        flights.DecisionLabel `json:"label,omitempty"`
	PriceContext flights.PriceContext  `json:"priceContext"`
	PriceInsight *insight.PriceInsight `json:"priceInsight,omitempty"`
}

// SearchResult is the outcome of Search.
type SearchResult struct {
	Flights  []SearchFlight
	Source   string
	SearchID string
	Cached   bool
	Took     time.Duration
}

// Session is the cached context of one search, used to resolve flight ids later.
type Session struct {
	SearchID  string                 `json:"searchId"`
	Query     flights.SearchQuery    `json:"query"`
	Source    string                 `json:"source"`
	Flights   []flights.FlightResult `json:"flights"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Search returns ranked flights for q. Provider failures come back as
// *SearchError; an empty result is not an error.
func (s *Service) Search(ctx context.Context, q flights.SearchQuery) (SearchResult, error) {
	started := s.now()

	session, cached := s.cachedSearch(ctx, q)
	if !cached {
		results, err := s.provider.Search(ctx, q)
		if err != nil {
			s.observer.ObserveSearch(s.provider.Name(), false, s.now().Sub(started), err)
			s.logger.Error().Err(err).Str("route", q.Route().String()).Str("depart", q.Depart).Msg("provider search failed")
			return SearchResult{}, &SearchError{Provider: s.provider.Name(), Err: err}
		}
		if results == nil {
			results = []flights.FlightResult{}
		}
		session = Session{
			SearchID:  NewSearchID(),
			Query:     q,
			Source:    s.provider.Name(),
			Flights:   results,
			CreatedAt: s.now().UTC(),
		}
		s.storeSearch(ctx, session)
	}

	// insights must see history from before this search is recorded
	insights := s.lookupInsights(ctx, session.Flights, q.Route())
	annotated := Annotate(session.Flights, insights)

	if !cached {
		s.recordAsync(ctx, session.Flights)
	}

	took := s.now().Sub(started)
	s.observer.ObserveSearch(session.Source, cached, took, nil)
	s.logger.Info().
		Str("route", q.Route().String()).
		Str("depart", q.Depart).
		Int("results", len(annotated)).
		Bool("cached", cached).
		Dur("took", took).
		Msg("search completed")

	return SearchResult{
		Flights:  annotated,
		Source:   session.Source,
		SearchID: session.SearchID,
		Cached:   cached,
		Took:     took,
	}, nil
}

// Annotate attaches decision labels, price contexts and insights to results,
// keeping their order.
func Annotate(results []flights.FlightResult, insights map[string]*insight.PriceInsight) []SearchFlight {
	decisions := flights.DecideOrdered(results)
	out := make([]SearchFlight, len(results))
	for i, f := range results {
		out[i] = SearchFlight{
			FlightResult: f,
			Label:        decisions[i].Label,
			PriceContext: decisions[i].PriceContext,
			PriceInsight: insights[f.ID],
		}
	}
	return out
}

// Wait blocks until background price recording has finished.
func (s *Service) Wait() {
	s.recording.Wait()
}

func (s *Service) cachedSearch(ctx context.Context, q flights.SearchQuery) (Session, bool) {
	if s.cache == nil {
		return Session{}, false
	}
	var session Session
	ok, err := s.cache.GetJSON(ctx, s.opts.Keys.Search(QueryHash(q)), &session)
	if err != nil {
		s.logger.Warn().Err(err).Msg("search cache read failed")
		return Session{}, false
	}
	return session, ok
}

func (s *Service) storeSearch(ctx context.Context, session Session) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, s.opts.Keys.Search(QueryHash(session.Query)), session, s.opts.SearchTTL); err != nil {
		s.logger.Warn().Err(err).Msg("search cache write failed")
	}
	if err := s.cache.SetJSON(ctx, s.opts.Keys.Session(session.SearchID), session, s.opts.SessionTTL); err != nil {
		s.logger.Warn().Err(err).Str("search_id", session.SearchID).Msg("session write failed")
	}
	for _, f := range session.Flights {
		if err := s.cache.SetJSON(ctx, s.opts.Keys.Flight(f.ID), f, s.opts.FlightTTL); err != nil {
			s.logger.Warn().Err(err).Str("flight_id", f.ID).Msg("flight cache write failed")
			return
		}
	}
}

func (s *Service) lookupInsights(ctx context.Context, results []flights.FlightResult, route flights.Route) map[string]*insight.PriceInsight {
	if s.insights == nil || len(results) == 0 {
		return nil
	}
	insights, err := s.insights.GetPriceInsightsForFlights(ctx, results, route)
	if err != nil {
		s.logger.Warn().Err(err).Str("route", route.String()).Msg("price insights unavailable")
		return nil
	}
	return insights
}

// recordAsync stores prices on a context detached from the request so a client
// disconnect does not drop the write.
func (s *Service) recordAsync(ctx context.Context, results []flights.FlightResult) {
	if s.recorder == nil || len(results) == 0 {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RecordTimeout)

	s.recording.Add(1)
	go func() {
		defer s.recording.Done()
		defer cancel()

		n, err := s.recorder.RecordSearchPrices(recordCtx, results)
		s.observer.ObservePricesRecorded(n, err)
		if err != nil {
			s.logger.Error().Err(err).Int("recorded", n).Msg("price recording incomplete")
			return
		}
		s.logger.Debug().Int("recorded", n).Msg("search prices recorded")
	}()
}

// QueryHash identifies equivalent searches.
func QueryHash(q flights.SearchQuery) string {
	payload, _ := json.Marshal(q)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:12])
}

// NewSearchID returns a fresh search id.
func NewSearchID() string {
	return uuid.NewString()
}
