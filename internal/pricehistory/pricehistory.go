// Package pricehistory records observed fares per route and month and serves
// aggregates over them.
package pricehistory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fareradar/internal/flights"
	"fareradar/internal/storage"
)

// BucketTTL is how long a month bucket lives after its last append.
const BucketTTL = 45 * 24 * time.Hour

// DefaultWindowDays is the aggregation window used when none is given.
const DefaultWindowDays = 30

// ErrInvalidPrice is returned for non-positive prices.
var ErrInvalidPrice = errors.New("pricehistory: price must be positive")

// Aggregate summarises the samples of a bucket or a route window.
type Aggregate struct {
	RouteKey     string    `json:"routeKey"`
	SampleCount  int64     `json:"sampleCount"`
	MinPrice     int       `json:"minPrice"`
	AveragePrice int       `json:"averagePrice"`
	WindowStart  time.Time `json:"windowStart"`
	WindowEnd    time.Time `json:"windowEnd"`
}

// Options tune a Service.
type Options struct {
	Keys storage.Keyspace
	TTL  time.Duration
	Now  func() time.Time
}

// Service appends samples to a PriceSampleStore and aggregates them.
type Service struct {
	store  storage.PriceSampleStore
	keys   storage.Keyspace
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs a Service.
func New(store storage.PriceSampleStore, opts Options, logger zerolog.Logger) *Service {
	if opts.TTL <= 0 {
		opts.TTL = BucketTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:  store,
		keys:   opts.Keys,
		ttl:    opts.TTL,
		now:    opts.Now,
		logger: logger.With().Str("component", "pricehistory").Logger(),
	}
}

// Key returns the bucket key for a route and travel date.
func (s *Service) Key(route flights.Route, date time.Time) string {
	return s.keys.PriceHistory(route.Origin, route.Destination, date)
}

// RecordPrice appends one observed price to the route's bucket for the month of date.
func (s *Service) RecordPrice(ctx context.Context, route flights.Route, date time.Time, price int) error {
	if price <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}

	origin := strings.ToUpper(route.Origin)
	destination := strings.ToUpper(route.Destination)
	sample := storage.PriceSample{
		BucketKey:   s.keys.PriceHistory(origin, destination, date),
		Origin:      origin,
		Destination: destination,
		Month:       date.UTC().Format(storage.MonthLayout),
		Price:       price,
		ObservedAt:  s.now().UTC(),
	}
	if err := s.store.AppendSample(ctx, sample, s.ttl); err != nil {
		return fmt.Errorf("record price %s: %w", sample.BucketKey, err)
	}
	return nil
}

// RecordSearchPrices records one sample per flight, bucketed by departure month.
// Flights with an invalid price or date are skipped. It returns how many samples
// were stored together with any store errors.
func (s *Service) RecordSearchPrices(ctx context.Context, results []flights.FlightResult) (int, error) {
	var (
		recorded int
		errs     []error
	)
	for _, f := range results {
		day := f.DepartureDay()
		if f.Price <= 0 || day.IsZero() {
			s.logger.Debug().Str("flight_id", f.ID).Int("price", f.Price).Msg("skipping unrecordable flight")
			continue
		}
		if err := s.RecordPrice(ctx, flights.Route{Origin: f.Origin, Destination: f.Destination}, day, f.Price); err != nil {
			errs = append(errs, err)
			continue
		}
		recorded++
	}
	return recorded, errors.Join(errs...)
}

// GetPriceHistory returns the aggregate of one bucket, or nil when it is absent
// or expired.
func (s *Service) GetPriceHistory(ctx context.Context, routeKey string) (*Aggregate, error) {
	stats, err := s.store.BucketStats(ctx, routeKey)
	if err != nil {
		return nil, fmt.Errorf("price history %s: %w", routeKey, err)
	}
	if stats == nil {
		return nil, nil
	}
	agg := fromStats(*stats)
	return &agg, nil
}

// GetPriceHistoryForRoute aggregates every sample of the route observed within
// the last windowDays days.
func (s *Service) GetPriceHistoryForRoute(ctx context.Context, origin, destination string, windowDays int) (Aggregate, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	origin = strings.ToUpper(origin)
	destination = strings.ToUpper(destination)

	end := s.now().UTC()
	start := end.Add(-time.Duration(windowDays) * 24 * time.Hour)

	samples, err := s.store.RouteSamplesBetween(ctx, origin, destination, start, end)
	if err != nil {
		return Aggregate{}, fmt.Errorf("route history %s-%s: %w", origin, destination, err)
	}

	agg := Aggregate{
		RouteKey:    origin + "-" + destination,
		WindowStart: start,
		WindowEnd:   end,
	}
	var sum int64
	for _, sample := range samples {
		if agg.SampleCount == 0 || sample.Price < agg.MinPrice {
			agg.MinPrice = sample.Price
		}
		agg.SampleCount++
		sum += int64(sample.Price)
	}
	agg.AveragePrice = average(sum, agg.SampleCount)
	return agg, nil
}

// RouteBuckets lists the live month aggregates of a route.
func (s *Service) RouteBuckets(ctx context.Context, origin, destination string) ([]Aggregate, error) {
	buckets, err := s.store.ListRouteBuckets(ctx, strings.ToUpper(origin), strings.ToUpper(destination))
	if err != nil {
		return nil, fmt.Errorf("route buckets %s-%s: %w", origin, destination, err)
	}
	out := make([]Aggregate, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, fromStats(b))
	}
	return out, nil
}

// RouteSamples lists raw samples of a route observed within [from, to].
func (s *Service) RouteSamples(ctx context.Context, origin, destination string, from, to time.Time) ([]storage.PriceSample, error) {
	samples, err := s.store.RouteSamplesBetween(ctx, strings.ToUpper(origin), strings.ToUpper(destination), from, to)
	if err != nil {
		return nil, fmt.Errorf("route samples %s-%s: %w", origin, destination, err)
	}
	return samples, nil
}

func fromStats(stats storage.BucketStats) Aggregate {
	return Aggregate{
		RouteKey:     stats.Key,
		SampleCount:  stats.SampleCount,
		MinPrice:     stats.MinPrice,
		AveragePrice: average(stats.PriceSum, stats.SampleCount),
		WindowStart:  stats.FirstSeen,
		WindowEnd:    stats.LastSeen,
	}
}

// average rounds half-up to whole currency units.
func average(sum, count int64) int {
	if count == 0 {
		return 0
	}
	return int(decimal.NewFromInt(sum).Div(decimal.NewFromInt(count)).Round(0).IntPart())
}
