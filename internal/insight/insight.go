// Package insight turns price history into data-backed price insights. When a
// route lacks samples there is no insight; numbers are never filled in.
package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fareradar/internal/flights"
	"fareradar/internal/pricehistory"
)

// MinSamples is the sample count an aggregate needs before it is surfaced.
const MinSamples = 5

// WindowDays is the trailing window insights are computed over.
const WindowDays = 30

// PriceInsight compares a current price with the route's recent history.
type PriceInsight struct {
	Route             string `json:"route"`
	CurrentPrice      int    `json:"currentPrice"`
	HistoricalAverage int    `json:"historicalAverage"`
	Lowest30Days      int    `json:"lowest30Days"`
	PriceDifference   int    `json:"priceDifference"`
	IsLowestRecent    bool   `json:"isLowestRecent"`
	SampleCount       int64  `json:"sampleCount"`
}

// DifferencePct returns PriceDifference relative to the historical average, in percent.
func (p PriceInsight) DifferencePct() decimal.Decimal {
	if p.HistoricalAverage == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.PriceDifference)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(p.HistoricalAverage))).
		Round(1)
}

// HistorySource is the slice of the price history service insights need.
type HistorySource interface {
	GetPriceHistoryForRoute(ctx context.Context, origin, destination string, windowDays int) (pricehistory.Aggregate, error)
}

// Service derives insights from a HistorySource.
type Service struct {
	history HistorySource
	logger  zerolog.Logger
}

// New constructs a Service.
func New(history HistorySource, logger zerolog.Logger) *Service {
	return &Service{
		history: history,
		logger:  logger.With().Str("component", "insight").Logger(),
	}
}

// GetPriceInsight returns nil when the route has fewer than MinSamples samples.
func (s *Service) GetPriceInsight(ctx context.Context, route flights.Route, currentPrice int) (*PriceInsight, error) {
	agg, err := s.history.GetPriceHistoryForRoute(ctx, route.Origin, route.Destination, WindowDays)
	if err != nil {
		return nil, fmt.Errorf("price insight %s: %w", route, err)
	}
	if !Sufficient(agg) {
		return nil, nil
	}
	in := build(route, agg, currentPrice)
	return &in, nil
}

// GetPriceInsightsForFlights computes insights for many flights with one history
// lookup. The map is empty when the route is under-sampled.
func (s *Service) GetPriceInsightsForFlights(ctx context.Context, results []flights.FlightResult, route flights.Route) (map[string]*PriceInsight, error) {
	out := make(map[string]*PriceInsight)
	if len(results) == 0 {
		return out, nil
	}

	agg, err := s.history.GetPriceHistoryForRoute(ctx, route.Origin, route.Destination, WindowDays)
	if err != nil {
		return nil, fmt.Errorf("price insights %s: %w", route, err)
	}
	if !Sufficient(agg) {
		s.logger.Debug().Str("route", route.String()).Int64("samples", agg.SampleCount).Msg("not enough samples for insight")
		return out, nil
	}

	for _, f := range results {
		in := build(route, agg, f.Price)
		out[f.ID] = &in
	}
	return out, nil
}

// Sufficient reports whether an aggregate passes the MinSamples gate.
func Sufficient(agg pricehistory.Aggregate) bool {
	return agg.SampleCount >= MinSamples
}

func build(route flights.Route, agg pricehistory.Aggregate, currentPrice int) PriceInsight {
	return PriceInsight{
		Route:             strings.ToUpper(route.String()),
		CurrentPrice:      currentPrice,
		HistoricalAverage: agg.AveragePrice,
		Lowest30Days:      agg.MinPrice,
		PriceDifference:   agg.AveragePrice - currentPrice,
		IsLowestRecent:    currentPrice <= agg.MinPrice,
		SampleCount:       agg.SampleCount,
	}
}
