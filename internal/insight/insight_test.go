package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"fareradar/internal/flights"
	"fareradar/internal/pricehistory"
)

type stubHistory struct {
	agg   pricehistory.Aggregate
	err   error
	calls int
}

func (s *stubHistory) GetPriceHistoryForRoute(ctx context.Context, origin, destination string, windowDays int) (pricehistory.Aggregate, error) {
	s.calls++
	return s.agg, s.err
}

var route = flights.Route{Origin: "GRU", Destination: "GIG"}

func TestInsightGatedByMinSamples(t *testing.T) {
	for count := int64(0); count < MinSamples; count++ {
		for _, price := range []int{1, 500, 100000} {
			h := &stubHistory{agg: pricehistory.Aggregate{SampleCount: count, MinPrice: 400, AveragePrice: 600}}
			in, err := New(h, zerolog.Nop()).GetPriceInsight(context.Background(), route, price)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in != nil {
				t.Fatalf("samples=%d price=%d: expected no insight, got %+v", count, price, in)
			}
		}
	}
}

func TestInsightValues(t *testing.T) {
	h := &stubHistory{agg: pricehistory.Aggregate{SampleCount: MinSamples, MinPrice: 400, AveragePrice: 600}}
	svc := New(h, zerolog.Nop())

	cases := []struct {
		price      int
		difference int
		lowest     bool
	}{
		{price: 350, difference: 250, lowest: true},
		{price: 400, difference: 200, lowest: true},
		{price: 700, difference: -100, lowest: false},
	}
	for _, tc := range cases {
		in, err := svc.GetPriceInsight(context.Background(), route, tc.price)
		if err != nil || in == nil {
			t.Fatalf("price %d: expected insight, got %+v err=%v", tc.price, in, err)
		}
		if in.PriceDifference != tc.difference || in.IsLowestRecent != tc.lowest {
			t.Fatalf("price %d: unexpected insight %+v", tc.price, in)
		}
		if in.HistoricalAverage != 600 || in.Lowest30Days != 400 || in.Route != "GRU-GIG" {
			t.Fatalf("unexpected insight fields %+v", in)
		}
	}
}

func TestInsightError(t *testing.T) {
	boom := errors.New("store down")
	svc := New(&stubHistory{err: boom}, zerolog.Nop())
	if _, err := svc.GetPriceInsight(context.Background(), route, 100); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestInsightsForFlightsSingleLookup(t *testing.T) {
	h := &stubHistory{agg: pricehistory.Aggregate{SampleCount: 8, MinPrice: 400, AveragePrice: 500}}
	svc := New(h, zerolog.Nop())

	results := []flights.FlightResult{{ID: "a", Price: 380}, {ID: "b", Price: 520}, {ID: "c", Price: 400}}
	got, err := svc.GetPriceInsightsForFlights(context.Background(), results, route)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if h.calls != 1 {
		t.Fatalf("expected one history lookup, got %d", h.calls)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 insights, got %d", len(got))
	}
	if !got["a"].IsLowestRecent || got["b"].IsLowestRecent || got["b"].PriceDifference != -20 {
		t.Fatalf("unexpected insights a=%+v b=%+v", got["a"], got["b"])
	}
}

func TestInsightsForFlightsUnderSampled(t *testing.T) {
	h := &stubHistory{agg: pricehistory.Aggregate{SampleCount: 2, MinPrice: 400, AveragePrice: 500}}
	got, err := New(h, zerolog.Nop()).GetPriceInsightsForFlights(context.Background(), []flights.FlightResult{{ID: "a", Price: 1}}, route)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("under-sampled route must yield no insights, got %v", got)
	}
}

func TestDifferencePct(t *testing.T) {
	in := PriceInsight{HistoricalAverage: 600, PriceDifference: 150}
	if got := in.DifferencePct().String(); got != "25" {
		t.Fatalf("expected 25, got %s", got)
	}
}
