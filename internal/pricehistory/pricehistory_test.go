package pricehistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fareradar/internal/flights"
	"fareradar/internal/storage"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(now *time.Time) (*Service, *storage.MemoryStore) {
	clock := func() time.Time { return *now }
	store := storage.NewMemoryStoreWithClock(clock)
	return New(store, Options{Now: clock}, zerolog.Nop()), store
}

func TestRecordPriceRoundTrip(t *testing.T) {
	now := testNow
	svc, _ := newTestService(&now)
	ctx := context.Background()
	route := flights.Route{Origin: "GRU", Destination: "GIG"}
	depart := time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)

	before, err := svc.GetPriceHistoryForRoute(ctx, "GRU", "GIG", 30)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if err := svc.RecordPrice(ctx, route, depart, 450); err != nil {
		t.Fatalf("record: %v", err)
	}

	after, err := svc.GetPriceHistoryForRoute(ctx, "GRU", "GIG", 30)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if after.SampleCount != before.SampleCount+1 {
		t.Fatalf("sample count should grow by one: before=%d after=%d", before.SampleCount, after.SampleCount)
	}
	if after.MinPrice > 450 {
		t.Fatalf("min price %d should not exceed recorded price", after.MinPrice)
	}
	if after.RouteKey != "GRU-GIG" {
		t.Fatalf("unexpected route key %q", after.RouteKey)
	}

	agg, err := svc.GetPriceHistory(ctx, "price-history:GRU-GIG-2025-04")
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	if agg == nil || agg.SampleCount != 1 || agg.AveragePrice != 450 {
		t.Fatalf("unexpected bucket aggregate %+v", agg)
	}
}

func TestRecordPriceRejectsNonPositive(t *testing.T) {
	now := testNow
	svc, _ := newTestService(&now)
	ctx := context.Background()
	route := flights.Route{Origin: "GRU", Destination: "GIG"}

	for _, price := range []int{0, -10} {
		if err := svc.RecordPrice(ctx, route, testNow, price); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %d: expected ErrInvalidPrice, got %v", price, err)
		}
	}
	agg, _ := svc.GetPriceHistoryForRoute(ctx, "GRU", "GIG", 30)
	if agg.SampleCount != 0 {
		t.Fatalf("invalid prices must not be recorded, got %d samples", agg.SampleCount)
	}
}

func TestGetPriceHistoryMissingBucket(t *testing.T) {
	now := testNow
	svc, _ := newTestService(&now)

	agg, err := svc.GetPriceHistory(context.Background(), "price-history:GRU-XXX-2025-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg != nil {
		t.Fatalf("missing bucket should be nil, got %+v", agg)
	}
}

func TestGetPriceHistoryForRouteWindow(t *testing.T) {
	now := testNow
	svc, _ := newTestService(&now)
	ctx := context.Background()
	route := flights.Route{Origin: "gru", Destination: "gig"}

	// 40 days ago: outside the 30 day window but the bucket is still live.
	now = testNow.Add(-40 * 24 * time.Hour)
	_ = svc.RecordPrice(ctx, route, testNow, 100)

	now = testNow.Add(-10 * 24 * time.Hour)
	_ = svc.RecordPrice(ctx, route, testNow, 500)
	_ = svc.RecordPrice(ctx, route, testNow.AddDate(0, 1, 0), 301)

	now = testNow
	agg, err := svc.GetPriceHistoryForRoute(ctx, "GRU", "GIG", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if agg.SampleCount != 2 {
		t.Fatalf("expected 2 samples in window, got %d", agg.SampleCount)
	}
	if agg.MinPrice != 301 {
		t.Fatalf("expected min 301, got %d", agg.MinPrice)
	}
	// (500+301)/2 = 400.5 rounds half-up
	if agg.AveragePrice != 401 {
		t.Fatalf("expected average 401, got %d", agg.AveragePrice)
	}
	if agg.MinPrice > agg.AveragePrice {
		t.Fatalf("min %d must not exceed average %d", agg.MinPrice, agg.AveragePrice)
	}
	if !agg.WindowEnd.Equal(testNow) || !agg.WindowStart.Equal(testNow.Add(-30*24*time.Hour)) {
		t.Fatalf("unexpected window %s..%s", agg.WindowStart, agg.WindowEnd)
	}
}

func TestExpiredBucketReadsAsNoData(t *testing.T) {
	now := testNow
	svc, _ := newTestService(&now)
	ctx := context.Background()
	route := flights.Route{Origin: "GRU", Destination: "GIG"}

	_ = svc.RecordPrice(ctx, route, testNow, 400)
	now = testNow.Add(BucketTTL)

	agg, err := svc.GetPriceHistory(ctx, svc.Key(route, testNow))
	if err != nil || agg != nil {
		t.Fatalf("expired bucket should be nil, got %+v err=%v", agg, err)
	}
	window, _ := svc.GetPriceHistoryForRoute(ctx, "GRU", "GIG", 60)
	if window.SampleCount != 0 || window.MinPrice != 0 {
		t.Fatalf("expired samples must not be aggregated, got %+v", window)
	}
}

func TestRecordSearchPrices(t *testing.T) {
	now := testNow
	svc, _ := newTestService(&now)
	ctx := context.Background()

	results := []flights.FlightResult{
		{ID: "a", Origin: "GRU", Destination: "GIG", DepartureDate: "2025-04-01", Price: 300},
		{ID: "b", Origin: "GRU", Destination: "GIG", DepartureDate: "2025-05-02", Price: 350},
		{ID: "c", Origin: "GRU", Destination: "GIG", DepartureDate: "bad", Price: 320},
		{ID: "d", Origin: "GRU", Destination: "GIG", DepartureDate: "2025-04-03", Price: 0},
	}

	n, err := svc.RecordSearchPrices(ctx, results)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recorded, got %d", n)
	}

	buckets, err := svc.RouteBuckets(ctx, "GRU", "GIG")
	if err != nil {
		t.Fatalf("buckets: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected one bucket per departure month, got %d", len(buckets))
	}
	if buckets[0].RouteKey != "price-history:GRU-GIG-2025-04" {
		t.Fatalf("unexpected key %q", buckets[0].RouteKey)
	}
}
