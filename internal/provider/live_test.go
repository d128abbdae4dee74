package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"fareradar/internal/flights"
)

type staticFetcher struct{ calls atomic.Int32 }

func (f *staticFetcher) Token(ctx context.Context) (*oauth2.Token, error) {
	f.calls.Add(1)
	return &oauth2.Token{AccessToken: "secret-token", Expiry: time.Now().Add(time.Hour)}, nil
}

const offersJSON = `{
  "data": [
    {
      "id": "1",
      "itineraries": [{
        "duration": "PT10H45M",
        "segments": [
          {"departure": {"iataCode": "GRU", "at": "2025-04-18T22:10:00"}, "arrival": {"iataCode": "BSB", "at": "2025-04-18T23:55:00"}, "carrierCode": "LA",
           "co2Emissions": [{"weight": 80, "weightUnit": "KG"}]},
          {"departure": {"iataCode": "BSB", "at": "2025-04-19T06:00:00"}, "arrival": {"iataCode": "SSA", "at": "2025-04-19T08:55:00"}, "carrierCode": "LA",
           "co2Emissions": [{"weight": 60, "weightUnit": "KG"}]}
        ]
      }],
      "price": {"total": "1234.56", "currency": "BRL"},
      "validatingAirlineCodes": ["LA"]
    },
    {
      "id": "2",
      "itineraries": [{"duration": "PT2H20M", "segments": [
        {"departure": {"iataCode": "GRU", "at": "2025-04-18T07:00:00"}, "arrival": {"iataCode": "SSA", "at": "2025-04-18T09:20:00"}, "carrierCode": "G3"}
      ]}],
      "price": {"total": "899.00", "currency": "BRL"}
    },
    {"id": "3", "itineraries": [], "price": {"total": "10.00"}}
  ],
  "dictionaries": {"carriers": {"LA": "LATAM AIRLINES BRASIL", "G3": "GOL LINHAS AEREAS"}}
}`

var searchQuery = flights.SearchQuery{From: "GRU", To: "SSA", Depart: "2025-04-18", Adults: 1, Max: 10}

func newTestLive(t *testing.T, handler http.HandlerFunc, retries int) (*Live, *staticFetcher) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetcher := &staticFetcher{}
	tokens := NewTokenService(fetcher, TokenOptions{}, zerolog.Nop())
	live := NewLive(LiveOptions{
		BaseURL: srv.URL,
		Retries: retries,
		Backoff: time.Millisecond,
		Timeout: time.Second,
	}, tokens, srv.Client(), zerolog.Nop())
	return live, fetcher
}

func TestLiveSearchMapsOffers(t *testing.T) {
	live, _ := newTestLive(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != flightOffersPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("unexpected authorization %q", got)
		}
		q := r.URL.Query()
		if q.Get("originLocationCode") != "GRU" || q.Get("currencyCode") != "BRL" || q.Get("nonStop") != "" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(offersJSON))
	}, 0)

	results, err := live.Search(context.Background(), searchQuery)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected malformed offer to be skipped, got %d results", len(results))
	}

	first := results[0]
	if first.Price != 1235 || first.Airline != "LATAM AIRLINES BRASIL" || first.AirlineCode != "LA" {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.Duration != "10h 45min" || first.Stops != "1 parada" || !first.NextDayArrival {
		t.Fatalf("unexpected itinerary fields %+v", first)
	}
	if len(first.StopsCities) != 1 || first.StopsCities[0] != "BSB" || first.CO2 != "140 kg" {
		t.Fatalf("unexpected stops/co2 %+v", first)
	}
	if first.DepartureDate != "2025-04-18" || first.DepartureTime != "22:10" || first.ArrivalTime != "08:55" {
		t.Fatalf("unexpected times %+v", first)
	}
	if first.ID == "" || first.ID == results[1].ID {
		t.Fatal("offer ids must be set and distinct")
	}

	again, _ := live.Search(context.Background(), searchQuery)
	if again[0].ID != first.ID {
		t.Fatal("offer ids must be stable across searches")
	}
}

func TestLiveSearchRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	live, _ := newTestLive(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	}, 2)

	results, err := live.Search(context.Background(), searchQuery)
	if err != nil {
		t.Fatalf("search should succeed after retries: %v", err)
	}
	if len(results) != 0 || calls.Load() != 3 {
		t.Fatalf("unexpected results=%d calls=%d", len(results), calls.Load())
	}
}

func TestLiveSearchErrorClasses(t *testing.T) {
	cases := []struct {
		status int
		want   error
		calls  int32
	}{
		{http.StatusUnauthorized, ErrAuth, 1},
		{http.StatusTooManyRequests, ErrRateLimited, 2},
		{http.StatusServiceUnavailable, ErrTransient, 2},
	}
	for _, tc := range cases {
		var calls atomic.Int32
		live, fetcher := newTestLive(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"errors":[{"title":"nope","detail":"try later"}]}`))
		}, 1)

		_, err := live.Search(context.Background(), searchQuery)
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		if calls.Load() != tc.calls {
			t.Fatalf("status %d: expected %d calls, got %d", tc.status, tc.calls, calls.Load())
		}
		if tc.want == ErrAuth {
			_, _ = live.Search(context.Background(), searchQuery)
			if fetcher.calls.Load() != 2 {
				t.Fatalf("rejected token should be refetched, fetches=%d", fetcher.calls.Load())
			}
		}
	}
}

func TestLiveSearchBadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	live, _ := newTestLive(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, 3)

	_, err := live.Search(context.Background(), searchQuery)
	if err == nil || isRetryable(err) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried, calls=%d", calls.Load())
	}
}

func TestMockDeterministic(t *testing.T) {
	m := NewMock()
	q := flights.SearchQuery{From: "GRU", To: "GIG", Depart: "2025-05-02", Adults: 1, Max: 6, NonStop: true}

	a, err := m.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	b, _ := m.Search(context.Background(), q)
	if len(a) != 6 || len(b) != 6 {
		t.Fatalf("expected 6 results, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Price != b[i].Price {
			t.Fatalf("mock results differ at %d: %+v vs %+v", i, a[i], b[i])
		}
		if a[i].Price <= 0 || a[i].Stops != "Direto" || a[i].DepartureDate != q.Depart {
			t.Fatalf("unexpected mock flight %+v", a[i])
		}
		if flights.ParseDurationToMinutes(a[i].Duration) <= 0 {
			t.Fatalf("mock duration unreadable: %q", a[i].Duration)
		}
	}
}

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"PT10H45M", 645, true},
		{"PT2H", 120, true},
		{"PT50M", 50, true},
		{"P1DT2H30M", 1590, true},
		{"P1D", 1440, true},
		{"", 0, false},
		{"PT", 0, false},
		{"10h 45min", 0, false},
	}
	for _, tc := range cases {
		got, err := parseISODuration(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("parseISODuration(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("parseISODuration(%q) should fail, got %d", tc.in, got)
		}
	}

	f, err := mapOffer(flights.SearchQuery{From: "GRU", To: "LIS", Depart: "2030-03-01"}, offer{
		ID: "9",
		Itineraries: []itinerary{{
			Duration: "P1DT2H30M",
			Segments: []segment{
				{Departure: endpoint{IATACode: "GRU", At: "2030-03-01T22:00:00"}, Arrival: endpoint{IATACode: "MAD", At: "2030-03-02T12:00:00"}, CarrierCode: "UX"},
				{Departure: endpoint{IATACode: "MAD", At: "2030-03-02T18:00:00"}, Arrival: endpoint{IATACode: "LIS", At: "2030-03-02T19:30:00"}, CarrierCode: "UX"},
			},
		}},
		Price: offerPrice{Total: "4210.40", Currency: "BRL"},
	}, nil)
	if err != nil {
		t.Fatalf("map offer: %v", err)
	}
	if got := flights.ParseDurationToMinutes(f.Duration); got != 1590 {
		t.Fatalf("multi-day duration lost: %q (%d min)", f.Duration, got)
	}

	if _, err := mapOffer(flights.SearchQuery{}, offer{
		Itineraries: []itinerary{{Duration: "PT", Segments: []segment{{}}}},
		Price:       offerPrice{Total: "100"},
	}, nil); err == nil {
		t.Fatal("offer with empty duration should be rejected")
	}
}

func TestMockIDsDifferAcrossQueries(t *testing.T) {
	m := NewMock()
	base := flights.SearchQuery{From: "GRU", To: "GIG", Depart: "2025-05-02", Adults: 1, Max: 6}
	variants := []flights.SearchQuery{base}
	withReturn := base
	withReturn.Return = "2025-05-09"
	nonStop := base
	nonStop.NonStop = true
	wider := base
	wider.Max = 8
	variants = append(variants, withReturn, nonStop, wider)

	seen := make(map[string]int)
	for vi, q := range variants {
		results, err := m.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("search %d: %v", vi, err)
		}
		for _, f := range results {
			if prev, dup := seen[f.ID]; dup {
				t.Fatalf("flight id %s produced by queries %d and %d", f.ID, prev, vi)
			}
			seen[f.ID] = vi
		}
	}
}
