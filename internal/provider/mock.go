package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"fareradar/internal/flights"
)

type mockAirline struct {
	code string
	name string
}

var mockAirlines = []mockAirline{
	{"LA", "LATAM"},
	{"G3", "GOL"},
	{"AD", "Azul"},
}

var mockHubs = []string{"BSB", "CNF", "VCP", "REC", "GIG"}

// Mock fabricates plausible offers for development. The same query always
// yields the same offers.
type Mock struct {
	Latency time.Duration
}

// NewMock constructs a Mock provider.
func NewMock() *Mock { return &Mock{} }

// Name implements SearchProvider.
func (m *Mock) Name() string { return "mock" }

// Search implements SearchProvider.
func (m *Mock) Search(ctx context.Context, q flights.SearchQuery) ([]flights.FlightResult, error) {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	depart, err := time.Parse(flights.DateLayout, q.Depart)
	if err != nil {
		return nil, fmt.Errorf("mock search: %w", err)
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", q.From, q.To, q.Depart)
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	variant := mockVariant(q)

	count := q.Max
	if count <= 0 || count > 12 {
		count = 8
	}
	basePrice := 250 + rng.IntN(900)
	baseMinutes := 60 + rng.IntN(240)

	results := make([]flights.FlightResult, 0, count)
	for i := 0; i < count; i++ {
		airline := mockAirlines[rng.IntN(len(mockAirlines))]
		stops := rng.IntN(3)
		if q.NonStop {
			stops = 0
		}

		minutes := baseMinutes + stops*(70+rng.IntN(90)) + rng.IntN(40)
		dep := depart.Add(time.Duration(5*60+rng.IntN(17*60)) * time.Minute).Truncate(5 * time.Minute)
		arr := dep.Add(time.Duration(minutes) * time.Minute)

		stopsCities := make([]string, 0, stops)
		for s := 0; s < stops; s++ {
			hub := mockHubs[rng.IntN(len(mockHubs))]
			if hub == q.From || hub == q.To {
				hub = "BSB"
			}
			stopsCities = append(stopsCities, hub)
		}

		f := flights.FlightResult{
			ID:             fmt.Sprintf("mock-%s%s-%s-%s-%02d", q.From, q.To, depart.Format("20060102"), variant, i+1),
			Airline:        airline.name,
			AirlineCode:    airline.code,
			Origin:         q.From,
			Destination:    q.To,
			DepartureDate:  q.Depart,
			DepartureTime:  dep.Format("15:04"),
			ArrivalTime:    arr.Format("15:04"),
			Duration:       flights.FormatDuration(minutes),
			Stops:          flights.StopsLabel(stops),
			Price:          basePrice + rng.IntN(600) - stops*40 + 60,
			OffersCount:    1 + rng.IntN(4),
			CO2:            fmt.Sprintf("%d kg", 40+minutes/3),
			NextDayArrival: arr.YearDay() != dep.YearDay(),
		}
		if len(stopsCities) > 0 {
			f.StopsCities = stopsCities
		}
		results = append(results, f)
	}
	return results, nil
}

// mockVariant fingerprints the query fields that change the generated offers,
// so different searches never share flight ids.
func mockVariant(q flights.SearchQuery) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d|%d|%t", q.Return, q.Adults, q.Max, q.NonStop)
	return fmt.Sprintf("%08x", h.Sum32())
}

var _ SearchProvider = (*Mock)(nil)
