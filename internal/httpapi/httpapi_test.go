package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fareradar/internal/flights"
	"fareradar/internal/metrics"
	"fareradar/internal/ratelimit"
	"fareradar/internal/routes"
	"fareradar/internal/service"
	"fareradar/internal/storage"
	"fareradar/internal/tracking"
)

type stubFlights struct {
	mu        sync.Mutex
	result    service.SearchResult
	searchErr error
	lookup    service.FlightLookup
	lookupErr error
	lastQuery flights.SearchQuery
	lastHint  service.LookupHint
}

func (s *stubFlights) Search(ctx context.Context, q flights.SearchQuery) (service.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = q
	return s.result, s.searchErr
}

func (s *stubFlights) FindFlight(ctx context.Context, id string, hint service.LookupHint) (service.FlightLookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHint = hint
	return s.lookup, s.lookupErr
}

type stubRoutes struct {
	limit  int
	origin string
}

func (s *stubRoutes) PopularRoutes(ctx context.Context, limit int) (routes.PopularResponse, error) {
	s.limit = limit
	return routes.PopularResponse{Routes: []routes.PopularRouteCard{{Origin: "GRU", Destination: "GIG"}}}, nil
}

func (s *stubRoutes) SmartPopularRoutes(ctx context.Context, origin string) (routes.SmartResponse, error) {
	s.origin = origin
	return routes.SmartResponse{Origin: routes.Origin{Code: origin}}, nil
}

type stubTracker struct {
	events []tracking.ClickEvent
}

func (s *stubTracker) Track(ctx context.Context, ev tracking.ClickEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	s.events = append(s.events, ev)
	return "evt-1", nil
}

type harness struct {
	flights *stubFlights
	routes  *stubRoutes
	tracker *stubTracker
	handler http.Handler
}

func newHarness(t *testing.T, limiter RateLimiter) *harness {
	t.Helper()
	h := &harness{flights: &stubFlights{}, routes: &stubRoutes{}, tracker: &stubTracker{}}
	m := metrics.New("fareradar")
	deps := Deps{
		Flights:        h.flights,
		Routes:         h.routes,
		Tracker:        h.tracker,
		Limiter:        limiter,
		Metrics:        m,
		MetricsHandler: m.Handler(),
	}
	h.handler = New(deps, Options{Version: "test"}, zerolog.Nop()).Router()
	return h
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

var requestIDPattern = regexp.MustCompile(`^req_[0-9a-z]+_[0-9a-f]{8}$`)

func TestHealthCarriesRequestID(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	header := rec.Header().Get(RequestIDHeader)
	if !requestIDPattern.MatchString(header) {
		t.Fatalf("unexpected request id %q", header)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RequestID != header || body.Status != "ok" || body.Version != "test" {
		t.Fatalf("unexpected health body %+v", body)
	}
}

func TestNewRequestIDTimestamp(t *testing.T) {
	now := time.UnixMilli(1735689600000)
	id := NewRequestID(now)
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[1] != "m5d4ruo0" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestSearchValidation(t *testing.T) {
	h := newHarness(t, nil)

	cases := []struct {
		name  string
		query string
		code  string
		field string
	}{
		{"missing from", "to=GIG&depart=2099-05-01", CodeMissingRequired, "from"},
		{"missing to", "from=GRU&depart=2099-05-01", CodeMissingRequired, "to"},
		{"bad iata", "from=GR1&to=GIG&depart=2099-05-01", CodeInvalidIATA, "from"},
		{"bad date", "from=GRU&to=GIG&depart=01/05/2099", CodeInvalidParams, "depart"},
		{"past date", "from=GRU&to=GIG&depart=2001-05-01", CodeInvalidParams, "depart"},
		{"return before depart", "from=GRU&to=GIG&depart=2099-05-10&return=2099-05-01", CodeInvalidParams, "return"},
		{"adults out of range", "from=GRU&to=GIG&depart=2099-05-01&adults=0", CodeInvalidParams, "adults"},
		{"same airports", "from=GRU&to=gru&depart=2099-05-01", CodeInvalidParams, "to"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(http.MethodGet, "/api/flights/search?"+tc.query, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			body := decodeError(t, rec)
			if body.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, body.Code)
			}
			if len(body.Errors) == 0 || body.Errors[0].Field != tc.field {
				t.Fatalf("expected field error on %s, got %+v", tc.field, body.Errors)
			}
			if body.RequestID == "" {
				t.Fatal("error body must carry requestId")
			}
		})
	}
}

func TestSearchSuccess(t *testing.T) {
	h := newHarness(t, nil)
	h.flights.result = service.SearchResult{
		Flights: []service.SearchFlight{{
			FlightResult: flights.FlightResult{ID: "f1", Price: 500, Duration: "1h"},
			Label:        flights.LabelBestBalance,
			PriceContext: flights.PriceAverage,
		}},
		Source:   "mock",
		SearchID: "s1",
		Cached:   true,
		Took:     42 * time.Millisecond,
	}

	rec := h.do(http.MethodGet, "/api/flights/search?from=gru&to=gig&depart=2099-05-01&adults=2&nonStop=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body searchResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Flights) != 1 || body.Source != "mock" || !body.Meta.Cached || body.Meta.DurationMs != 42 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Meta.SearchID != "s1" || body.RequestID == "" {
		t.Fatalf("missing ids in %+v", body)
	}

	q := h.flights.lastQuery
	if q.From != "GRU" || q.To != "GIG" || q.Adults != 2 || !q.NonStop || q.Max != defaultMax {
		t.Fatalf("query not normalised: %+v", q)
	}
}

func TestSearchEmptyVersusFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.flights.result = service.SearchResult{Source: "mock"}

	rec := h.do(http.MethodGet, "/api/flights/search?from=GRU&to=GIG&depart=2099-05-01", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"flights":[]`) {
		t.Fatalf("empty result should be 200 with an empty list, got %d %s", rec.Code, rec.Body.String())
	}

	h.flights.searchErr = &service.SearchError{Provider: "live", Err: errors.New("timeout")}
	rec = h.do(http.MethodGet, "/api/flights/search?from=GRU&to=GIG&depart=2099-05-01", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != CodeSearchFailed {
		t.Fatalf("expected SEARCH_FAILED, got %s", body.Code)
	}
}

func TestGetFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.flights.lookup = service.FlightLookup{Flight: flights.FlightResult{ID: "f9", Price: 321}, Source: service.SourceSession}

	rec := h.do(http.MethodGet, "/api/flights/f9?searchId=s1&from=GRU&to=GIG&depart=2099-05-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body flightResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Flight.ID != "f9" || body.Source != service.SourceSession {
		t.Fatalf("unexpected body %+v", body)
	}
	hint := h.flights.lastHint
	if hint.SearchID != "s1" || hint.Query == nil || hint.Query.From != "GRU" {
		t.Fatalf("hint not forwarded: %+v", hint)
	}

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("flight f9: %w", service.ErrFlightContextMissing), http.StatusNotFound, CodeFlightMissing},
		{fmt.Errorf("flight f9: %w", service.ErrStoreUnavailable), http.StatusServiceUnavailable, CodeStoreUnavailable},
		{&service.SearchError{Provider: "live", Err: errors.New("503")}, http.StatusBadGateway, CodeSearchFailed},
	}
	for _, tc := range cases {
		h.flights.lookupErr = tc.err
		rec := h.do(http.MethodGet, "/api/flights/f9", "")
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		if body := decodeError(t, rec); body.Code != tc.code {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.code, body.Code)
		}
	}
}

func TestGetFlightStaleRefetchParams(t *testing.T) {
	h := newHarness(t, nil)
	h.flights.lookup = service.FlightLookup{Flight: flights.FlightResult{ID: "f9", Price: 321}, Source: service.SourceSession}

	targets := []string{
		"/api/flights/f9?searchId=s1&from=GRU&to=GIG&depart=2020-01-01",
		"/api/flights/f9?searchId=s1&from=GRU&to=GRU&depart=2099-05-01",
		"/api/flights/f9?searchId=s1&from=GRU&to=GIG&depart=2099-05-01&adults=40",
	}
	for _, target := range targets {
		rec := h.do(http.MethodGet, target, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rec.Code)
		}
		hint := h.flights.lastHint
		if hint.SearchID != "s1" {
			t.Fatalf("%s: search id not forwarded: %+v", target, hint)
		}
		if hint.Query != nil {
			t.Fatalf("%s: invalid params must not become a refetch query: %+v", target, hint.Query)
		}
	}
}

func TestRoutesEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/routes/popular?limit=20", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if h.routes.limit != 20 {
		t.Fatalf("limit should be forwarded for clamping, got %d", h.routes.limit)
	}
	if !strings.Contains(rec.Body.String(), `"requestId"`) || !strings.Contains(rec.Body.String(), `"routes"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec := h.do(http.MethodGet, "/api/routes/popular?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric limit should be rejected, got %d", rec.Code)
	}

	h.do(http.MethodGet, "/api/routes/smart-popular", "")
	if h.routes.origin != routes.DefaultOrigin {
		t.Fatalf("expected default origin, got %q", h.routes.origin)
	}
	h.do(http.MethodGet, "/api/routes/smart-popular?from=cnf", "")
	if h.routes.origin != "CNF" {
		t.Fatalf("expected CNF, got %q", h.routes.origin)
	}
	rec = h.do(http.MethodGet, "/api/routes/smart-popular?from=12", "")
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != CodeInvalidIATA {
		t.Fatalf("expected INVALID_IATA_CODE, got %d", rec.Code)
	}
}

func TestRateLimitRejects(t *testing.T) {
	limiter := ratelimit.New(storage.NewMemoryStore(), map[string]ratelimit.Policy{
		ratelimit.PolicyPublic: {Limit: 2, Window: time.Minute},
		ratelimit.PolicySearch: {Limit: 2, Window: time.Minute},
		ratelimit.PolicyTrack:  {Limit: 2, Window: time.Minute},
	}, zerolog.Nop())
	h := newHarness(t, limiter)

	for i := 0; i < 2; i++ {
		if rec := h.do(http.MethodGet, "/api/routes/popular", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := h.do(http.MethodGet, "/api/routes/popular", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	body := decodeError(t, rec)
	if body.Code != CodeRateLimited || body.RetryAfter < 1 {
		t.Fatalf("unexpected 429 body %+v", body)
	}

	// other policies keep their own counters
	if rec := h.do(http.MethodGet, "/api/flights/search?from=GRU&to=GIG&depart=2099-05-01", ""); rec.Code != http.StatusOK {
		t.Fatalf("search policy should be independent, got %d", rec.Code)
	}
}

func TestPartnerClick(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/track/partner-click",
		`{"partner":"latam","flightId":"f1","origin":"gru","destination":"gig","price":389,"metadata":{"email":"a@b.c"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body clickResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.EventID != "evt-1" || body.RequestID == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	ev := h.tracker.events[0]
	if ev.Origin != "GRU" || ev.Dest != "GIG" || ev.ClientHash == "" || ev.RequestID != body.RequestID {
		t.Fatalf("event not populated: %+v", ev)
	}

	if rec := h.do(http.MethodPost, "/api/track/partner-click", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json should be 400, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/track/partner-click", `{"flightId":"f1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing partner should be 400, got %d", rec.Code)
	}
}

func TestMetricsAndNotFound(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/health", "")

	rec := h.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "fareradar_http_requests_total") {
		t.Fatalf("metrics not exposed: %d", rec.Code)
	}

	rec = h.do(http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != CodeNotFound {
		t.Fatalf("expected JSON 404, got %d", rec.Code)
	}
}
