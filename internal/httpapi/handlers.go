package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fareradar/internal/flights"
	"fareradar/internal/ratelimit"
	"fareradar/internal/routes"
	"fareradar/internal/service"
	"fareradar/internal/tracking"
)

const maxClickBody = 16 << 10

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Provider  string `json:"provider,omitempty"`
	Backend   string `json:"backend,omitempty"`
	Time      string `json:"time"`
	RequestID string `json:"requestId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   s.opts.Version,
		Provider:  s.opts.Provider,
		Backend:   s.opts.Backend,
		Time:      s.now().UTC().Format(time.RFC3339),
		RequestID: RequestIDFrom(r.Context()),
	})
}

type popularResponse struct {
	routes.PopularResponse
	RequestID string `json:"requestId"`
}

func (s *Server) handlePopularRoutes(w http.ResponseWriter, r *http.Request) {
	limit, errs := parseLimit(r.URL.Query())
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	resp, err := s.routes.PopularRoutes(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("popular routes failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "could not load popular routes")
		return
	}
	writeJSON(w, http.StatusOK, popularResponse{PopularResponse: resp, RequestID: RequestIDFrom(r.Context())})
}

type smartResponse struct {
	routes.SmartResponse
	RequestID string `json:"requestId"`
}

func (s *Server) handleSmartRoutes(w http.ResponseWriter, r *http.Request) {
	origin := routes.DefaultOrigin
	if raw := r.URL.Query().Get("from"); raw != "" {
		code, ok := normalizeIATA(raw)
		if !ok {
			writeValidation(w, r, []FieldError{{Field: "from", Code: FieldIATA, Message: "from must be a 3-letter IATA code"}})
			return
		}
		origin = code
	}

	resp, err := s.routes.SmartPopularRoutes(r.Context(), origin)
	if err != nil {
		s.logger.Error().Err(err).Str("origin", origin).Msg("smart routes failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "could not load route suggestions")
		return
	}
	writeJSON(w, http.StatusOK, smartResponse{SmartResponse: resp, RequestID: RequestIDFrom(r.Context())})
}

type searchMeta struct {
	DurationMs int64  `json:"durationMs"`
	Cached     bool   `json:"cached"`
	SearchID   string `json:"searchId"`
}

type searchResponse struct {
	Flights   []service.SearchFlight `json:"flights"`
	Source    string                 `json:"source"`
	Meta      searchMeta             `json:"meta"`
	RequestID string                 `json:"requestId"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, errs := parseSearchQuery(r.URL.Query(), s.now())
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	res, err := s.flights.Search(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := res.Flights
	if out == nil {
		out = []service.SearchFlight{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Flights: out,
		Source:  res.Source,
		Meta: searchMeta{
			DurationMs: res.Took.Milliseconds(),
			Cached:     res.Cached,
			SearchID:   res.SearchID,
		},
		RequestID: RequestIDFrom(r.Context()),
	})
}

type flightResponse struct {
	Flight    flights.FlightResult `json:"flight"`
	Source    string               `json:"source"`
	RequestID string               `json:"requestId"`
}

func (s *Server) handleGetFlight(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeValidation(w, r, []FieldError{{Field: "id", Code: FieldRequired, Message: "id is required"}})
		return
	}

	values := r.URL.Query()
	hint := service.LookupHint{SearchID: values.Get("searchId")}
	// Bad refetch params only disable the refetch step; the cached flight or
	// session may still resolve the id.
	if hasSearchParams(values) {
		q, errs := parseSearchQuery(values, s.now())
		if len(errs) == 0 {
			hint.Query = &q
		} else {
			s.logger.Debug().Str("flight_id", id).Int("errors", len(errs)).Msg("ignoring invalid refetch params")
		}
	}

	found, err := s.flights.FindFlight(r.Context(), id, hint)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flightResponse{
		Flight:    found.Flight,
		Source:    found.Source,
		RequestID: RequestIDFrom(r.Context()),
	})
}

type clickRequest struct {
	Partner     string         `json:"partner"`
	FlightID    string         `json:"flightId"`
	SearchID    string         `json:"searchId"`
	Origin      string         `json:"origin"`
	Destination string         `json:"destination"`
	Price       int            `json:"price"`
	Position    int            `json:"position"`
	Label       string         `json:"label"`
	Metadata    map[string]any `json:"metadata"`
}

type clickResponse struct {
	OK        bool   `json:"ok"`
	EventID   string `json:"eventId"`
	RequestID string `json:"requestId"`
}

func (s *Server) handlePartnerClick(w http.ResponseWriter, r *http.Request) {
	var body clickRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClickBody))
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidParams, "body must be a JSON object")
		return
	}

	ip := clientIP(r)
	eventID, err := s.tracker.Track(r.Context(), tracking.ClickEvent{
		Partner:    strings.TrimSpace(body.Partner),
		FlightID:   body.FlightID,
		SearchID:   body.SearchID,
		Origin:     strings.ToUpper(body.Origin),
		Dest:       strings.ToUpper(body.Destination),
		Price:      body.Price,
		Position:   body.Position,
		Label:      body.Label,
		ClientHash: ratelimit.HashClient(ip),
		RequestID:  RequestIDFrom(r.Context()),
		Metadata:   body.Metadata,
	})
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidEvent) {
			writeJSON(w, http.StatusBadRequest, ErrorBody{
				Code:      CodeInvalidParams,
				Message:   strings.ReplaceAll(err.Error(), "\n", "; "),
				RequestID: RequestIDFrom(r.Context()),
			})
			return
		}
		s.logger.Error().Err(err).Msg("track click failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "could not record click")
		return
	}

	writeJSON(w, http.StatusAccepted, clickResponse{OK: true, EventID: eventID, RequestID: RequestIDFrom(r.Context())})
}

// writeServiceError maps service failures onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrSearchFailed):
		writeError(w, r, http.StatusBadGateway, CodeSearchFailed, "flight search is temporarily unavailable")
	case errors.Is(err, service.ErrFlightContextMissing):
		writeError(w, r, http.StatusNotFound, CodeFlightMissing, "flight not found; search again")
	case errors.Is(err, service.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, CodeStoreUnavailable, "flight store is unavailable")
	case r.Context().Err() != nil:
		writeError(w, r, http.StatusGatewayTimeout, CodeInternal, "request timed out")
	default:
		s.logger.Error().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("unhandled service error")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
