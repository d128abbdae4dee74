// Package httpapi serves the JSON API consumed by the web UI.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"fareradar/internal/flights"
	"fareradar/internal/ratelimit"
	"fareradar/internal/routes"
	"fareradar/internal/service"
	"fareradar/internal/tracking"
)

// FlightSearcher runs searches and resolves flights by id.
type FlightSearcher interface {
	Search(ctx context.Context, q flights.SearchQuery) (service.SearchResult, error)
	FindFlight(ctx context.Context, id string, hint service.LookupHint) (service.FlightLookup, error)
}

// RouteLister builds the route suggestion cards.
type RouteLister interface {
	PopularRoutes(ctx context.Context, limit int) (routes.PopularResponse, error)
	SmartPopularRoutes(ctx context.Context, origin string) (routes.SmartResponse, error)
}

// RateLimiter decides whether a client may proceed under a policy.
type RateLimiter interface {
	Allow(ctx context.Context, policy, clientID string) (ratelimit.Decision, error)
}

// ClickTracker accepts partner click events.
type ClickTracker interface {
	Track(ctx context.Context, event tracking.ClickEvent) (string, error)
}

// Observer receives HTTP telemetry.
type Observer interface {
	ObserveHTTP(route, method string, code int, took time.Duration)
	ObserveRateLimited(policy string)
}

// Deps are the collaborators the API calls into. Limiter, Metrics and
// MetricsHandler may be nil.
type Deps struct {
	Flights        FlightSearcher
	Routes         RouteLister
	Tracker        ClickTracker
	Limiter        RateLimiter
	Metrics        Observer
	MetricsHandler http.Handler
}

// Options tune the API.
type Options struct {
	RequestTimeout time.Duration
	Version        string
	Provider       string
	Backend        string
}

// Server owns the router and its dependencies.
type Server struct {
	flights        FlightSearcher
	routes         RouteLister
	tracker        ClickTracker
	limiter        RateLimiter
	metrics        Observer
	metricsHandler http.Handler
	opts           Options
	now            func() time.Time
	logger         zerolog.Logger
}

// New constructs a Server.
func New(deps Deps, opts Options, logger zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 25 * time.Second
	}
	return &Server{
		flights:        deps.Flights,
		routes:         deps.Routes,
		tracker:        deps.Tracker,
		limiter:        deps.Limiter,
		metrics:        deps.Metrics,
		metricsHandler: deps.MetricsHandler,
		opts:           opts,
		now:            time.Now,
		logger:         logger.With().Str("component", "httpapi").Logger(),
	}
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))

		r.With(s.rateLimit(ratelimit.PolicyPublic)).Get("/routes/popular", s.handlePopularRoutes)
		r.With(s.rateLimit(ratelimit.PolicyPublic)).Get("/routes/smart-popular", s.handleSmartRoutes)
		r.With(s.rateLimit(ratelimit.PolicySearch)).Get("/flights/search", s.handleSearch)
		r.With(s.rateLimit(ratelimit.PolicyPublic)).Get("/flights/{id}", s.handleGetFlight)
		r.With(s.rateLimit(ratelimit.PolicyTrack)).Post("/track/partner-click", s.handlePartnerClick)
	})

	return r
}
