// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	Searches       *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	PricesRecorded prometheus.Counter
	RecordFailures prometheus.Counter
	RateLimited    *prometheus.CounterVec
	Clicks         *prometheus.CounterVec
	Purged         prometheus.Counter
}

// New registers the metrics on a fresh registry under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Flight searches by provider, cache outcome and result",
		}, []string{"source", "cached", "result"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Flight search latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"source", "cached"}),
		PricesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prices_recorded_total",
			Help:      "Price samples appended to history",
		}),
		RecordFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_record_failures_total",
			Help:      "Background price recordings that failed",
		}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by rate limit policy",
		}, []string{"policy"}),
		Clicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partner_clicks_total",
			Help:      "Partner click events by partner and delivery result",
		}, []string{"partner", "result"}),
		Purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_rows_total",
			Help:      "Expired rows removed by the sweeper",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(took.Seconds())
}

// ObserveSearch records a completed flight search.
func (m *Metrics) ObserveSearch(source string, cached bool, took time.Duration, err error) {
	c := strconv.FormatBool(cached)
	m.Searches.WithLabelValues(source, c, result(err)).Inc()
	m.SearchDuration.WithLabelValues(source, c).Observe(took.Seconds())
}

// ObservePricesRecorded records the outcome of a background recording.
func (m *Metrics) ObservePricesRecorded(n int, err error) {
	m.PricesRecorded.Add(float64(n))
	if err != nil {
		m.RecordFailures.Inc()
	}
}

// ObserveRateLimited counts a rejected request.
func (m *Metrics) ObserveRateLimited(policy string) {
	m.RateLimited.WithLabelValues(policy).Inc()
}

// ObserveClick counts a delivered or failed click event.
func (m *Metrics) ObserveClick(partner string, err error) {
	m.Clicks.WithLabelValues(partner, result(err)).Inc()
}

// ObservePurge counts rows removed by a sweep.
func (m *Metrics) ObservePurge(removed int64) {
	m.Purged.Add(float64(removed))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
