// Package metrics holds the prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nearby"

// Metrics bundles the service collectors.
type Metrics struct {
	searches        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	searchCells     prometheus.Histogram
	cellQueries     *prometheus.CounterVec
	candidates      *prometheus.CounterVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Radius searches by outcome",
		}, []string{"status"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time spent planning and running a radius search",
			Buckets:   prometheus.DefBuckets,
		}),
		searchCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_cells",
			Help:      "Geohash cells queried per search",
			Buckets:   []float64{1, 9, 25, 49, 121, 441, 1681},
		}),
		cellQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cell_queries_total",
			Help:      "Spatial index page queries by outcome",
		}, []string{"status"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "AI event candidates by normalization stage outcome",
		}, []string{"outcome"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to text-generation and geocoding providers",
		}, []string{"provider", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of upstream provider calls",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		}, []string{"provider"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.searches, m.searchDuration, m.searchCells, m.cellQueries, m.candidates,
		m.upstreamCalls, m.upstreamLatency, m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(start time.Time, cells int, err error) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(status(err)).Inc()
	m.searchDuration.Observe(time.Since(start).Seconds())
	if cells > 0 {
		m.searchCells.Observe(float64(cells))
	}
}

// CellQuery records one spatial index page query.
func (m *Metrics) CellQuery(err error) {
	if m == nil {
		return
	}
	m.cellQueries.WithLabelValues(status(err)).Inc()
}

// Candidates adds n to the counter for a normalization outcome such as
// "received", "deduplicated", "invalid", "blocked" or "kept".
func (m *Metrics) Candidates(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.candidates.WithLabelValues(outcome).Add(float64(n))
}

// Upstream records a provider call.
func (m *Metrics) Upstream(provider string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(provider, status(err)).Inc()
	m.upstreamLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
