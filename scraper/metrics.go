package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	FragmentsTotal  prometheus.Counter
	RowsTotal       prometheus.Counter
	EmptyTotal      prometheus.Counter
	GiveUpsTotal    prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	LocationsTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_requests_total",
			Help: "Total HTTP requests issued.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "magpie_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	fragments := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "magpie_fragments_total",
			Help: "Payloads turned into result fragments.",
		},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "magpie_rows_total",
			Help: "Species rows extracted.",
		},
	)
	empty := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "magpie_empty_fragments_total",
			Help: "Fragments with no species rows.",
		},
	)
	giveUps := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "magpie_identity_giveups_total",
			Help: "Payloads returned empty after the page identity never matched.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "magpie_retries_total",
			Help: "Total number of backoff waits.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_errors_total",
			Help: "Total number of errors by type.",
		},
		[]string{"error_type"},
	)
	locations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_locations_total",
			Help: "Locations discovered by the crawler.",
		},
		[]string{"level"},
	)

	registry.MustRegister(requests, requestDuration, fragments, rows, empty, giveUps, retries, errorsTotal, locations)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		FragmentsTotal:  fragments,
		RowsTotal:       rows,
		EmptyTotal:      empty,
		GiveUpsTotal:    giveUps,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		LocationsTotal:  locations,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddFragment records a completed payload and its row count.
func (m *Metrics) AddFragment(rows int) {
	if m == nil {
		return
	}
	m.FragmentsTotal.Inc()
	m.RowsTotal.Add(float64(rows))
	if rows == 0 {
		m.EmptyTotal.Inc()
	}
}

// IncGiveUp increments the identity give-up counter.
func (m *Metrics) IncGiveUp() {
	if m == nil {
		return
	}
	m.GiveUpsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddLocations counts crawled locations at a level.
func (m *Metrics) AddLocations(level string, n int) {
	if m == nil {
		return
	}
	m.LocationsTotal.WithLabelValues(level).Add(float64(n))
}
