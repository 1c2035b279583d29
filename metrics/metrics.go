package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cnbrates"

// Feed labels
const (
	FeedYearly = "yearly"
	FeedDaily  = "daily"
)

// Resolution outcome labels
const (
	ResolveExact    = "exact"
	ResolveFallback = "fallback"
	ResolveRefetch  = "refetch"
	ResolveNotFound = "not_found"
	ResolveError    = "error"
)

// Metrics bundles the rate service metrics, registered on their own registry
type Metrics struct {
	registry *prometheus.Registry

	// Upstream feed fetches, by feed and outcome
	FetchesTotal *prometheus.CounterVec

	// Upstream feed fetch latency, by feed
	FetchDuration *prometheus.HistogramVec

	// Rate resolutions, by outcome
	ResolutionsTotal *prometheus.CounterVec

	// Values dropped while parsing feeds, by feed
	SkippedValuesTotal *prometheus.CounterVec

	// Background job runs, by job and outcome
	JobRunsTotal *prometheus.CounterVec
}

// New creates the rate service metrics on a fresh registry
func New() *Metrics {
	var (
		registry = prometheus.NewRegistry()
		factory  = promauto.With(registry)
	)

	return &Metrics{
		registry: registry,

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_fetches_total",
				Help:      "Number of upstream feed fetches",
			},
			[]string{"feed", "outcome"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_fetch_duration_seconds",
				Help:      "Upstream feed fetch latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"feed"},
		),

		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Number of rate resolutions",
			},
			[]string{"outcome"},
		),

		SkippedValuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_values_total",
				Help:      "Number of non-numeric feed values skipped during parsing",
			},
			[]string{"feed"},
		),

		JobRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Number of background job runs",
			},
			[]string{"job", "outcome"},
		),
	}
}

// ObserveFetch records a finished upstream fetch
func (m *Metrics) ObserveFetch(feed string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	m.FetchesTotal.WithLabelValues(feed, outcome).Inc()
	m.FetchDuration.WithLabelValues(feed).Observe(time.Since(started).Seconds())
}

// ObserveResolution records a finished rate resolution
func (m *Metrics) ObserveResolution(outcome string) {
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSkipped records values dropped from a parsed feed
func (m *Metrics) ObserveSkipped(feed string, count int) {
	if count <= 0 {
		return
	}

	m.SkippedValuesTotal.WithLabelValues(feed).Add(float64(count))
}

// ObserveJob records a finished background job run
func (m *Metrics) ObserveJob(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	m.JobRunsTotal.WithLabelValues(name, outcome).Inc()
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
