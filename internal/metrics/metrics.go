package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Snapshot metrics
	SnapshotBuildsTotal   *prometheus.CounterVec
	SnapshotBuildDuration prometheus.Histogram
	FogScore              *prometheus.GaugeVec
	PassesInSnapshot      *prometheus.GaugeVec

	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of upstream provider requests by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Upstream provider request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),

		SnapshotBuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_builds_total",
				Help:      "Total number of viewing-conditions refreshes by outcome",
			},
			[]string{"outcome"},
		),

		SnapshotBuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_build_duration_seconds",
				Help:      "End-to-end refresh duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		FogScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fog_score",
				Help:      "Fog risk score of the latest snapshot per location",
			},
			[]string{"location"},
		),

		PassesInSnapshot: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_passes",
				Help:      "Number of passes in the latest snapshot per location",
			},
			[]string{"location"},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"route"},
		),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}

// Timer provides timing functionality for operations.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer.
func NewTimer(observer prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), observer: observer}
}

// ObserveDuration records the elapsed time since timer creation.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(d.Seconds())
	}
	return d
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordProviderRequest records one upstream call.
func (c *Collector) RecordProviderRequest(provider string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.ProviderRequestsTotal.WithLabelValues(provider, outcome(err)).Inc()
	c.ProviderRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordSnapshotBuild records one refresh attempt.
func (c *Collector) RecordSnapshotBuild(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.SnapshotBuildsTotal.WithLabelValues(outcome(err)).Inc()
	c.SnapshotBuildDuration.Observe(d.Seconds())
}

// SetSnapshotGauges publishes per-location values of the latest snapshot.
func (c *Collector) SetSnapshotGauges(location string, fogScore, passes int) {
	if c == nil {
		return
	}
	c.FogScore.WithLabelValues(location).Set(float64(fogScore))
	c.PassesInSnapshot.WithLabelValues(location).Set(float64(passes))
}

// RecordAPIRequest increments the API request counter and duration.
func (c *Collector) RecordAPIRequest(route, method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.APIRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
