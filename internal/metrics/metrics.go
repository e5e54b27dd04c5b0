package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection.
// All methods are safe to call on a nil *Collector.
type Collector struct {
	// Upstream metrics
	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamDuration      *prometheus.HistogramVec

	// Dataflow metrics
	EpochsTotal           prometheus.Counter
	ForecastOutcomesTotal *prometheus.CounterVec
	StaleResultsTotal     prometheus.Counter
	SnapshotsTotal        prometheus.Counter
	EffectWritesTotal     *prometheus.CounterVec
	ActiveSubscribers     prometheus.Gauge
}

// NewCollector creates a new metrics collector registered on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Upstream request duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"source"},
		),

		EpochsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_epochs_total",
				Help:      "Total number of resolved current-location epochs",
			},
		),

		ForecastOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forecast_outcomes_total",
				Help:      "Total number of applied forecast outcomes by kind",
			},
			[]string{"outcome"}, // "success", "empty", "error"
		),

		StaleResultsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_results_discarded_total",
				Help:      "Total number of forecast results discarded because their epoch was superseded",
			},
		),

		SnapshotsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_snapshots_total",
				Help:      "Total number of view-model snapshots emitted",
			},
		),

		EffectWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_writes_total",
				Help:      "Total number of persisted location writes by result",
			},
			[]string{"result"},
		),

		ActiveSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "view_subscribers",
				Help:      "Number of active view-model subscribers",
			},
		),
	}
}

// ObserveUpstream records one upstream request.
func (c *Collector) ObserveUpstream(source, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRequestsTotal.WithLabelValues(source, outcome).Inc()
	c.UpstreamDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (c *Collector) RecordEpoch() {
	if c == nil {
		return
	}
	c.EpochsTotal.Inc()
}

func (c *Collector) RecordForecastOutcome(outcome string) {
	if c == nil {
		return
	}
	c.ForecastOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordStaleResult() {
	if c == nil {
		return
	}
	c.StaleResultsTotal.Inc()
}

func (c *Collector) RecordSnapshot() {
	if c == nil {
		return
	}
	c.SnapshotsTotal.Inc()
}

func (c *Collector) RecordEffectWrite(result string) {
	if c == nil {
		return
	}
	c.EffectWritesTotal.WithLabelValues(result).Inc()
}

func (c *Collector) SubscriberAdded() {
	if c == nil {
		return
	}
	c.ActiveSubscribers.Inc()
}

func (c *Collector) SubscriberRemoved() {
	if c == nil {
		return
	}
	c.ActiveSubscribers.Dec()
}
