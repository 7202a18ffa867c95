// Package monitor provides Prometheus metrics and OpenTelemetry
// tracing for campaign execution.
package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the campaign engine.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	ActiveRuns      prometheus.Gauge
	BatchSize       prometheus.Histogram
	StdoutSizeBytes prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simsweep",
				Name:      "runs_total",
				Help:      "Total number of simulation runs by terminal status.",
			},
			[]string{"status"},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "simsweep",
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of individual simulation runs.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 1800, 3600},
			},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "simsweep",
				Name:      "active_runs",
				Help:      "Number of simulation runs currently executing.",
			},
		),

		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "simsweep",
				Name:      "batch_size_runs",
				Help:      "Number of work items submitted per batch.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		StdoutSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "simsweep",
				Name:      "stdout_size_bytes",
				Help:      "Size of captured simulation stdout in bytes.",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ActiveRuns,
		m.BatchSize,
		m.StdoutSizeBytes,
	)

	return m
}

// RecordRun records metrics for one terminal run outcome.
func (m *Metrics) RecordRun(status string, durationSec float64, stdoutBytes int) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSec)
	m.StdoutSizeBytes.Observe(float64(stdoutBytes))
}
