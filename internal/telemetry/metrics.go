// Package telemetry registers the engine's prometheus collectors.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simengine_jobs_submitted_total",
			Help: "Total number of backtest jobs submitted.",
		},
	)

	JobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simengine_jobs_finished_total",
			Help: "Total number of backtest jobs that reached a terminal state (by outcome).",
		},
		[]string{"outcome"},
	)

	JobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simengine_jobs_running",
			Help: "Number of backtest jobs currently executing.",
		},
	)

	BacktestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simengine_backtest_duration_seconds",
			Help:    "Wall-clock duration of backtest executions.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(JobsSubmitted, JobsCompleted, JobsRunning, BacktestDuration)
}
