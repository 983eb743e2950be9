// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiplens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "equiplens_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equiplens_phase_duration_seconds",
			Help:    "Pipeline phase duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"phase"},
	)

	PhaseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiplens_phase_outcomes_total",
			Help: "Pipeline phase outcomes (completed, skipped, retired, failed, error)",
		},
		[]string{"phase", "outcome"},
	)

	InsightCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiplens_insight_cache_lookups_total",
			Help: "Insight cache lookups by namespace and result (hit, miss)",
		},
		[]string{"namespace", "result"},
	)

	AIGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiplens_ai_generations_total",
			Help: "Insight generations by provider, operation and source (ai, fallback)",
		},
		[]string{"provider", "operation", "source"},
	)

	AILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "equiplens_ai_latency_seconds",
			Help: "Latency of calls to the AI provider in seconds",
		},
		[]string{"provider"},
	)

	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equiplens_notification_failures_total",
			Help: "Total number of notifications that could not be published",
		},
	)

	QueueTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiplens_queue_tasks_total",
			Help: "Queue task outcomes by kind (succeeded, retried, dead_lettered)",
		},
		[]string{"kind", "outcome"},
	)

	RetentionEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equiplens_retention_evictions_total",
			Help: "Total number of datasets deleted by the retention policy",
		},
	)
)
