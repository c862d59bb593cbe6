// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospect_fetch_requests_total",
			Help: "Outbound fetch attempts by status class",
		},
		[]string{"status"},
	)

	CircuitTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospect_circuit_transitions_total",
			Help: "Circuit breaker state transitions per service",
		},
		[]string{"service", "state"},
	)

	CircuitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospect_circuit_rejections_total",
			Help: "Requests refused by an open circuit or active rate-limit backoff",
		},
		[]string{"service", "reason"},
	)

	EnrichmentConfidence = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospect_enrichment_confidence_total",
			Help: "Resolved enrichment results by email source and confidence",
		},
		[]string{"source", "confidence"},
	)

	ProspectTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospect_tier_total",
			Help: "Scored prospects by tier",
		},
		[]string{"tier"},
	)
)
