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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Jobs currently being processed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// LLMCalls counts language-model requests by call site and outcome
	// (ok, transport_error, invalid_response).
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_llm_calls_total",
			Help: "Language model calls issued by the planner",
		},
		[]string{"task", "status"},
	)

	FastPathHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_fast_path_total",
			Help: "Intent classifications answered by patterns without a model call",
		},
	)

	DegradedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_degraded_total",
			Help: "Component results replaced by their documented fallback",
		},
		[]string{"component"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "planner_sessions_active",
			Help: "Sessions kept by the last cleanup sweep",
		},
	)

	SessionsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_sessions_cleaned_total",
			Help: "Sessions removed by cleanup sweeps",
		},
	)
)

// LLM call outcomes.
const (
	LLMStatusOK              = "ok"
	LLMStatusTransportError  = "transport_error"
	LLMStatusInvalidResponse = "invalid_response"
)
