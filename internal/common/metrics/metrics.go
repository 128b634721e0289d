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

	ConversationTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_conversation_turns_total",
			Help: "Conversation turns by handler and outcome",
		},
		[]string{"handler", "outcome"},
	)

	ConversationTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_conversation_turn_duration_seconds",
			Help:    "Duration of one conversation turn",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_routing_decisions_total",
			Help: "Intent router decisions by matched rule",
		},
		[]string{"rule", "rerouted"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_status_transitions_total",
			Help: "Committed application status changes",
		},
		[]string{"from", "to"},
	)

	TextGenerationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_text_generation_fallbacks_total",
			Help: "Prompts answered with canned text because generation failed",
		},
		[]string{"provider"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_notifications_total",
			Help: "Outbound notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_side_effect_failures_total",
			Help: "Post-commit hook failures that did not fail the turn",
		},
		[]string{"hook"},
	)
)
