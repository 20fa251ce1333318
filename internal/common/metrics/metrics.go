package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Wizard navigation attempts by action and outcome",
		},
		[]string{"action", "result"},
	)

	AssistGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_generations_total",
			Help: "AI draft generations by field and final status",
		},
		[]string{"field", "status"},
	)

	AssistAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_attempts_total",
			Help: "Individual generation attempts including retries",
		},
		[]string{"result"},
	)

	AssistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assist_generation_duration_seconds",
			Help:    "Duration of an AI draft generation including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"status"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Application submissions by outcome",
		},
		[]string{"status"},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_persistence_failures_total",
			Help: "Draft store operations that failed",
		},
		[]string{"op"},
	)
)
