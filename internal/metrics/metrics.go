// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_turns_total",
			Help: "Turns processed, by outcome",
		},
		[]string{"outcome"},
	)

	RetrievalSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_retrieval_step_total",
			Help: "Retrieval fallback step that produced candidates",
		},
		[]string{"step"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_llm_request_duration_seconds",
			Help:    "Latency of language model requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"purpose", "status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_sessions_active",
			Help: "Sessions currently held by the store",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_evicted_total",
			Help: "Sessions removed by the expiry sweep",
		},
	)

	GenerationBelowFloor = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_generation_below_floor_total",
			Help: "Selected generated questions scoring under the quality floor",
		},
	)

	RatingSinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_rating_sink_failures_total",
			Help: "Rating deliveries that failed, by sink",
		},
		[]string{"sink"},
	)
)
