package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reasoning (intent classification and query rewriting) metrics.
var (
	ReasoningRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_requests_total",
			Help:      "Calls to the reasoning collaborator",
		},
		[]string{"op", "status"}, // op: classify/rewrite
	)

	ReasoningRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_request_duration_seconds",
			Help:      "Reasoning call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		},
		[]string{"op"},
	)
)

// Match pipeline metrics.
var (
	MatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_requests_total",
			Help:      "AI match requests by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: matched, no-match, invalid-input, invalid-query, error
	)

	ThresholdRelaxationSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "threshold_relaxation_steps",
			Help:      "Number of threshold relaxation steps per match",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		},
	)

	IngredientFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingredient_fallback_total",
			Help:      "Strict matches where the ingredient filter emptied the result and was dropped",
		},
	)

	LexicalResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lexical_results",
			Help:      "Result count per lexical search leg",
			Buckets:   []float64{0, 1, 3, 5, 10, 15, 50, 200},
		},
		[]string{"leg"}, // title, ingredient, merged
	)
)
