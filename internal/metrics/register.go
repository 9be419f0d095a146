package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers the domain collectors on the default registry.
// Safe to call more than once; only the first call registers.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingRetriesTotal,
			EmbeddingCacheTotal,
			ReasoningRequestsTotal,
			ReasoningRequestDuration,
			MatchRequestsTotal,
			ThresholdRelaxationSteps,
			IngredientFallbackTotal,
			LexicalResults,
		)
	})
}
