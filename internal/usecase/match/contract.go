package match

import (
	"context"

	dommatch "github.com/kailas-cloud/recipematch/internal/domain/match"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

// VectorSearcher finds recipes similar to a query vector.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, vec []float32, threshold float64, limit int) ([]dommatch.Candidate, error)
}

// Lexical is the keyword search path.
type Lexical interface {
	Search(ctx context.Context, q string) ([]recipe.Recipe, error)
	RecipeIDsForIngredients(ctx context.Context, terms []string) ([]string, error)
}
