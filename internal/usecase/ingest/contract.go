package ingest

import (
	"context"

	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

// RecipeWriter persists recipes and manages the vector index.
type RecipeWriter interface {
	EnsureIndex(ctx context.Context, spec recipe.IndexSpec) (bool, error)
	Save(ctx context.Context, recs []recipe.Recipe, vecs [][]float32) error
}

// IngredientWriter persists the ingredient side-table and membership sets.
type IngredientWriter interface {
	Save(ctx context.Context, ings []recipe.Ingredient, members map[string][]string) error
}
