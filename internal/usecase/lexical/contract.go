package lexical

import (
	"context"

	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

// RecipeReader provides the title catalog and recipe lookups.
type RecipeReader interface {
	Titles(ctx context.Context) ([]recipe.Recipe, error)
	FetchByIDs(ctx context.Context, ids []string) ([]recipe.Recipe, error)
}

// IngredientReader provides the ingredient side-table and membership join.
type IngredientReader interface {
	Catalog(ctx context.Context) ([]recipe.Ingredient, error)
	RecipeIDs(ctx context.Context, ingredientIDs []string) ([]string, error)
}
