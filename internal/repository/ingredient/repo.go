// Package ingredient stores the ingredient side-table and the
// ingredient-to-recipe membership sets used by ingredient search.
package ingredient

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/recipematch/internal/db"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SAddMulti(ctx context.Context, items []db.SetAddItem) error
	SUnion(ctx context.Context, keys ...string) ([]string, error)
}

type entry struct {
	Name           string `json:"name"`
	NameNormalized string `json:"name_normalized"`
	Kana           string `json:"kana,omitempty"`
}

// Repo reads and writes ingredients under a key prefix.
type Repo struct {
	store        store
	catalogKey   string
	memberPrefix string
}

// New creates an ingredient repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{
		store:        s,
		catalogKey:   keyPrefix + "catalog:ingredients",
		memberPrefix: keyPrefix + "ingredient:",
	}
}

func (r *Repo) membersKey(id string) string {
	return r.memberPrefix + id + ":recipes"
}

// Catalog returns every ingredient sorted by id.
func (r *Repo) Catalog(ctx context.Context) ([]recipe.Ingredient, error) {
	m, err := r.store.HGetAll(ctx, r.catalogKey)
	if err != nil {
		return nil, fmt.Errorf("load ingredient catalog: %w", err)
	}
	out := make([]recipe.Ingredient, 0, len(m))
	for id, raw := range m {
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode ingredient %s: %w", id, err)
		}
		out = append(out, recipe.Ingredient{ID: id, Name: e.Name, NameNormalized: e.NameNormalized, Kana: e.Kana})
	}
	slices.SortFunc(out, func(a, b recipe.Ingredient) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// RecipeIDs returns the ids of recipes using any of the given ingredients.
func (r *Repo) RecipeIDs(ctx context.Context, ingredientIDs []string) ([]string, error) {
	if len(ingredientIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ingredientIDs))
	for i, id := range ingredientIDs {
		keys[i] = r.membersKey(id)
	}
	ids, err := r.store.SUnion(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("resolve ingredient recipes: %w", err)
	}
	return ids, nil
}

// Save upserts ingredients and adds recipe ids to their membership sets.
// members maps ingredient id to recipe ids.
func (r *Repo) Save(ctx context.Context, ings []recipe.Ingredient, members map[string][]string) error {
	if len(ings) > 0 {
		fields := make(map[string]string, len(ings))
		for _, ing := range ings {
			b, err := json.Marshal(entry{Name: ing.Name, NameNormalized: ing.NameNormalized, Kana: ing.Kana})
			if err != nil {
				return fmt.Errorf("encode ingredient %s: %w", ing.ID, err)
			}
			fields[ing.ID] = string(b)
		}
		if err := r.store.HSetMulti(ctx, []db.HashSetItem{{Key: r.catalogKey, Fields: fields}}); err != nil {
			return fmt.Errorf("save ingredients: %w", err)
		}
	}

	if len(members) == 0 {
		return nil
	}
	items := make([]db.SetAddItem, 0, len(members))
	for id, recipeIDs := range members {
		items = append(items, db.SetAddItem{Key: r.membersKey(id), Members: recipeIDs})
	}
	slices.SortFunc(items, func(a, b db.SetAddItem) int { return strings.Compare(a.Key, b.Key) })
	if err := r.store.SAddMulti(ctx, items); err != nil {
		return fmt.Errorf("save ingredient membership: %w", err)
	}
	return nil
}
