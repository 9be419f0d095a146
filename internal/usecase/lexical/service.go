// Package lexical is the keyword search path: title substring search and
// ingredient AND search, merged into one capped list.
package lexical

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
	"github.com/kailas-cloud/recipematch/internal/ingredient"
	"github.com/kailas-cloud/recipematch/internal/logger"
	"github.com/kailas-cloud/recipematch/internal/metrics"
	"github.com/kailas-cloud/recipematch/internal/textnorm"
)

// Config bounds the lexical path.
type Config struct {
	// MinNormalizedLen is the shortest normalized query that is compared
	// against normalized fields. Shorter ones only use raw comparison.
	MinNormalizedLen int
	MaxResults       int
}

// Service runs lexical searches. Safe for concurrent use.
type Service struct {
	recipes     RecipeReader
	ingredients IngredientReader
	aliases     *ingredient.Normalizer
	cfg         Config
}

// New creates a lexical search service.
func New(recipes RecipeReader, ingredients IngredientReader, aliases *ingredient.Normalizer, cfg Config) *Service {
	if cfg.MinNormalizedLen < 1 {
		cfg.MinNormalizedLen = 1
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 15
	}
	return &Service{recipes: recipes, ingredients: ingredients, aliases: aliases, cfg: cfg}
}

// Search runs the title and ingredient legs concurrently and merges them:
// title hits first, then ingredient hits, de-duplicated by id and capped.
func (s *Service) Search(ctx context.Context, q string) ([]recipe.Recipe, error) {
	var titles []recipe.Recipe
	var ingredientIDs []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		titles, err = s.SearchTitles(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		ingredientIDs, err = s.SearchIngredients(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.NewUpstreamError(domain.StageLexical, err)
	}

	merged := make([]recipe.Recipe, 0, s.cfg.MaxResults)
	seen := make(map[string]struct{}, s.cfg.MaxResults)
	for _, r := range titles {
		if len(merged) == s.cfg.MaxResults {
			break
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}

	var pending []string
	for _, id := range ingredientIDs {
		if len(merged)+len(pending) == s.cfg.MaxResults {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}
	if len(pending) > 0 {
		recs, err := s.recipes.FetchByIDs(ctx, pending)
		if err != nil {
			return nil, domain.NewUpstreamError(domain.StageLexical, err)
		}
		merged = append(merged, recs...)
	}

	metrics.LexicalResults.WithLabelValues("merged").Observe(float64(len(merged)))
	logger.FromContext(ctx).Debug("lexical search",
		zap.String("query", q),
		zap.Int("title_hits", len(titles)),
		zap.Int("ingredient_hits", len(ingredientIDs)),
		zap.Int("results", len(merged)),
	)
	return merged, nil
}

// SearchTitles returns catalog entries whose title contains the raw query or,
// for queries long enough after normalization, whose title_core contains the
// normalized query.
func (s *Service) SearchTitles(ctx context.Context, q string) ([]recipe.Recipe, error) {
	raw := strings.TrimSpace(q)
	if raw == "" {
		return nil, nil
	}
	norm := textnorm.Normalize(raw)
	useNorm := textnorm.Len(norm) >= s.cfg.MinNormalizedLen

	catalog, err := s.recipes.Titles(ctx)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}

	var out []recipe.Recipe
	for _, r := range catalog {
		if strings.Contains(r.Title, raw) || (useNorm && strings.Contains(r.TitleCore, norm)) {
			out = append(out, r)
		}
	}
	metrics.LexicalResults.WithLabelValues("title").Observe(float64(len(out)))
	return out, nil
}

// SearchIngredients splits q into tokens and returns the ids of recipes that
// use every token's ingredient.
func (s *Service) SearchIngredients(ctx context.Context, q string) ([]string, error) {
	ids, err := s.RecipeIDsForIngredients(ctx, ingredient.Split(q))
	if err != nil {
		return nil, err
	}
	metrics.LexicalResults.WithLabelValues("ingredient").Observe(float64(len(ids)))
	return ids, nil
}

// RecipeIDsForIngredients returns the sorted ids of recipes that use all of
// terms (AND). Each term is alias-normalized first. A term matching nothing
// empties the result; there is no OR fallback.
func (s *Service) RecipeIDsForIngredients(ctx context.Context, terms []string) ([]string, error) {
	tokens := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, s.aliases.Canonical(t))
		}
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	catalog, err := s.ingredients.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingredient search: %w", err)
	}

	sets := make([][]string, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	for i, tok := range tokens {
		g.Go(func() error {
			ingIDs := s.matchIngredients(catalog, tok)
			if len(ingIDs) == 0 {
				return nil
			}
			ids, err := s.ingredients.RecipeIDs(gctx, ingIDs)
			if err != nil {
				return fmt.Errorf("ingredient %q: %w", tok, err)
			}
			sets[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingredient search: %w", err)
	}

	return intersect(sets), nil
}

// matchIngredients returns ids of catalog rows whose raw name contains tok,
// or whose normalized name or reading contains the normalized tok.
func (s *Service) matchIngredients(catalog []recipe.Ingredient, tok string) []string {
	norm := textnorm.Normalize(tok)
	useNorm := textnorm.Len(norm) >= s.cfg.MinNormalizedLen

	var ids []string
	for _, ing := range catalog {
		switch {
		case strings.Contains(ing.Name, tok):
		case useNorm && (strings.Contains(ing.NameNormalized, norm) || strings.Contains(ing.Kana, norm)):
		default:
			continue
		}
		ids = append(ids, ing.ID)
	}
	return ids
}

// intersect returns the sorted ids present in every set, stopping at the
// first empty set.
func intersect(sets [][]string) []string {
	if len(sets) == 0 || len(sets[0]) == 0 {
		return nil
	}
	acc := make(map[string]struct{}, len(sets[0]))
	for _, id := range sets[0] {
		acc[id] = struct{}{}
	}
	for _, set := range sets[1:] {
		if len(set) == 0 {
			return nil
		}
		next := make(map[string]struct{}, min(len(acc), len(set)))
		for _, id := range set {
			if _, ok := acc[id]; ok {
				next[id] = struct{}{}
			}
		}
		if len(next) == 0 {
			return nil
		}
		acc = next
	}

	out := make([]string, 0, len(acc))
	for id := range acc {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
