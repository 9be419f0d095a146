// Package recipe stores recipe documents with their vectors and serves
// similarity search and title catalog reads.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/recipematch/internal/db"
	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/domain/match"
	domrecipe "github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo reads and writes recipes under a key prefix.
type Repo struct {
	store      store
	recipeKey  string // prefix of recipe hashes
	catalogKey string // title catalog hash
	indexName  string
}

// New creates a recipe repository.
func New(s store, keyPrefix, indexName string) *Repo {
	return &Repo{
		store:      s,
		recipeKey:  keyPrefix + "recipe:",
		catalogKey: keyPrefix + "catalog:titles",
		indexName:  indexName,
	}
}

// SearchSimilar returns up to limit recipes whose similarity to vec is at
// least threshold. Order is not guaranteed.
func (r *Repo) SearchSimilar(
	ctx context.Context, vec []float32, threshold float64, limit int,
) ([]match.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  fieldVector,
		Vector:       vec,
		K:            limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("search %s: %w", r.indexName, domain.ErrIndexNotReady)
		}
		return nil, fmt.Errorf("search %s: %w", r.indexName, err)
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]match.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score < threshold {
			continue
		}
		id := strings.TrimPrefix(e.Key, r.recipeKey)
		out = append(out, match.Candidate{Recipe: parseHashFields(id, e.Fields), Similarity: e.Score})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// FetchByIDs loads recipes in the order of ids. Unknown ids are skipped.
func (r *Repo) FetchByIDs(ctx context.Context, ids []string) ([]domrecipe.Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recipeKey + id
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch recipes: %w", err)
	}
	out := make([]domrecipe.Recipe, 0, len(ids))
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		out = append(out, parseHashFields(ids[i], m))
	}
	return out, nil
}

// Titles returns the title catalog sorted by recipe id. Vectors and
// descriptions are not loaded.
func (r *Repo) Titles(ctx context.Context) ([]domrecipe.Recipe, error) {
	m, err := r.store.HGetAll(ctx, r.catalogKey)
	if err != nil {
		return nil, fmt.Errorf("load title catalog: %w", err)
	}
	out := make([]domrecipe.Recipe, 0, len(m))
	for id, raw := range m {
		rec, err := decodeTitle(id, raw)
		if err != nil {
			return nil, fmt.Errorf("decode title catalog entry %s: %w", id, err)
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domrecipe.Recipe) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Save writes recipes with their vectors and updates the title catalog.
// vecs must align with recs.
func (r *Repo) Save(ctx context.Context, recs []domrecipe.Recipe, vecs [][]float32) error {
	if len(recs) != len(vecs) {
		return fmt.Errorf("save recipes: %d recipes but %d vectors", len(recs), len(vecs))
	}
	if len(recs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(recs)+1)
	catalog := make(map[string]string, len(recs))
	for i := range recs {
		items = append(items, db.HashSetItem{
			Key:    r.recipeKey + recs[i].ID,
			Fields: buildHashFields(&recs[i], vecs[i]),
		})
		catalog[recs[i].ID] = encodeTitle(&recs[i])
	}
	items = append(items, db.HashSetItem{Key: r.catalogKey, Fields: catalog})

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("save recipes: %w", err)
	}
	return nil
}

// EnsureIndex creates the vector index unless it already exists.
// It reports whether the index was created.
func (r *Repo) EnsureIndex(ctx context.Context, spec domrecipe.IndexSpec) (bool, error) {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", r.indexName, err)
	}
	if exists {
		return false, nil
	}

	def, err := db.NewIndex(r.indexName).
		Prefix(r.recipeKey).
		Tag(fieldCategory).
		TagSeparated(fieldIngredients, ingredientSeparator).
		Text(fieldTitle).
		VectorHNSW(fieldVector, spec.Dimensions, db.DistanceCosine, spec.HNSWM, spec.EFConstruct).
		Build()
	if err != nil {
		return false, fmt.Errorf("build index %s: %w", r.indexName, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", r.indexName, err)
	}
	return true, nil
}

// IndexReady reports whether the vector index exists.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", r.indexName, err)
	}
	return ok, nil
}

// DropIndex removes the vector index. Recipe hashes are kept.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.indexName, err)
	}
	return nil
}
