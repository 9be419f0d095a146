// Package ingest loads a recipe corpus: it creates the vector index, embeds
// recipes on a worker pool and writes recipe documents, the title catalog and
// the ingredient side-table.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
	"github.com/kailas-cloud/recipematch/internal/ingredient"
	"github.com/kailas-cloud/recipematch/internal/textnorm"
)

// Config tunes ingestion.
type Config struct {
	Workers   int
	BatchSize int
	Index     recipe.IndexSpec
}

// RowError describes a row that was skipped.
type RowError struct {
	Row int // 1-based position in the input
	ID  string
	Err string
}

// Report summarizes one ingestion run.
type Report struct {
	Total        int
	Indexed      int
	Failed       int
	Ingredients  int
	IndexCreated bool
	Tokens       int
	Duration     time.Duration
	Errors       []RowError
}

// Service ingests corpora.
type Service struct {
	recipes     RecipeWriter
	ingredients IngredientWriter
	embedder    domain.Embedder
	aliases     *ingredient.Normalizer
	cfg         Config
	logger      *zap.Logger
}

// New creates an ingestion service. embedder should carry the document
// instruction prefix when the model is asymmetric.
func New(
	recipes RecipeWriter, ingredients IngredientWriter, embedder domain.Embedder,
	aliases *ingredient.Normalizer, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		recipes:     recipes,
		ingredients: ingredients,
		embedder:    embedder,
		aliases:     aliases,
		cfg:         cfg,
		logger:      logger,
	}
}

type prepared struct {
	row    int
	recipe recipe.Recipe
	kana   map[string]string // canonical name -> reading
}

// Ingest writes rows. Invalid rows and batches the provider rejects are
// reported and skipped; a store failure aborts the run.
func (s *Service) Ingest(ctx context.Context, rows []Row) (*Report, error) {
	start := time.Now()
	rep := &Report{Total: len(rows)}

	created, err := s.recipes.EnsureIndex(ctx, s.cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	rep.IndexCreated = created

	var items []prepared
	for i, row := range rows {
		p, err := s.prepare(i+1, row)
		if err != nil {
			rep.fail(i+1, row.ID, err)
			continue
		}
		items = append(items, p)
	}

	saved, err := s.embedAndSave(ctx, items, rep)
	if err != nil {
		return nil, err
	}

	n, err := s.saveIngredients(ctx, saved)
	if err != nil {
		return nil, err
	}
	rep.Ingredients = n
	rep.Indexed = len(saved)
	rep.Duration = time.Since(start)

	s.logger.Info("Ingest completed",
		zap.Int("total", rep.Total),
		zap.Int("indexed", rep.Indexed),
		zap.Int("failed", rep.Failed),
		zap.Int("ingredients", rep.Ingredients),
		zap.Bool("index_created", rep.IndexCreated),
		zap.Int("tokens", rep.Tokens),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func (s *Service) prepare(pos int, row Row) (prepared, error) {
	r := recipe.Recipe{
		ID:          strings.TrimSpace(row.ID),
		Title:       strings.TrimSpace(row.Title),
		Category:    strings.TrimSpace(row.Category),
		URL:         strings.TrimSpace(row.URL),
		Description: strings.TrimSpace(row.Description),
		Image:       strings.TrimSpace(row.Image),
	}
	if r.ID == "" {
		r.ID = recipe.NewID()
	}
	core := row.TitleCore
	if strings.TrimSpace(core) == "" {
		core = r.Title
	}
	r.TitleCore = textnorm.Normalize(core)

	kana := make(map[string]string, len(row.Ingredients))
	for _, ing := range row.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		canonical := s.aliases.Canonical(name)
		if _, dup := kana[canonical]; dup {
			continue
		}
		kana[canonical] = textnorm.Normalize(ing.Kana)
		r.Ingredients = append(r.Ingredients, canonical)
	}

	if err := r.Validate(); err != nil {
		return prepared{}, err //nolint:wrapcheck // reported per row
	}
	return prepared{row: pos, recipe: r, kana: kana}, nil
}

// embedAndSave embeds and writes items in batches on a worker pool and
// returns the items that were written.
func (s *Service) embedAndSave(ctx context.Context, items []prepared, rep *Report) ([]prepared, error) {
	if len(items) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		saved    []prepared
		fatalErr error
	)

	for offset := 0; offset < len(items); offset += s.cfg.BatchSize {
		batch := items[offset:min(offset+s.cfg.BatchSize, len(items))]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			tokens, err := s.processBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			rep.Tokens += tokens
			switch {
			case err == nil:
				saved = append(saved, batch...)
			case errors.Is(err, errStore):
				if fatalErr == nil {
					fatalErr = err
					cancel()
				}
			default:
				s.logger.Warn("Batch skipped", zap.Int("first_row", batch[0].row), zap.Int("size", len(batch)), zap.Error(err))
				for _, p := range batch {
					rep.fail(p.row, p.recipe.ID, err)
				}
			}
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("submit batch: %w", submitErr)
		}
	}
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}
	return saved, nil
}

var errStore = errors.New("store write failed")

func (s *Service) processBatch(ctx context.Context, batch []prepared) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // run canceled
	}

	texts := make([]string, len(batch))
	recs := make([]recipe.Recipe, len(batch))
	for i, p := range batch {
		texts[i] = EmbeddingText(&p.recipe)
		recs[i] = p.recipe
	}

	res, err := domain.BatchEmbed(ctx, s.embedder, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(batch) {
		return res.TotalTokens, fmt.Errorf("embed batch: expected %d vectors, got %d", len(batch), len(res.Embeddings))
	}

	if err := s.recipes.Save(ctx, recs, res.Embeddings); err != nil {
		return res.TotalTokens, fmt.Errorf("%w: %w", errStore, err)
	}
	return res.TotalTokens, nil
}

func (s *Service) saveIngredients(ctx context.Context, saved []prepared) (int, error) {
	byID := make(map[string]recipe.Ingredient)
	members := make(map[string][]string)
	for _, p := range saved {
		for _, name := range p.recipe.Ingredients {
			id := recipe.IngredientID(name)
			ing, ok := byID[id]
			if !ok {
				ing = recipe.Ingredient{ID: id, Name: name, NameNormalized: textnorm.Normalize(name)}
			}
			if ing.Kana == "" {
				ing.Kana = p.kana[name]
			}
			byID[id] = ing
			members[id] = append(members[id], p.recipe.ID)
		}
	}
	if len(byID) == 0 {
		return 0, nil
	}

	ings := make([]recipe.Ingredient, 0, len(byID))
	for _, ing := range byID {
		ings = append(ings, ing)
	}
	if err := s.ingredients.Save(ctx, ings, members); err != nil {
		return 0, fmt.Errorf("save ingredients: %w", err)
	}
	return len(ings), nil
}

func (r *Report) fail(row int, id string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{Row: row, ID: id, Err: err.Error()})
}

// EmbeddingText is the document text embedded for a recipe.
func EmbeddingText(r *recipe.Recipe) string {
	var b strings.Builder
	b.WriteString(r.Title)
	if r.Category != "" {
		b.WriteString("\nカテゴリ: ")
		b.WriteString(r.Category)
	}
	if len(r.Ingredients) > 0 {
		b.WriteString("\n材料: ")
		b.WriteString(strings.Join(r.Ingredients, "、"))
	}
	if r.Description != "" {
		b.WriteString("\n")
		b.WriteString(r.Description)
	}
	return b.String()
}
