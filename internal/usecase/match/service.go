// Package match orchestrates the AI match pipeline: classify, rewrite, embed,
// vector search, threshold relaxation and ranking.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
	dommatch "github.com/kailas-cloud/recipematch/internal/domain/match"
	"github.com/kailas-cloud/recipematch/internal/domain/query"
	"github.com/kailas-cloud/recipematch/internal/logger"
	"github.com/kailas-cloud/recipematch/internal/metrics"
	"github.com/kailas-cloud/recipematch/internal/usecase/rank"
	"github.com/kailas-cloud/recipematch/internal/usecase/threshold"
)

// Config tunes the pipeline.
type Config struct {
	Threshold       threshold.Config
	DesiredCount    int
	OverfetchFactor int
	Perturbation    float64
	DiversityNoise  float64

	ReasoningTimeout time.Duration
	EmbeddingTimeout time.Duration
	IndexTimeout     time.Duration
}

// Deps are the pipeline's collaborators.
type Deps struct {
	Classifier query.Classifier
	Rewriter   query.Rewriter
	Embedder   domain.Embedder
	Index      VectorSearcher
	Lexical    Lexical
}

// Option customizes a Service.
type Option func(*Service)

// WithRandSource sets the per-request random source used by free-mode ranking.
func WithRandSource(fn func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = fn }
}

// Service runs match requests. It holds no per-request state.
type Service struct {
	deps       Deps
	cfg        Config
	controller *threshold.Controller
	newRand    func() *rand.Rand
}

// New creates a match service.
func New(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	if deps.Classifier == nil || deps.Rewriter == nil || deps.Embedder == nil || deps.Index == nil || deps.Lexical == nil {
		return nil, errors.New("match: all dependencies are required")
	}
	if cfg.DesiredCount < 1 {
		return nil, fmt.Errorf("match: desired count must be positive, got %d", cfg.DesiredCount)
	}
	if cfg.OverfetchFactor < 1 {
		cfg.OverfetchFactor = 1
	}
	ctrl, err := threshold.New(cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}

	s := &Service{
		deps:       deps,
		cfg:        cfg,
		controller: ctrl,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // ranking noise
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Match runs one request. Empty outcomes carry a reason; errors are reserved
// for invalid requests and collaborator failures.
func (s *Service) Match(ctx context.Context, req dommatch.Request) (dommatch.Outcome, error) {
	if err := req.Validate(); err != nil {
		return dommatch.Outcome{}, err //nolint:wrapcheck // validation error is client-facing
	}
	if req.Mode == "" {
		req.Mode = dommatch.ModeFree
	}
	ctx = logger.With(ctx, zap.String("mode", string(req.Mode)))

	var (
		out dommatch.Outcome
		err error
	)
	if req.Mode == dommatch.ModeLexical {
		out, err = s.matchLexical(ctx, req.Text)
	} else {
		out, err = s.matchSemantic(ctx, req)
	}

	metrics.MatchRequestsTotal.WithLabelValues(string(req.Mode), outcomeLabel(out, err)).Inc()
	return out, err
}

func (s *Service) matchLexical(ctx context.Context, text string) (dommatch.Outcome, error) {
	recs, err := s.deps.Lexical.Search(ctx, text)
	if err != nil {
		return dommatch.Outcome{}, fmt.Errorf("lexical match: %w", err)
	}
	if len(recs) == 0 {
		return dommatch.Empty(dommatch.ReasonNoMatch), nil
	}
	cands := make([]dommatch.Candidate, len(recs))
	for i, r := range recs {
		cands[i] = dommatch.Candidate{Recipe: r, Rank: i + 1}
	}
	return dommatch.Outcome{Candidates: cands}, nil
}

func (s *Service) matchSemantic(ctx context.Context, req dommatch.Request) (dommatch.Outcome, error) {
	log := logger.FromContext(ctx)

	verdict, err := s.classify(ctx, req.Text)
	if err != nil {
		return dommatch.Outcome{}, err
	}
	if !verdict.Valid {
		log.Info("query rejected by classifier", zap.String("query", req.Text))
		return dommatch.Empty(dommatch.ReasonInvalidInput), nil
	}

	rw, err := s.rewrite(ctx, req.Text)
	if err != nil {
		return dommatch.Outcome{}, err
	}
	if rw.Empty() {
		log.Info("no usable rewrite", zap.String("query", req.Text))
		return dommatch.Empty(dommatch.ReasonInvalidQuery), nil
	}
	log.Debug("query rewritten",
		zap.String("query", req.Text),
		zap.String("rewrite", rw.Text),
		zap.String("focus", string(rw.Focus)),
		zap.String("kind", string(verdict.Kind)),
		zap.Strings("ingredients", verdict.Ingredients),
	)

	vec, err := s.embed(ctx, rw.Text)
	if err != nil {
		return dommatch.Outcome{}, err
	}

	fetched, err := s.search(ctx, vec)
	if err != nil {
		return dommatch.Outcome{}, err
	}

	res := s.controller.Apply(fetched)
	metrics.ThresholdRelaxationSteps.Observe(float64(res.Steps))
	log.Debug("threshold applied",
		zap.Int("fetched", len(fetched)),
		zap.Int("kept", len(res.Candidates)),
		zap.Float64("threshold", res.Threshold),
		zap.Int("steps", res.Steps),
		zap.String("state", string(res.State)),
	)
	if len(res.Candidates) == 0 {
		return dommatch.Outcome{Reason: dommatch.ReasonNoMatch, Rewritten: rw.Text, Threshold: res.Threshold}, nil
	}

	cands := res.Candidates
	var opts rank.Options
	var rng *rand.Rand
	switch req.Mode {
	case dommatch.ModeStrict:
		if verdict.IngredientDriven() {
			cands, err = s.filterByIngredients(ctx, cands, verdict.Ingredients)
			if err != nil {
				return dommatch.Outcome{}, err
			}
		}
	default:
		opts = rank.Options{Perturbation: s.cfg.Perturbation, Diversity: true, DiversityNoise: s.cfg.DiversityNoise}
		rng = s.newRand()
	}

	ranked := rank.New(opts, rng).Rank(cands, rank.ByRecipe, s.cfg.DesiredCount)
	return dommatch.Outcome{Candidates: ranked, Rewritten: rw.Text, Threshold: res.Threshold}, nil
}

// filterByIngredients keeps candidates in the AND set of the named
// ingredients. An empty intersection keeps the unfiltered candidates.
func (s *Service) filterByIngredients(
	ctx context.Context, cands []dommatch.Candidate, terms []string,
) ([]dommatch.Candidate, error) {
	sctx, cancel := s.withTimeout(ctx, s.cfg.IndexTimeout)
	defer cancel()

	ids, err := s.deps.Lexical.RecipeIDsForIngredients(sctx, terms)
	if err != nil {
		return nil, stageError(sctx, domain.StageLexical, err)
	}
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}

	filtered := make([]dommatch.Candidate, 0, len(cands))
	for _, c := range cands {
		if _, ok := allowed[c.Recipe.ID]; ok {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		metrics.IngredientFallbackTotal.Inc()
		logger.FromContext(ctx).Warn("ingredient filter emptied strict result, using unfiltered candidates",
			zap.Strings("ingredients", terms),
			zap.Int("candidates", len(cands)),
			zap.Int("ingredient_recipes", len(ids)),
		)
		return cands, nil
	}
	return filtered, nil
}

func (s *Service) classify(ctx context.Context, text string) (query.Verdict, error) {
	sctx, cancel := s.withTimeout(ctx, s.cfg.ReasoningTimeout)
	defer cancel()
	v, err := s.deps.Classifier.Classify(sctx, text)
	if err != nil {
		return query.Verdict{}, stageError(sctx, domain.StageClassify, err)
	}
	return v, nil
}

func (s *Service) rewrite(ctx context.Context, text string) (query.Rewrite, error) {
	sctx, cancel := s.withTimeout(ctx, s.cfg.ReasoningTimeout)
	defer cancel()
	rw, err := s.deps.Rewriter.Rewrite(sctx, text)
	if err != nil {
		return query.Rewrite{}, stageError(sctx, domain.StageRewrite, err)
	}
	return rw, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	sctx, cancel := s.withTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()
	res, err := s.deps.Embedder.Embed(sctx, text)
	if err != nil {
		return nil, stageError(sctx, domain.StageEmbed, err)
	}
	if len(res.Embedding) == 0 {
		return nil, domain.NewUpstreamError(domain.StageEmbed,
			fmt.Errorf("empty vector: %w", domain.ErrEmbeddingProviderError))
	}
	return res.Embedding, nil
}

func (s *Service) search(ctx context.Context, vec []float32) ([]dommatch.Candidate, error) {
	sctx, cancel := s.withTimeout(ctx, s.cfg.IndexTimeout)
	defer cancel()
	limit := s.cfg.DesiredCount * s.cfg.OverfetchFactor
	cands, err := s.deps.Index.SearchSimilar(sctx, vec, s.cfg.Threshold.Floor, limit)
	if err != nil {
		return nil, stageError(sctx, domain.StageSearch, err)
	}
	return cands, nil
}

func (s *Service) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// stageError attributes err to stage and makes a stage deadline visible to
// errors.Is even when the collaborator dropped it from the chain.
func stageError(sctx context.Context, stage string, err error) error {
	if errors.Is(sctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return domain.NewUpstreamError(stage, err)
}

func outcomeLabel(out dommatch.Outcome, err error) string {
	switch {
	case err != nil:
		return "error"
	case out.Reason != dommatch.ReasonNone:
		return string(out.Reason)
	}
	return "matched"
}
