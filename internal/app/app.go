// Package app is the composition root shared by the server and the operator
// CLI: it turns a Config into wired services.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/config"
	"github.com/kailas-cloud/recipematch/internal/db"
	dbRedis "github.com/kailas-cloud/recipematch/internal/db/redis"
	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/domain/query"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
	"github.com/kailas-cloud/recipematch/internal/ingredient"
	"github.com/kailas-cloud/recipematch/internal/metrics"
	"github.com/kailas-cloud/recipematch/internal/query/rules"
	"github.com/kailas-cloud/recipematch/internal/repository/embcache"
	ingredientrepo "github.com/kailas-cloud/recipematch/internal/repository/ingredient"
	reciperepo "github.com/kailas-cloud/recipematch/internal/repository/recipe"
	"github.com/kailas-cloud/recipematch/internal/transport/llm"
	openaiEmb "github.com/kailas-cloud/recipematch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/recipematch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/recipematch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/recipematch/internal/usecase/ingest"
	lexicaluc "github.com/kailas-cloud/recipematch/internal/usecase/lexical"
	matchuc "github.com/kailas-cloud/recipematch/internal/usecase/match"
	"github.com/kailas-cloud/recipematch/internal/usecase/threshold"
)

// App holds the wired services. Close releases the store.
type App struct {
	Store   db.Store
	Recipes *reciperepo.Repo
	Match   *matchuc.Service
	Lexical *lexicaluc.Service
	Ingest  *ingestuc.Service
	Health  *healthuc.Service
}

// New connects to the store and wires every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
	)

	a, err := Wire(store, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// Wire builds the services over an existing store.
func Wire(store db.Store, cfg *config.Config, logger *zap.Logger) (*App, error) {
	aliases, err := ingredient.Load(cfg.Ingredients.AliasFile)
	if err != nil {
		return nil, fmt.Errorf("load ingredient aliases: %w", err)
	}
	logger.Info("Ingredient aliases loaded", zap.Int("rules", aliases.Len()))

	classifier, rewriter, err := buildReasoning(cfg, aliases, logger)
	if err != nil {
		return nil, err
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	queryEmbedder := BuildEmbedder(base, store, cfg, cfg.Embedding.QueryInstruction, logger)
	docEmbedder := BuildEmbedder(base, store, cfg, cfg.Embedding.DocumentInstruction, logger)

	recipes := reciperepo.New(store, cfg.Storage.KeyPrefix, cfg.Index.Name)
	ingredients := ingredientrepo.New(store, cfg.Storage.KeyPrefix)

	lexical := lexicaluc.New(recipes, ingredients, aliases, lexicaluc.Config{
		MinNormalizedLen: cfg.Lexical.MinNormalizedLen,
		MaxResults:       cfg.Lexical.MaxResults,
	})

	match, err := matchuc.New(matchuc.Deps{
		Classifier: classifier,
		Rewriter:   rewriter,
		Embedder:   queryEmbedder,
		Index:      recipes,
		Lexical:    lexical,
	}, MatchConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create match service: %w", err)
	}

	ingest := ingestuc.New(recipes, ingredients, docEmbedder, aliases, ingestuc.Config{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
		Index: recipe.IndexSpec{
			Dimensions:  cfg.Embedding.Dimensions,
			HNSWM:       cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	}, logger)

	health := healthuc.New(store, recipes, base, logger)

	logger.Info("Services wired",
		zap.String("reasoning_adapter", cfg.Reasoning.Adapter),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)
	return &App{
		Store:   store,
		Recipes: recipes,
		Match:   match,
		Lexical: lexical,
		Ingest:  ingest,
		Health:  health,
	}, nil
}

// Close releases the store.
func (a *App) Close() {
	a.Store.Close()
}

// MatchConfig maps configuration onto the match pipeline settings.
func MatchConfig(cfg *config.Config) matchuc.Config {
	m := cfg.Match
	return matchuc.Config{
		Threshold: threshold.Config{
			Initial:    m.InitialThreshold,
			Floor:      m.Floor(),
			Step:       m.ThresholdStep,
			MinDesired: m.MinDesired,
		},
		DesiredCount:     m.DesiredCount,
		OverfetchFactor:  m.OverFetchFactor,
		Perturbation:     m.PerturbationValue(),
		DiversityNoise:   m.DiversityNoiseValue(),
		ReasoningTimeout: time.Duration(cfg.Reasoning.TimeoutMs) * time.Millisecond,
		EmbeddingTimeout: time.Duration(cfg.Embedding.TimeoutMs) * time.Millisecond,
		IndexTimeout:     time.Duration(m.IndexTimeoutMs) * time.Millisecond,
	}
}

// BuildEmbedder assembles the decorator chain around the provider:
// provider -> cache -> instrumented -> retry -> instruction.
// The instruction is outermost so that the cache key includes it.
func BuildEmbedder(
	base domain.Embedder, store db.KVStore, cfg *config.Config, instruction string, logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Model:     cfg.Embedding.Model,
			TTL:       time.Duration(cfg.Embedding.CacheTTLSec) * time.Second,
			Logger:    logger,
		})
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, 0, logger)

	if cfg.Embedding.MaxAttempts > 1 {
		embedder = embeddinguc.NewRetryingEmbedder(embedder, cfg.Embedding.MaxAttempts,
			time.Duration(cfg.Embedding.RetryBaseDelayMs)*time.Millisecond, logger)
	}

	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func buildReasoning(
	cfg *config.Config, aliases *ingredient.Normalizer, logger *zap.Logger,
) (query.Classifier, query.Rewriter, error) {
	if cfg.Reasoning.Adapter == "rules" {
		engine := rules.New(aliases)
		return engine, engine, nil
	}
	client, err := llm.New(llm.Config{
		APIKey:  cfg.Reasoning.APIKey,
		BaseURL: cfg.Reasoning.BaseURL,
		Model:   cfg.Reasoning.Model,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create reasoning client: %w", err)
	}
	return client, client, nil
}
