// Package embedding holds the decorators that sit between the pipeline and the
// embedding provider: usage accounting, logging, chunking and retries.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
)

// DefaultMaxAPIBatchSize caps the inputs sent in one provider request.
const DefaultMaxAPIBatchSize = 256

var (
	_ domain.Embedder      = (*InstrumentedEmbedder)(nil)
	_ domain.BatchEmbedder = (*InstrumentedEmbedder)(nil)
	_ domain.HealthChecker = (*InstrumentedEmbedder)(nil)
)

// InstrumentedEmbedder records token usage into the request context and logs
// each call. Transport metrics live in transport/openai.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	provider  string
	model     string
	batchSize int
	logger    *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. batchSize <= 0 uses DefaultMaxAPIBatchSize.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, batchSize int, logger *zap.Logger,
) *InstrumentedEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultMaxAPIBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:     inner,
		provider:  provider,
		model:     model,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Embed delegates and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed splits texts into provider-sized chunks and records usage.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += p.batchSize {
		end := min(offset+p.batchSize, len(texts))
		chunk := texts[offset:end]

		res, err := domain.BatchEmbed(ctx, p.inner, chunk)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: expected %d vectors, got %d: %w",
				len(chunk), len(res.Embeddings), domain.ErrEmbeddingProviderError)
		}

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	domain.UsageFromContext(ctx).AddTokens(out.TotalTokens)

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates to the wrapped embedder.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}
