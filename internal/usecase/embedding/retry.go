package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/metrics"
)

var (
	_ domain.Embedder      = (*RetryingEmbedder)(nil)
	_ domain.BatchEmbedder = (*RetryingEmbedder)(nil)
	_ domain.HealthChecker = (*RetryingEmbedder)(nil)
)

// RetryingEmbedder retries failed provider calls with exponential backoff.
// Context cancellation and deadlines are never retried.
type RetryingEmbedder struct {
	inner       domain.Embedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// NewRetryingEmbedder wraps inner. maxAttempts < 1 is treated as 1.
func NewRetryingEmbedder(inner domain.Embedder, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *RetryingEmbedder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingEmbedder{inner: inner, maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

// Embed retries inner.Embed.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var res domain.EmbeddingResult
	err := r.do(ctx, func() error {
		var err error
		res, err = r.inner.Embed(ctx, text)
		return err //nolint:wrapcheck // wrapped by caller
	})
	return res, err
}

// BatchEmbed retries the whole batch.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var res domain.BatchEmbeddingResult
	err := r.do(ctx, func() error {
		var err error
		res, err = domain.BatchEmbed(ctx, r.inner, texts)
		return err //nolint:wrapcheck // wrapped by caller
	})
	return res, err
}

// HealthCheck delegates to the wrapped embedder without retrying.
func (r *RetryingEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}

func (r *RetryingEmbedder) do(ctx context.Context, op func() error) error {
	var lastErr error
	delay := r.baseDelay
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (after %d attempts): %w", err, attempt-1, lastErr)
			}
			return err //nolint:wrapcheck // plain context error
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == r.maxAttempts {
			break
		}

		metrics.EmbeddingRetriesTotal.Inc()
		r.logger.Warn("Embedding failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
