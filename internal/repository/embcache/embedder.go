// Package embcache caches embedding vectors in the key-value store so repeated
// queries skip the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/db"
	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/metrics"
)

var (
	_ domain.Embedder      = (*CachedEmbedder)(nil)
	_ domain.BatchEmbedder = (*CachedEmbedder)(nil)
	_ domain.HealthChecker = (*CachedEmbedder)(nil)
)

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder is an Embedder decorator backed by a KV store.
// Entries are keyed by model and text so a model switch never serves stale vectors.
type CachedEmbedder struct {
	inner     domain.Embedder
	store     store
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// Options configures a CachedEmbedder.
type Options struct {
	KeyPrefix string        // storage namespace, e.g. "recipematch:"
	Model     string        // embedding model name, part of the key
	TTL       time.Duration // zero keeps entries forever
	Logger    *zap.Logger
}

// New creates a caching decorator around inner.
func New(inner domain.Embedder, s store, opts Options) *CachedEmbedder {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:     inner,
		store:     s,
		keyPrefix: opts.KeyPrefix + "emb_cache:" + opts.Model + ":",
		ttl:       opts.TTL,
		logger:    log,
	}
}

// Embed returns the cached vector, or embeds and stores it.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec, ok := c.get(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.put(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed serves hits from the cache and sends only misses to the provider.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
		if vec, ok := c.get(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Add(float64(len(texts) - len(missIdx)))
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Add(float64(len(missIdx)))

	if len(missTexts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := domain.BatchEmbed(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed misses: %w", err)
	}
	if len(res.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: expected %d vectors, got %d: %w",
			len(missTexts), len(res.Embeddings), domain.ErrEmbeddingProviderError)
	}
	for j, i := range missIdx {
		out[i] = res.Embeddings[j]
		c.put(ctx, keys[i], res.Embeddings[j])
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// HealthCheck delegates to the wrapped embedder.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

// get treats every store failure as a miss.
func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("embedding cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, encodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cached vector length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
