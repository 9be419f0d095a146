package embcache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/recipematch/internal/db"
	"github.com/kailas-cloud/recipematch/internal/domain"
)

type fakeEmbedder struct {
	vec        []float32
	tokens     int
	err        error
	calls      int
	batchCalls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vec, PromptTokens: f.tokens, TotalTokens: f.tokens}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batchCalls++
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	n := f.tokens * len(texts)
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: n, TotalTokens: n}, nil
}

// memStore is an in-memory KV store that records TTLs.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}
