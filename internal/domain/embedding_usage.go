package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for a single request.
// The transport puts it into the context; the instrumented embedder writes to it.
type EmbeddingUsage struct {
	mu          sync.Mutex
	totalTokens int
	calls       int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one embedding call. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += n
	u.calls++
	u.mu.Unlock()
}

// TotalTokens returns the tokens recorded so far.
func (u *EmbeddingUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}

// Used reports whether any embedding call was recorded, including cache hits.
func (u *EmbeddingUsage) Used() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls > 0
}
