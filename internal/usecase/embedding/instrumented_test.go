package embedding

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/recipematch/internal/domain"
)

type fakeEmbedder struct {
	vec        []float32
	tokens     int
	errs       []error // returned in order, one per call
	calls      int
	batchSizes []int
}

func (f *fakeEmbedder) nextErr() error {
	f.calls++
	if f.calls <= len(f.errs) {
		return f.errs[f.calls-1]
	}
	return nil
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if err := f.nextErr(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: f.vec, PromptTokens: f.tokens, TotalTokens: f.tokens}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batchSizes = append(f.batchSizes, len(texts))
	if err := f.nextErr(); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	n := f.tokens * len(texts)
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: n, TotalTokens: n}, nil
}

func TestInstrumented_RecordsUsage(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{0.1}, tokens: 7}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := p.Embed(ctx, "唐揚げ"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if usage.TotalTokens() != 7 {
		t.Errorf("expected 7 tokens, got %d", usage.TotalTokens())
	}
	if !usage.Used() {
		t.Error("expected usage to be marked used")
	}
}

func TestInstrumented_WithoutUsageInContext(t *testing.T) {
	p := NewInstrumentedEmbedder(&fakeEmbedder{vec: []float32{1}}, "test", "m", 0, nil)
	if _, err := p.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstrumented_Error(t *testing.T) {
	boom := errors.New("api down")
	p := NewInstrumentedEmbedder(&fakeEmbedder{errs: []error{boom}}, "test", "m", 0, nil)

	if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestInstrumented_BatchChunks(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{0.5}, tokens: 1}
	p := NewInstrumentedEmbedder(inner, "test", "m", 2, nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := p.BatchEmbed(ctx, []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}

	if len(res.Embeddings) != 5 {
		t.Errorf("expected 5 embeddings, got %d", len(res.Embeddings))
	}
	if !slices.Equal(inner.batchSizes, []int{2, 2, 1}) {
		t.Errorf("expected chunks [2 2 1], got %v", inner.batchSizes)
	}
	if res.TotalTokens != 5 {
		t.Errorf("expected 5 total tokens, got %d", res.TotalTokens)
	}
	if usage.TotalTokens() != 5 {
		t.Errorf("expected usage 5, got %d", usage.TotalTokens())
	}
}

func TestInstrumented_BatchEmpty(t *testing.T) {
	inner := &fakeEmbedder{}
	res, err := NewInstrumentedEmbedder(inner, "test", "m", 0, nil).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected nil embeddings, got %v", res.Embeddings)
	}
	if inner.calls != 0 {
		t.Errorf("expected no provider call, got %d", inner.calls)
	}
}

func TestRetrying_EventualSuccess(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1}, errs: []error{errors.New("502"), errors.New("502")}}
	r := NewRetryingEmbedder(inner, 3, time.Millisecond, nil)

	res, err := r.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !slices.Equal(res.Embedding, []float32{1}) {
		t.Errorf("unexpected vector %v", res.Embedding)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetrying_AllAttemptsFail(t *testing.T) {
	last := errors.New("still down")
	inner := &fakeEmbedder{errs: []error{errors.New("down"), last}}
	r := NewRetryingEmbedder(inner, 2, time.Millisecond, nil)

	if _, err := r.Embed(context.Background(), "x"); err != last { //nolint:errorlint // identity of the last error
		t.Errorf("expected last error, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetrying_SingleAttemptByDefault(t *testing.T) {
	inner := &fakeEmbedder{errs: []error{errors.New("down")}}
	if _, err := NewRetryingEmbedder(inner, 0, time.Millisecond, nil).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetrying_DeadlineNotRetried(t *testing.T) {
	inner := &fakeEmbedder{errs: []error{context.DeadlineExceeded}}
	r := NewRetryingEmbedder(inner, 5, time.Millisecond, nil)

	if _, err := r.Embed(context.Background(), "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetrying_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &fakeEmbedder{errs: []error{errors.New("down"), errors.New("down")}}
	r := NewRetryingEmbedder(inner, 3, time.Hour, nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := r.Embed(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetrying_Batch(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1}, errs: []error{errors.New("down")}}
	res, err := NewRetryingEmbedder(inner, 2, time.Millisecond, nil).BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
}
