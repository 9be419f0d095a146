package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
)

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingResponse mirrors the OpenAI-compatible embeddings response.
type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// fakeProvider answers /embeddings with the given data and token count.
func fakeProvider(t *testing.T, data []embeddingData, tokens int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		resp := embeddingResponse{Object: "list", Model: "test-model", Data: data}
		resp.Usage.PromptTokens = tokens
		resp.Usage.TotalTokens = tokens
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestEmbedder(baseURL string) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "test-model",
		Dimensions: 4,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}
	server := fakeProvider(t, []embeddingData{{Object: "embedding", Embedding: expectedVec}}, 42)

	result, err := newTestEmbedder(server.URL).Embed(context.Background(), "肉じゃが")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != len(expectedVec) {
		t.Fatalf("expected %d dims, got %d", len(expectedVec), len(result.Embedding))
	}
	for i, v := range expectedVec {
		if result.Embedding[i] != v {
			t.Errorf("dim %d: expected %f, got %f", i, v, result.Embedding[i])
		}
	}
	if result.PromptTokens != 42 || result.TotalTokens != 42 {
		t.Errorf("expected 42 tokens, got prompt=%d total=%d", result.PromptTokens, result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_RestoresInputOrder(t *testing.T) {
	server := fakeProvider(t, []embeddingData{
		{Object: "embedding", Embedding: []float32{0.3, 0.4}, Index: 1},
		{Object: "embedding", Embedding: []float32{0.1, 0.2}, Index: 0},
	}, 20)

	result, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if len(result.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(result.Embeddings))
	}
	if result.Embeddings[0][0] != 0.1 {
		t.Errorf("expected first input's vector first, got %v", result.Embeddings[0])
	}
	if result.Embeddings[1][0] != 0.3 {
		t.Errorf("expected second input's vector second, got %v", result.Embeddings[1])
	}
	if result.TotalTokens != 20 {
		t.Errorf("expected 20 total tokens, got %d", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	result, err := newTestEmbedder("http://unused").BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embeddings != nil {
		t.Errorf("expected nil embeddings, got %v", result.Embeddings)
	}
}

func TestEmbedder_BatchEmbed_CountMismatch(t *testing.T) {
	server := fakeProvider(t, []embeddingData{{Object: "embedding", Embedding: []float32{0.1}}}, 5)

	_, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_BatchEmbed_DuplicateIndex(t *testing.T) {
	server := fakeProvider(t, []embeddingData{
		{Object: "embedding", Embedding: []float32{0.1}, Index: 0},
		{Object: "embedding", Embedding: []float32{0.2}, Index: 0},
	}, 5)

	_, err := newTestEmbedder(server.URL).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("expected provider message in error, got %q", err.Error())
	}
}

func TestEmbedder_DeadlineKeepsCause(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		// The server only sees the client go away once the body is consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestEmbedder(server.URL).Embed(ctx, "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded in chain, got %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"model not found"}`)); got != "model not found" {
		t.Errorf("expected detail, got %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("expected empty detail, got %q", got)
	}
}
