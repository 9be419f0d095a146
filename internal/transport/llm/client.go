// Package llm adapts a chat model into the intent classifier and query
// rewriter through langchaingo.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/domain/query"
	"github.com/kailas-cloud/recipematch/internal/logger"
	"github.com/kailas-cloud/recipematch/internal/metrics"
	"github.com/kailas-cloud/recipematch/internal/query/rules"
)

var (
	_ query.Classifier = (*Client)(nil)
	_ query.Rewriter   = (*Client)(nil)
)

const (
	opClassify  = "classify"
	opRewrite   = "rewrite"
	maxAttempts = 3
)

// Config holds chat model connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// Client implements query.Classifier and query.Rewriter over a chat model.
type Client struct {
	model  llms.Model
	logger *zap.Logger
}

// New creates a client backed by an OpenAI-compatible chat endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	token := cfg.APIKey
	if token == "" {
		token = "none" // local OpenAI-compatible servers accept any token
	}
	opts = append(opts, openai.WithToken(token))
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}
	return NewWithModel(model, cfg.Logger), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{model: model, logger: log.Named("llm")}
}

type classifyResponse struct {
	Valid       bool     `json:"valid"`
	Kind        string   `json:"kind"`
	Ingredients []string `json:"ingredients"`
}

type rewriteResponse struct {
	Query   string `json:"query"`
	Focus   string `json:"focus"`
	Subject string `json:"subject"`
}

// Classify asks the model whether q is a food request.
func (c *Client) Classify(ctx context.Context, q string) (query.Verdict, error) {
	var resp classifyResponse
	if err := c.generateJSON(ctx, opClassify, classifySystemPrompt, q, &resp); err != nil {
		return query.Verdict{}, err
	}
	if !resp.Valid {
		return query.Verdict{}, nil
	}

	kind := query.Kind(strings.ToLower(strings.TrimSpace(resp.Kind)))
	switch kind {
	case query.KindIngredient, query.KindDish, query.KindGeneral:
	default:
		kind = query.KindGeneral
	}

	var ingredients []string
	for _, ing := range resp.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			ingredients = append(ingredients, ing)
		}
	}
	return query.Verdict{Valid: true, Kind: kind, Ingredients: ingredients}, nil
}

// Rewrite asks the model for a retrieval query. A rewrite that breaks the
// pairing rule is replaced by the deterministic one.
func (c *Client) Rewrite(ctx context.Context, q string) (query.Rewrite, error) {
	var resp rewriteResponse
	if err := c.generateJSON(ctx, opRewrite, rewriteSystemPrompt, q, &resp); err != nil {
		return query.Rewrite{}, err
	}

	text := strings.TrimSpace(resp.Query)
	if text == "" || strings.EqualFold(text, "NO_VALID_QUERY") {
		return query.Rewrite{}, nil
	}

	focus := query.Focus(strings.ToLower(strings.TrimSpace(resp.Focus)))
	switch focus {
	case query.FocusComplement, query.FocusTarget, query.FocusGeneral:
	default:
		focus = query.FocusGeneral
	}
	r := query.Rewrite{Text: text, Focus: focus, Subject: strings.TrimSpace(resp.Subject)}

	if err := query.CheckRewrite(q, r); err != nil {
		fallback := rules.Rewrite(q)
		logger.FromContext(ctx).Warn("llm rewrite replaced",
			zap.String("query", q),
			zap.String("llm_rewrite", r.Text),
			zap.String("fallback", fallback.Text),
			zap.Error(err),
		)
		return fallback, nil
	}
	return r, nil
}

// generateJSON runs one chat completion in JSON mode and decodes it into out.
// Malformed JSON is retried; transport errors are not.
func (c *Client) generateJSON(ctx context.Context, op, system, user string, out any) error {
	start := time.Now()
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.model.GenerateContent(ctx, content, llms.WithTemperature(0), llms.WithJSONMode())
		if err != nil {
			c.observe(op, "error", start)
			return fmt.Errorf("%w: %s: %w", domain.ErrReasoningProviderError, op, err)
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("no choices returned")
			continue
		}

		raw := cleanJSON(resp.Choices[0].Content)
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = err
			c.logger.Warn("malformed model response",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.String("response", raw),
				zap.Error(err),
			)
			continue
		}

		c.observe(op, "ok", start)
		return nil
	}

	c.observe(op, "malformed", start)
	return fmt.Errorf("%w: %s: unusable response after %d attempts: %w",
		domain.ErrReasoningProviderError, op, maxAttempts, lastErr)
}

func (c *Client) observe(op, status string, start time.Time) {
	metrics.ReasoningRequestsTotal.WithLabelValues(op, status).Inc()
	metrics.ReasoningRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
