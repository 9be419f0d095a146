// Package chi exposes the match and search pipelines over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
	dommatch "github.com/kailas-cloud/recipematch/internal/domain/match"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
	logpkg "github.com/kailas-cloud/recipematch/internal/logger"
	"github.com/kailas-cloud/recipematch/internal/metrics"
	healthuc "github.com/kailas-cloud/recipematch/internal/usecase/health"
)

// Matcher runs the AI match pipeline.
type Matcher interface {
	Match(ctx context.Context, req dommatch.Request) (dommatch.Outcome, error)
}

// Searcher runs keyword search over titles and ingredients.
type Searcher interface {
	Search(ctx context.Context, q string) ([]recipe.Recipe, error)
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

const maxBodyBytes = 64 << 10

// MatchRequest is the body of POST /v1/match.
type MatchRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

// MatchItem is one ranked recipe.
type MatchItem struct {
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	Similarity  string `json:"similarity"`
}

// MatchResponse is the body of a successful match.
type MatchResponse struct {
	Items  []MatchItem `json:"items"`
	Reason string      `json:"reason,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchItem is one keyword search hit.
type SearchItem struct {
	ID            string `json:"id"`
	TitleOriginal string `json:"title_original"`
	TitleCore     string `json:"title_core"`
	URL           string `json:"url"`
	Category      string `json:"category"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Items []SearchItem `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server holds the HTTP handlers.
type Server struct {
	match   Matcher
	search  Searcher
	health  HealthChecker
	logger  *zap.Logger
	metrics http.Handler
}

// NewServer creates an HTTP API server.
func NewServer(match Matcher, search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		match:   match,
		search:  search,
		health:  health,
		logger:  logger,
		metrics: promhttp.Handler(),
	}
}

// Match handles POST /v1/match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "text is required")
		return
	}
	mode, err := dommatch.ParseMode(req.Mode)
	if err != nil {
		handleDomainError(w, s.requestLogger(r), err)
		return
	}
	metrics.SetMode(r.Context(), string(mode))

	ctx, usage := domain.NewContextWithUsage(r.Context())
	out, err := s.match.Match(ctx, dommatch.Request{
		Text: req.Text,
		Mode: mode,
		User: UserFromContext(ctx),
	})
	if err != nil {
		handleDomainError(w, s.requestLogger(r), err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, matchResponse(out))
}

// SearchPost handles POST /v1/search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.runSearch(w, r, req.Query)
}

// SearchGet handles GET /v1/search?q=.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query parameter q is required")
		return
	}
	s.runSearch(w, r, q)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, q string) {
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}

	recs, err := s.search.Search(r.Context(), q)
	if err != nil {
		handleDomainError(w, s.requestLogger(r), err)
		return
	}

	items := make([]SearchItem, len(recs))
	for i := range recs {
		items[i] = SearchItem{
			ID:            recs[i].ID,
			TitleOriginal: recs[i].Title,
			TitleCore:     recs[i].TitleCore,
			URL:           recs[i].URL,
			Category:      recs[i].Category,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

// requestLogger prefers the per-request logger; a context without one
// yields a no-op logger, whose core is disabled at every level.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if l := logpkg.FromContext(r.Context()); l.Core().Enabled(zap.ErrorLevel) {
		return l
	}
	return s.logger
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set(metrics.EmbeddingTokensHeader, strconv.Itoa(usage.TotalTokens()))
	}
}

func matchResponse(out dommatch.Outcome) MatchResponse {
	items := make([]MatchItem, len(out.Candidates))
	for i, c := range out.Candidates {
		items[i] = MatchItem{
			Rank:        c.Rank,
			Title:       c.Recipe.Title,
			Description: c.Recipe.Description,
			URL:         c.Recipe.URL,
			Image:       c.Recipe.Image,
			Similarity:  dommatch.FormatSimilarity(c.Similarity),
		}
	}
	return MatchResponse{Items: items, Reason: string(out.Reason)}
}
