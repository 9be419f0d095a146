package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/metrics"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Tokens map[string]string // bearer token -> user; empty disables auth
	Logger *zap.Logger
}

// NewRouter mounts the server on a chi router with the standard middleware
// stack: recovery, request id, auth, request logging, metrics.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = s.logger
	}

	r := chi.NewRouter()
	r.Use(JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(BearerAuthMiddleware(opts.Tokens, logger))
	r.Use(RequestLogger(logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/match", s.Match)
		r.Post("/search", s.SearchPost)
		r.Get("/search", s.SearchGet)
	})
	return r
}
