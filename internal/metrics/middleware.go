package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// EmbeddingTokensHeader carries the embedding tokens a request consumed.
const EmbeddingTokensHeader = "X-Embedding-Tokens"

// modeNone labels requests that do not run the match pipeline.
const modeNone = "none"

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds by route and match mode",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"method", "path", "mode", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and match mode",
		},
		[]string{"method", "path", "mode", "status"},
	)

	httpEmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_embedding_tokens_total",
			Help:      "Embedding tokens consumed per route and match mode, as reported to clients",
		},
		[]string{"path", "mode"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration, httpRequestsTotal, httpEmbeddingTokensTotal)
}

type requestLabels struct {
	mode string
}

type labelsKey struct{}

// SetMode tags the current request's HTTP metrics with the match mode.
// Outside Middleware it does nothing.
func SetMode(ctx context.Context, mode string) {
	if l, ok := ctx.Value(labelsKey{}).(*requestLabels); ok && mode != "" {
		l.mode = mode
	}
}

// Middleware records HTTP request duration and count per route and match
// mode, and the embedding tokens reported in EmbeddingTokensHeader.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			labels := &requestLabels{mode: modeNone}
			r = r.WithContext(context.WithValue(r.Context(), labelsKey{}, labels))

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.status)
			path := normalizePath(chi.RouteContext(r.Context()).RoutePattern())

			httpRequestDuration.WithLabelValues(r.Method, path, labels.mode, status).
				Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, path, labels.mode, status).Inc()

			if n, err := strconv.Atoi(ww.Header().Get(EmbeddingTokensHeader)); err == nil && n > 0 {
				httpEmbeddingTokensTotal.WithLabelValues(path, labels.mode).Add(float64(n))
			}
		})
	}
}

// normalizePath maps unmatched requests to one label value.
func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
