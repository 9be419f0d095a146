package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/match", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	tests := []struct {
		method, path, status string
	}{
		{"POST", "/v1/match", "200"},
		{"GET", "/v1/search", "400"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, http.NoBody)
			r.ServeHTTP(httptest.NewRecorder(), req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.path, modeNone, tc.status))
			if val < 1 {
				t.Errorf("expected requests_total >= 1, got %f", val)
			}
		})
	}

	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/known", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", http.NoBody))

	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", modeNone, "404")); v < 1 {
		t.Errorf("expected unknown path label, got %f", v)
	}
}

func TestMiddleware_ModeAndEmbeddingTokens(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/match", func(w http.ResponseWriter, req *http.Request) {
		SetMode(req.Context(), "strict")
		w.Header().Set(EmbeddingTokensHeader, "7")
		_, _ = w.Write([]byte("ok"))
	})

	before := testutil.ToFloat64(httpEmbeddingTokensTotal.WithLabelValues("/v1/match", "strict"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/match", http.NoBody))

	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/match", "strict", "200")); v < 1 {
		t.Errorf("expected strict mode label, got %f", v)
	}
	after := testutil.ToFloat64(httpEmbeddingTokensTotal.WithLabelValues("/v1/match", "strict"))
	if after-before != 7 {
		t.Errorf("expected 7 embedding tokens recorded, got %f", after-before)
	}
}

func TestSetMode_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	SetMode(req.Context(), "free") // must not panic
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/v1/match", "/v1/match"},
		{"/health", "/health"},
	}

	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()

	MatchRequestsTotal.WithLabelValues("free", "matched").Inc()
	if v := testutil.ToFloat64(MatchRequestsTotal.WithLabelValues("free", "matched")); v < 1 {
		t.Errorf("expected match_requests_total >= 1, got %f", v)
	}

	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "recipematch_match_requests_total") {
		t.Error("expected recipematch_match_requests_total in exposition")
	}
}
