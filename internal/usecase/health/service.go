// Package health aggregates the availability of the match pipeline's
// dependencies.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	Healthy  Status = "ok"
	Degraded Status = "degraded"
)

// CheckResult is one component outcome.
type CheckResult string

const (
	CheckOK       CheckResult = "ok"
	CheckError    CheckResult = "error"
	CheckNotReady CheckResult = "not_ready"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase  = "database"
	ComponentIndex     = "index"
	ComponentEmbedding = "embedding"
)

const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	index     IndexChecker
	embedding EmbeddingChecker
	logger    *zap.Logger
}

// New creates a Service. index and embedding can be nil.
func New(db DBPinger, index IndexChecker, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, index: index, embedding: embedding, logger: logger}
}

// Check runs every configured check under a short deadline. A missing index
// degrades the service because /v1/match cannot answer without it.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := make(map[string]CheckResult, 3)
	checks[ComponentDatabase] = s.result(ComponentDatabase, s.db.Ping(ctx))

	if s.index != nil && checks[ComponentDatabase] == CheckOK {
		ready, err := s.index.IndexReady(ctx)
		switch {
		case err != nil:
			checks[ComponentIndex] = s.result(ComponentIndex, err)
		case !ready:
			checks[ComponentIndex] = CheckNotReady
		default:
			checks[ComponentIndex] = CheckOK
		}
	}

	if s.embedding != nil {
		checks[ComponentEmbedding] = s.result(ComponentEmbedding, s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) result(component string, err error) CheckResult {
	if err != nil {
		s.logger.Warn("Health check failed", zap.String("component", component), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
