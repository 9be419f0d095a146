package health

import "context"

// DBPinger checks store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexChecker reports whether the recipe vector index has been built.
type IndexChecker interface {
	IndexReady(ctx context.Context) (bool, error)
}
