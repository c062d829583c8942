package driven

import (
	"context"
)

// EmbeddingService generates text embeddings.
// A batch either fully succeeds or fully fails: implementations never
// return partial results, so callers can safely retry the whole unit.
type EmbeddingService interface {
	// Embed generates embeddings for multiple texts, order-preserving
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
