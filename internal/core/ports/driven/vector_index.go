package driven

import (
	"context"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

// SearchFilter restricts a similarity search over point payload fields.
type SearchFilter struct {
	// DocumentIDs restricts results to these documents. Empty means no
	// document restriction.
	DocumentIDs []string
}

// VectorIndex handles vector storage and similarity search (Qdrant).
// Upsert is idempotent by chunk key: re-upserting an existing key
// overwrites rather than duplicates.
type VectorIndex interface {
	// EnsureCollection creates the backing collection if missing, with the
	// configured dimension and cosine distance.
	EnsureCollection(ctx context.Context) error

	// Upsert writes chunk points keyed by (document id, sequence index)
	Upsert(ctx context.Context, chunks []*domain.Chunk) error

	// DeleteByDocument removes all points for a document.
	// Deleting a document with no points is a no-op, not an error.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Search returns up to topK chunks most similar to the vector, filter
	// applied before ranking, scoring below threshold discarded.
	Search(ctx context.Context, vector []float32, filter SearchFilter, topK int, threshold float64) ([]domain.ScoredChunk, error)

	// ListDocumentIDs returns the distinct document ids present in the
	// index. Used by the janitor to find orphaned points.
	ListDocumentIDs(ctx context.Context) ([]string, error)

	// HealthCheck verifies the index is available
	HealthCheck(ctx context.Context) error
}
