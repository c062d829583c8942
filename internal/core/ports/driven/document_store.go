package driven

import (
	"context"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

// DocumentStore handles document metadata persistence (PostgreSQL).
// Status transitions are written by the indexing pipeline; queries read
// the status to scope searches to ready documents.
type DocumentStore interface {
	// Save creates or updates a document
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List retrieves documents ordered by creation time, newest first
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// ListReadyIDs returns the ids of all documents in ready state
	ListReadyIDs(ctx context.Context) ([]string, error)

	// ListStuck returns documents that have been in indexing state longer
	// than maxAgeSeconds. Used by the janitor.
	ListStuck(ctx context.Context, maxAgeSeconds int) ([]*domain.Document, error)

	// SetStatus updates the document status and chunk count
	SetStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int) error

	// SetFailed marks the document failed with a reason
	SetFailed(ctx context.Context, id string, reason string) error

	// Delete deletes a document record
	Delete(ctx context.Context, id string) error

	// Count returns total document count
	Count(ctx context.Context) (int, error)
}
