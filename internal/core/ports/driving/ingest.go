package driving

import (
	"context"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

// IngestService handles document lifecycle operations invoked by the
// upload/list/delete surface.
type IngestService interface {
	// Create registers a new document and enqueues it for indexing.
	// Empty text is rejected with domain.ErrEmptyDocument.
	Create(ctx context.Context, name, text string) (*domain.Document, error)

	// Reindex replaces a document's content and enqueues a fresh indexing
	// job. A no-op if the content hash is unchanged.
	Reindex(ctx context.Context, id, text string) (*domain.Document, error)

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List retrieves documents, newest first
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// Delete removes the document record and enqueues removal of its
	// vectors. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error
}
