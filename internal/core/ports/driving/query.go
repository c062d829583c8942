package driving

import (
	"context"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

// RetrieveOptions configures evidence retrieval for a query.
type RetrieveOptions struct {
	// DocumentIDs restricts retrieval to these documents. Empty means all
	// ready documents.
	DocumentIDs []string

	// TopK caps the evidence count. Zero means the configured default.
	TopK int

	// Threshold discards results scoring below it. Negative means the
	// configured default.
	Threshold float64

	// DedupeByDocument keeps only the best-scoring chunk per document.
	DedupeByDocument bool
}

// QueryService answers natural-language questions over indexed documents.
type QueryService interface {
	// Retrieve returns ranked evidence for a query. An empty result is a
	// normal outcome, not an error.
	Retrieve(ctx context.Context, query string, opts RetrieveOptions) (*domain.RetrievalResult, error)

	// Ask retrieves evidence and synthesizes a grounded answer with
	// citations. With no evidence it returns a fixed insufficient-
	// information answer without invoking generation.
	Ask(ctx context.Context, question string, opts RetrieveOptions) (*domain.Answer, error)
}
