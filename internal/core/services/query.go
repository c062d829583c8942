package services

import (
	"context"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.QueryService = (*Query)(nil)

// Query composes retrieval and synthesis into the question-answering
// surface.
type Query struct {
	retrieval   *Retrieval
	synthesizer *Synthesizer
}

// NewQuery creates a new query service.
func NewQuery(retrieval *Retrieval, synthesizer *Synthesizer) *Query {
	return &Query{
		retrieval:   retrieval,
		synthesizer: synthesizer,
	}
}

// Retrieve returns ranked evidence for a query.
func (q *Query) Retrieve(ctx context.Context, query string, opts driving.RetrieveOptions) (*domain.RetrievalResult, error) {
	return q.retrieval.Retrieve(ctx, query, opts)
}

// Ask retrieves evidence and synthesizes a grounded answer.
func (q *Query) Ask(ctx context.Context, question string, opts driving.RetrieveOptions) (*domain.Answer, error) {
	result, err := q.retrieval.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	return q.synthesizer.Synthesize(ctx, question, result)
}
