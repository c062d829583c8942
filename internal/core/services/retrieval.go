package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driving"
)

// Retrieval finds the evidence chunks most relevant to a query. Only ready
// documents are searched; pending, indexing and failed documents never leak
// into results.
type Retrieval struct {
	documentStore driven.DocumentStore
	vectorIndex   driven.VectorIndex
	embedder      driven.EmbeddingService
	topK          int
	threshold     float64
	logger        *slog.Logger
}

// RetrievalConfig holds dependencies and defaults for Retrieval.
type RetrievalConfig struct {
	DocumentStore driven.DocumentStore
	VectorIndex   driven.VectorIndex
	Embedder      driven.EmbeddingService

	// TopK is the default evidence cap when the caller does not set one
	TopK int

	// Threshold is the default relevance cutoff
	Threshold float64

	Logger *slog.Logger
}

// NewRetrieval creates a new retrieval engine.
func NewRetrieval(cfg RetrievalConfig) *Retrieval {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}

	return &Retrieval{
		documentStore: cfg.DocumentStore,
		vectorIndex:   cfg.VectorIndex,
		embedder:      cfg.Embedder,
		topK:          cfg.TopK,
		threshold:     cfg.Threshold,
		logger:        logger.With("component", "retrieval"),
	}
}

// Retrieve returns ranked evidence for a query. Zero hits is a normal
// outcome: the result is empty and the error nil.
func (r *Retrieval) Retrieve(ctx context.Context, query string, opts driving.RetrieveOptions) (*domain.RetrievalResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = r.topK
	}
	threshold := opts.Threshold
	if threshold < 0 {
		threshold = r.threshold
	}

	scope, err := r.searchScope(ctx, opts.DocumentIDs)
	if err != nil {
		return nil, err
	}
	if len(scope) == 0 {
		return &domain.RetrievalResult{Query: query}, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Over-fetch when deduping so a document with several strong chunks
	// cannot crowd the final cut
	limit := topK
	if opts.DedupeByDocument {
		limit = topK * 5
	}

	evidence, err := r.vectorIndex.Search(ctx, vector, driven.SearchFilter{DocumentIDs: scope}, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	rankEvidence(evidence)

	if opts.DedupeByDocument {
		evidence = dedupeByDocument(evidence)
	}
	if len(evidence) > topK {
		evidence = evidence[:topK]
	}

	r.logger.Debug("retrieval complete",
		"query_len", len(query),
		"scope", len(scope),
		"hits", len(evidence))

	return &domain.RetrievalResult{Query: query, Evidence: evidence}, nil
}

// searchScope intersects the requested document ids with the set of ready
// documents. Unknown or non-ready ids are silently dropped.
func (r *Retrieval) searchScope(ctx context.Context, requested []string) ([]string, error) {
	ready, err := r.documentStore.ListReadyIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready documents: %w", err)
	}
	if len(requested) == 0 {
		return ready, nil
	}

	readySet := make(map[string]bool, len(ready))
	for _, id := range ready {
		readySet[id] = true
	}

	var scope []string
	for _, id := range requested {
		if readySet[id] {
			scope = append(scope, id)
		}
	}
	return scope, nil
}

// rankEvidence orders by descending score, ties broken by (document id,
// seq) ascending so equal-scored results are stable across runs.
func rankEvidence(evidence []domain.ScoredChunk) {
	sort.Slice(evidence, func(i, j int) bool {
		if evidence[i].Score != evidence[j].Score {
			return evidence[i].Score > evidence[j].Score
		}
		if evidence[i].DocumentID != evidence[j].DocumentID {
			return evidence[i].DocumentID < evidence[j].DocumentID
		}
		return evidence[i].Seq < evidence[j].Seq
	})
}

// dedupeByDocument keeps only the best-scoring chunk per document,
// preserving rank order.
func dedupeByDocument(evidence []domain.ScoredChunk) []domain.ScoredChunk {
	seen := make(map[string]bool, len(evidence))
	out := evidence[:0]
	for _, ev := range evidence {
		if seen[ev.DocumentID] {
			continue
		}
		seen[ev.DocumentID] = true
		out = append(out, ev)
	}
	return out
}
