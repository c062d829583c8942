package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docuport-labs/docuport-core/internal/chunker"
	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
)

// Indexer coordinates the document indexing pipeline:
//  1. Load document, guard against superseded tasks (stale content hash)
//  2. Transition pending -> indexing
//  3. Chunk the normalized content
//  4. Embed all chunk texts
//  5. Drop the document's previous points and upsert the new set
//  6. Transition -> ready with the chunk count
//
// A document only becomes searchable after step 6, so a query never sees a
// partially indexed revision. On failure the document's points are removed
// again before the error is surfaced, keeping "zero or all chunks" true
// under retries.
type Indexer struct {
	documentStore driven.DocumentStore
	vectorIndex   driven.VectorIndex
	embedder      driven.EmbeddingService
	chunker       *chunker.Chunker
	logger        *slog.Logger
}

// IndexerConfig holds dependencies for Indexer.
type IndexerConfig struct {
	DocumentStore driven.DocumentStore
	VectorIndex   driven.VectorIndex
	Embedder      driven.EmbeddingService
	Chunker       *chunker.Chunker
	Logger        *slog.Logger
}

// NewIndexer creates a new indexing pipeline.
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		documentStore: cfg.DocumentStore,
		vectorIndex:   cfg.VectorIndex,
		embedder:      cfg.Embedder,
		chunker:       cfg.Chunker,
		logger:        logger.With("component", "indexer"),
	}
}

// IndexDocument indexes the document revision pinned by contentHash.
// Superseded tasks (document deleted, or re-ingested with different
// content) succeed without touching the index; the newer task owns it.
func (i *Indexer) IndexDocument(ctx context.Context, documentID, contentHash string) error {
	doc, err := i.documentStore.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			i.logger.Info("document gone, skipping index task", "document_id", documentID)
			return nil
		}
		return fmt.Errorf("failed to load document: %w", err)
	}

	if contentHash != "" && contentHash != doc.ContentHash {
		i.logger.Info("task superseded by newer content, skipping",
			"document_id", documentID,
			"task_hash", contentHash,
			"current_hash", doc.ContentHash)
		return nil
	}

	if err := i.documentStore.SetStatus(ctx, documentID, domain.DocumentStatusIndexing, doc.ChunkCount); err != nil {
		return fmt.Errorf("failed to mark document indexing: %w", err)
	}

	chunks, err := i.buildChunks(doc)
	if err != nil {
		return i.compensate(ctx, documentID, err)
	}

	if err := i.embedChunks(ctx, chunks); err != nil {
		return i.compensate(ctx, documentID, err)
	}

	// Old points may belong to a longer previous revision; dropping them
	// first guarantees the index holds exactly the new chunk set
	if err := i.vectorIndex.DeleteByDocument(ctx, documentID); err != nil {
		return i.compensate(ctx, documentID, fmt.Errorf("failed to clear previous points: %w", err))
	}

	if err := i.vectorIndex.Upsert(ctx, chunks); err != nil {
		return i.compensate(ctx, documentID, fmt.Errorf("failed to upsert points: %w", err))
	}

	if err := i.documentStore.SetStatus(ctx, documentID, domain.DocumentStatusReady, len(chunks)); err != nil {
		return i.compensate(ctx, documentID, fmt.Errorf("failed to mark document ready: %w", err))
	}

	i.logger.Info("document indexed",
		"document_id", documentID,
		"chunks", len(chunks))

	return nil
}

// RemoveDocument removes the document's points from the vector index and,
// if still present, its metadata record. Removing an unknown document is a
// no-op.
func (i *Indexer) RemoveDocument(ctx context.Context, documentID string) error {
	if err := i.vectorIndex.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}

	if err := i.documentStore.Delete(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	i.logger.Info("document removed", "document_id", documentID)
	return nil
}

// buildChunks splits the document content and stamps identity onto each
// chunk draft.
func (i *Indexer) buildChunks(doc *domain.Document) ([]*domain.Chunk, error) {
	drafts, err := i.chunker.Split(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}

	chunks := make([]*domain.Chunk, len(drafts))
	for idx := range drafts {
		ch := drafts[idx]
		ch.DocumentID = doc.ID
		ch.ContentHash = doc.ContentHash
		ch.Source = doc.Name
		chunks[idx] = &ch
	}
	return chunks, nil
}

// embedChunks embeds all chunk texts in one order-preserving call.
func (i *Indexer) embedChunks(ctx context.Context, chunks []*domain.Chunk) error {
	texts := make([]string, len(chunks))
	for idx, ch := range chunks {
		texts[idx] = ch.Text
	}

	embeddings, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks",
			domain.ErrEmbeddingContract, len(embeddings), len(chunks))
	}

	for idx := range chunks {
		chunks[idx].Embedding = embeddings[idx]
	}
	return nil
}

// compensate removes any points written for this document before returning
// the original error, so a failed run never leaves a partial chunk set
// behind. The document stays in indexing state; the caller decides between
// retry and marking it failed.
func (i *Indexer) compensate(ctx context.Context, documentID string, cause error) error {
	if err := i.vectorIndex.DeleteByDocument(ctx, documentID); err != nil {
		i.logger.Error("compensating delete failed",
			"document_id", documentID,
			"error", err)
	}
	return cause
}
