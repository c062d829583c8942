package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DocumentStatus tracks a document through the indexing lifecycle
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusIndexing DocumentStatus = "indexing"
	DocumentStatusReady    DocumentStatus = "ready"
	DocumentStatusFailed   DocumentStatus = "failed"
)

// Document represents an ingested document tracked in the metadata store.
// Status transitions are owned by the indexing pipeline:
// pending -> indexing -> ready, or indexing -> failed.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Content is the normalized document text. The indexing pipeline reads
	// it when a task is delivered, so re-chunking a redelivered task always
	// sees the same bytes the hash was computed from.
	Content string `json:"content,omitempty"`

	ContentHash   string         `json:"content_hash"`
	Status        DocumentStatus `json:"status"`
	FailureReason string         `json:"failure_reason,omitempty"`
	ChunkCount    int            `json:"chunk_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewDocument creates a pending document for the given normalized text.
func NewDocument(name, text string) *Document {
	now := time.Now()
	return &Document{
		ID:          GenerateID(),
		Name:        name,
		Content:     text,
		ContentHash: HashContent(text),
		Status:      DocumentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HashContent returns the hex sha256 of the normalized document text.
// The hash is part of every chunk key, so identical content always maps
// to the same point set in the vector index.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Searchable reports whether the document's chunks may appear in results.
func (d *Document) Searchable() bool {
	return d.Status == DocumentStatusReady
}

// Chunk is a bounded segment of a document, the unit of embedding and
// retrieval. Chunks are derived, never created directly by callers.
type Chunk struct {
	DocumentID  string    `json:"document_id"`
	Seq         int       `json:"seq"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	ContentHash string    `json:"content_hash"`
	Source      string    `json:"source,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Key returns the deterministic chunk key: document id + sequence index.
// Re-indexing the same content upserts the same keys, so redelivered jobs
// overwrite rather than duplicate.
func (c *Chunk) Key() string {
	return fmt.Sprintf("%s-%d", c.DocumentID, c.Seq)
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// RetrievalResult is the ranked evidence for a query. Empty evidence is a
// normal outcome, not an error.
type RetrievalResult struct {
	Query    string        `json:"query"`
	Evidence []ScoredChunk `json:"evidence"`
}

// Empty reports whether retrieval produced no evidence above threshold.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Evidence) == 0
}

// Answer is a generated answer with provenance. Grounded is true only when
// at least one retrieved chunk exceeded the relevance threshold and was
// included in the generation context.
type Answer struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
	Grounded  bool     `json:"grounded"`
}
