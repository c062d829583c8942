package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDocument indicates a document with no extractable text.
	// Surfaced as an ingest rejection, never as a pipeline failure.
	ErrEmptyDocument = errors.New("empty document")

	// ErrTransientUpstream indicates a retryable upstream condition
	// (rate limit, timeout). Callers retry with backoff.
	ErrTransientUpstream = errors.New("transient upstream error")

	// ErrEmbeddingUnavailable indicates the embedding service failed
	// after exhausting the retry budget.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingContract indicates the embedding service violated its
	// contract (wrong dimensionality, misaligned batch). Never retried.
	ErrEmbeddingContract = errors.New("embedding contract violation")

	// ErrGenerationUnavailable indicates the generation service failed
	// after exhausting the retry budget.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrMaxRetriesExceeded indicates a task exhausted its delivery attempts
	// and was dead-lettered.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrDocumentNotReady indicates a query scoped to a document that has
	// not finished indexing.
	ErrDocumentNotReady = errors.New("document not ready")
)
