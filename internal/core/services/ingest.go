package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuport-labs/docuport-core/internal/chunker"
	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.IngestService = (*IngestService)(nil)

// IngestService handles the document lifecycle: registration, re-ingestion
// and deletion. Indexing itself is asynchronous; Create returns as soon as
// the document is saved and an index task is queued.
type IngestService struct {
	documentStore   driven.DocumentStore
	taskQueue       driven.TaskQueue
	taskMaxAttempts int
	logger          *slog.Logger
}

// IngestServiceConfig holds dependencies for IngestService.
type IngestServiceConfig struct {
	DocumentStore driven.DocumentStore
	TaskQueue     driven.TaskQueue

	// TaskMaxAttempts is the delivery budget stamped on enqueued tasks
	TaskMaxAttempts int

	Logger *slog.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(cfg IngestServiceConfig) *IngestService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TaskMaxAttempts <= 0 {
		cfg.TaskMaxAttempts = 3
	}

	return &IngestService{
		documentStore:   cfg.DocumentStore,
		taskQueue:       cfg.TaskQueue,
		taskMaxAttempts: cfg.TaskMaxAttempts,
		logger:          logger.With("component", "ingest"),
	}
}

// Create registers a new document and enqueues it for indexing.
func (s *IngestService) Create(ctx context.Context, name, text string) (*domain.Document, error) {
	normalized := chunker.Normalize(text)
	if normalized == "" {
		return nil, domain.ErrEmptyDocument
	}

	doc := domain.NewDocument(name, normalized)
	if err := s.documentStore.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	task := domain.NewIndexTask(doc.ID, doc.ContentHash)
	task.MaxAttempts = s.taskMaxAttempts
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue index task: %w", err)
	}

	s.logger.Info("document created",
		"document_id", doc.ID,
		"name", doc.Name,
		"task_id", task.ID)

	return doc, nil
}

// Reindex replaces a document's content and enqueues a fresh indexing job.
// Unchanged content is a no-op: the index already holds these chunks.
func (s *IngestService) Reindex(ctx context.Context, id, text string) (*domain.Document, error) {
	doc, err := s.documentStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	normalized := chunker.Normalize(text)
	if normalized == "" {
		return nil, domain.ErrEmptyDocument
	}

	newHash := domain.HashContent(normalized)
	if newHash == doc.ContentHash && doc.Status == domain.DocumentStatusReady {
		s.logger.Info("content unchanged, skipping reindex", "document_id", id)
		return doc, nil
	}

	doc.Content = normalized
	doc.ContentHash = newHash
	doc.Status = domain.DocumentStatusPending
	doc.FailureReason = ""
	doc.UpdatedAt = time.Now()
	if err := s.documentStore.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	task := domain.NewIndexTask(doc.ID, doc.ContentHash)
	task.MaxAttempts = s.taskMaxAttempts
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue index task: %w", err)
	}

	s.logger.Info("document reindex queued",
		"document_id", doc.ID,
		"content_hash", doc.ContentHash,
		"task_id", task.ID)

	return doc, nil
}

// Get retrieves a document by ID.
func (s *IngestService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.documentStore.Get(ctx, id)
}

// List retrieves documents, newest first.
func (s *IngestService) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.documentStore.List(ctx, limit, offset)
}

// Delete removes the document record and queues removal of its vectors.
// Deleting an unknown id is a no-op.
func (s *IngestService) Delete(ctx context.Context, id string) error {
	if err := s.documentStore.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	// Vectors are removed asynchronously; the retrieval scope already
	// excludes the document because its metadata row is gone
	task := domain.NewDeleteTask(id)
	task.MaxAttempts = s.taskMaxAttempts
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue delete task: %w", err)
	}

	s.logger.Info("document deleted", "document_id", id, "task_id", task.ID)
	return nil
}
