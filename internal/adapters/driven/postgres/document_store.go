package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save creates or updates a document
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, name, content, content_hash, status, failure_reason, chunk_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			chunk_count = EXCLUDED.chunk_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.Name,
		doc.Content,
		doc.ContentHash,
		string(doc.Status),
		doc.FailureReason,
		doc.ChunkCount,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `
		SELECT id, name, content, content_hash, status, failure_reason, chunk_count, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// List retrieves documents ordered by creation time, newest first
func (s *DocumentStore) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	// Listings skip the content column; callers wanting text use Get
	query := `
		SELECT id, name, '', content_hash, status, failure_reason, chunk_count, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListReadyIDs returns the ids of all documents in ready state
func (s *DocumentStore) ListReadyIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE status = $1 ORDER BY id`,
		string(domain.DocumentStatusReady),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStuck returns documents stuck in indexing longer than maxAgeSeconds
func (s *DocumentStore) ListStuck(ctx context.Context, maxAgeSeconds int) ([]*domain.Document, error) {
	query := `
		SELECT id, name, '', content_hash, status, failure_reason, chunk_count, created_at, updated_at
		FROM documents
		WHERE status = $1 AND updated_at < $2
	`

	cutoff := time.Now().Add(-time.Duration(maxAgeSeconds) * time.Second)
	rows, err := s.db.QueryContext(ctx, query, string(domain.DocumentStatusIndexing), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetStatus updates the document status and chunk count
func (s *DocumentStore) SetStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, failure_reason = '', updated_at = now() WHERE id = $3`,
		string(status), chunkCount, id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetFailed marks the document failed with a reason
func (s *DocumentStore) SetFailed(ctx context.Context, id string, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, failure_reason = $2, updated_at = now() WHERE id = $3`,
		string(domain.DocumentStatusFailed), reason, id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete deletes a document record
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Count returns total document count
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Content,
		&doc.ContentHash,
		&status,
		&doc.FailureReason,
		&doc.ChunkCount,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
