package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// TaskAction identifies the type of background task
type TaskAction string

const (
	// TaskActionIndex indexes a document's chunks into the vector index
	TaskActionIndex TaskAction = "index_document"
	// TaskActionDelete removes a document's chunks from the vector index
	TaskActionDelete TaskAction = "delete_document"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusDead       TaskStatus = "dead"
)

// Task represents a background indexing job. At-least-once delivery means a
// task may be processed more than once; handlers must be idempotent, keyed
// by (DocumentID, ContentHash).
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Action identifies what kind of task this is
	Action TaskAction `json:"action"`

	// DocumentID is the document this task operates on
	DocumentID string `json:"document_id"`

	// ContentHash pins the task to a specific content revision.
	// A stale hash means the document was re-ingested and this task
	// has been superseded.
	ContentHash string `json:"content_hash,omitempty"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Attempts is how many times this task has been delivered
	Attempts int `json:"attempts"`

	// MaxAttempts is the delivery budget before dead-lettering
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last failure message
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed retries)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(action TaskAction, documentID, contentHash string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Action:       action,
		DocumentID:   documentID,
		ContentHash:  contentHash,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIndexTask creates a task to index a document revision
func NewIndexTask(documentID, contentHash string) *Task {
	return NewTask(TaskActionIndex, documentID, contentHash)
}

// NewDeleteTask creates a task to remove a document's vectors
func NewDeleteTask(documentID string) *Task {
	return NewTask(TaskActionDelete, documentID, "")
}

// CanRetry returns true if the task has delivery budget left
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is due for processing
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state and counts the delivery
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkDead moves the task to the dead-letter state
func (t *Task) MarkDead(err string) {
	now := time.Now()
	t.Status = TaskStatusDead
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for redelivery with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// 1s, 2s, 4s, 8s, ... capped at 5 minutes
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}
