package driven

import (
	"context"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

// TaskQueue handles durable background task queuing with at-least-once
// delivery. A dequeued task that is not acknowledged within the visibility
// timeout becomes deliverable again, which models a crashed worker.
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout retrieves the next available task, waiting up to
	// timeout seconds. Redeliverable tasks abandoned past the visibility
	// timeout are claimed before new ones. Returns nil, nil if no task is
	// available.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack indicates task processing failed. The task is redelivered with
	// backoff while it has delivery budget left, otherwise it is moved to
	// the dead-letter destination.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// DeadLetters lists tasks that exhausted their delivery budget.
	DeadLetters(ctx context.Context, limit int) ([]*domain.Task, error)

	// PurgeTasks removes completed/dead tasks older than the given age in
	// seconds. Used by the janitor.
	PurgeTasks(ctx context.Context, olderThan int) (int, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	// PendingCount is the number of tasks waiting to be processed
	PendingCount int64 `json:"pending_count"`

	// ProcessingCount is the number of tasks currently being processed
	ProcessingCount int64 `json:"processing_count"`

	// DeadCount is the number of dead-lettered tasks
	DeadCount int64 `json:"dead_count"`
}
