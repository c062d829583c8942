package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
)

const janitorLockName = "janitor"

// Janitor performs periodic maintenance: purging finished task records,
// removing vector points whose document is gone or failed, and failing
// documents stuck in indexing. Passes are guarded by a distributed lock so
// only one instance runs them at a time.
type Janitor struct {
	documentStore driven.DocumentStore
	vectorIndex   driven.VectorIndex
	taskQueue     driven.TaskQueue
	lock          driven.DistributedLock
	interval      time.Duration
	taskRetention time.Duration
	stuckAfter    time.Duration
	logger        *slog.Logger
}

// JanitorConfig holds dependencies for Janitor.
type JanitorConfig struct {
	DocumentStore driven.DocumentStore
	VectorIndex   driven.VectorIndex
	TaskQueue     driven.TaskQueue
	Lock          driven.DistributedLock

	// Interval between maintenance passes
	Interval time.Duration

	// TaskRetention is how long finished task records are kept
	TaskRetention time.Duration

	// StuckAfter is how long a document may stay in indexing before it is
	// failed
	StuckAfter time.Duration

	Logger *slog.Logger
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.TaskRetention <= 0 {
		cfg.TaskRetention = 24 * time.Hour
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = 30 * time.Minute
	}

	return &Janitor{
		documentStore: cfg.DocumentStore,
		vectorIndex:   cfg.VectorIndex,
		taskQueue:     cfg.TaskQueue,
		lock:          cfg.Lock,
		interval:      cfg.Interval,
		taskRetention: cfg.TaskRetention,
		stuckAfter:    cfg.StuckAfter,
		logger:        logger.With("component", "janitor"),
	}
}

// Run executes maintenance passes until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.runLocked(ctx)
		}
	}
}

// runLocked runs one pass if the distributed lock can be taken.
func (j *Janitor) runLocked(ctx context.Context) {
	acquired, err := j.lock.Acquire(ctx, janitorLockName, j.interval)
	if err != nil {
		j.logger.Error("failed to acquire janitor lock", "error", err)
		return
	}
	if !acquired {
		j.logger.Debug("janitor lock held elsewhere, skipping pass")
		return
	}
	defer func() {
		if err := j.lock.Release(ctx, janitorLockName); err != nil {
			j.logger.Warn("failed to release janitor lock", "error", err)
		}
	}()

	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("janitor pass failed", "error", err)
	}
}

// RunOnce performs a single maintenance pass.
func (j *Janitor) RunOnce(ctx context.Context) error {
	start := time.Now()

	purged, err := j.taskQueue.PurgeTasks(ctx, int(j.taskRetention.Seconds()))
	if err != nil {
		j.logger.Error("task purge failed", "error", err)
	}

	orphans, err := j.removeOrphanedVectors(ctx)
	if err != nil {
		j.logger.Error("orphan cleanup failed", "error", err)
	}

	stuck, err := j.failStuckDocuments(ctx)
	if err != nil {
		j.logger.Error("stuck document sweep failed", "error", err)
	}

	j.logger.Info("janitor pass complete",
		"purged_tasks", purged,
		"orphaned_documents", orphans,
		"stuck_documents", stuck,
		"duration", time.Since(start))

	return nil
}

// removeOrphanedVectors deletes points whose document record is gone or
// failed. Failed documents must hold zero points.
func (j *Janitor) removeOrphanedVectors(ctx context.Context) (int, error) {
	ids, err := j.vectorIndex.ListDocumentIDs(ctx)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, id := range ids {
		doc, err := j.documentStore.Get(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Record deleted but the delete task never landed
		case err != nil:
			j.logger.Warn("failed to check document", "document_id", id, "error", err)
			continue
		case doc.Status != domain.DocumentStatusFailed:
			continue
		}

		if err := j.vectorIndex.DeleteByDocument(ctx, id); err != nil {
			j.logger.Warn("failed to remove orphaned points", "document_id", id, "error", err)
			continue
		}
		removed++
		j.logger.Info("removed orphaned points", "document_id", id)
	}

	return removed, nil
}

// failStuckDocuments fails documents that sat in indexing past the
// deadline and removes any points a half-finished run left behind.
func (j *Janitor) failStuckDocuments(ctx context.Context) (int, error) {
	docs, err := j.documentStore.ListStuck(ctx, int(j.stuckAfter.Seconds()))
	if err != nil {
		return 0, err
	}

	var failed int
	for _, doc := range docs {
		if err := j.documentStore.SetFailed(ctx, doc.ID, "indexing timed out"); err != nil {
			j.logger.Warn("failed to mark stuck document", "document_id", doc.ID, "error", err)
			continue
		}
		if err := j.vectorIndex.DeleteByDocument(ctx, doc.ID); err != nil {
			j.logger.Warn("failed to clear stuck document points", "document_id", doc.ID, "error", err)
		}
		failed++
		j.logger.Info("failed stuck document", "document_id", doc.ID)
	}

	return failed, nil
}
