package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven/mocks"
)

func newTestIngest() (*IngestService, *mocks.MockDocumentStore, *mocks.MockTaskQueue) {
	store := mocks.NewMockDocumentStore()
	queue := mocks.NewMockTaskQueue()
	svc := NewIngestService(IngestServiceConfig{
		DocumentStore: store,
		TaskQueue:     queue,
	})
	return svc, store, queue
}

func TestIngest_Create(t *testing.T) {
	svc, store, queue := newTestIngest()
	ctx := context.Background()

	doc, err := svc.Create(ctx, "notes.txt", "Some document text.\r\n")
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, domain.DocumentStatusPending, doc.Status)
	assert.Equal(t, "Some document text.", doc.Content, "content should be normalized")
	assert.Equal(t, domain.HashContent("Some document text."), doc.ContentHash)

	stored, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, stored.ID)

	task := queue.LastEnqueued()
	require.NotNil(t, task, "an index task must be enqueued")
	assert.Equal(t, domain.TaskActionIndex, task.Action)
	assert.Equal(t, doc.ID, task.DocumentID)
	assert.Equal(t, doc.ContentHash, task.ContentHash)
}

func TestIngest_TaskDeliveryBudget(t *testing.T) {
	ctx := context.Background()

	// Default budget when unconfigured
	svc, _, queue := newTestIngest()
	_, err := svc.Create(ctx, "notes.txt", "some text")
	require.NoError(t, err)
	require.NotNil(t, queue.LastEnqueued())
	assert.Equal(t, 3, queue.LastEnqueued().MaxAttempts)

	// Configured budget reaches index and delete tasks
	store := mocks.NewMockDocumentStore()
	queue = mocks.NewMockTaskQueue()
	svc = NewIngestService(IngestServiceConfig{
		DocumentStore:   store,
		TaskQueue:       queue,
		TaskMaxAttempts: 5,
	})

	doc, err := svc.Create(ctx, "notes.txt", "some text")
	require.NoError(t, err)
	assert.Equal(t, 5, queue.LastEnqueued().MaxAttempts)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	task := queue.LastEnqueued()
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskActionDelete, task.Action)
	assert.Equal(t, 5, task.MaxAttempts)
}

func TestIngest_Create_EmptyDocument(t *testing.T) {
	svc, _, queue := newTestIngest()

	for _, text := range []string{"", "   \n\t  "} {
		_, err := svc.Create(context.Background(), "empty.txt", text)
		assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	}
	assert.Equal(t, 0, queue.PendingCount(), "no task for rejected documents")
}

func TestIngest_Reindex_UnchangedContent(t *testing.T) {
	svc, store, queue := newTestIngest()
	ctx := context.Background()

	doc, err := svc.Create(ctx, "notes.txt", "stable content")
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, doc.ID, domain.DocumentStatusReady, 1))

	// Drain the initial index task
	_, _ = queue.DequeueWithTimeout(ctx, 0)

	_, err = svc.Reindex(ctx, doc.ID, "stable content")
	require.NoError(t, err)
	assert.Equal(t, 0, queue.PendingCount(), "unchanged ready content must not requeue")
}

func TestIngest_Reindex_ChangedContent(t *testing.T) {
	svc, store, queue := newTestIngest()
	ctx := context.Background()

	doc, err := svc.Create(ctx, "notes.txt", "version one")
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, doc.ID, domain.DocumentStatusReady, 1))
	_, _ = queue.DequeueWithTimeout(ctx, 0)

	updated, err := svc.Reindex(ctx, doc.ID, "version two")
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentStatusPending, updated.Status)
	assert.Equal(t, domain.HashContent("version two"), updated.ContentHash)

	task := queue.LastEnqueued()
	require.NotNil(t, task)
	assert.Equal(t, updated.ContentHash, task.ContentHash)
}

func TestIngest_Reindex_UnknownDocument(t *testing.T) {
	svc, _, _ := newTestIngest()

	_, err := svc.Reindex(context.Background(), "missing", "text")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngest_Delete(t *testing.T) {
	svc, store, queue := newTestIngest()
	ctx := context.Background()

	doc, err := svc.Create(ctx, "notes.txt", "to be deleted")
	require.NoError(t, err)
	_, _ = queue.DequeueWithTimeout(ctx, 0)

	require.NoError(t, svc.Delete(ctx, doc.ID))

	_, err = store.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	task := queue.LastEnqueued()
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskActionDelete, task.Action)
	assert.Equal(t, doc.ID, task.DocumentID)
}

func TestIngest_Delete_UnknownIsNoOp(t *testing.T) {
	svc, _, queue := newTestIngest()

	err := svc.Delete(context.Background(), "does-not-exist")
	assert.NoError(t, err)
	assert.Equal(t, 0, queue.PendingCount())
}
