package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuport-labs/docuport-core/internal/chunker"
	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven/mocks"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driving"
)

// TestPipeline_IngestIndexAskRoundTrip drives the full flow: register a
// document, process its index task the way the worker does, then retrieve
// and answer against the result.
func TestPipeline_IngestIndexAskRoundTrip(t *testing.T) {
	ctx := context.Background()

	store := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	queue := mocks.NewMockTaskQueue()
	embedder := mocks.NewMockEmbeddingService()
	generator := mocks.NewMockGenerationService()
	generator.SetResponse("A cat sat.")

	splitter, err := chunker.New(chunker.Config{MaxSize: 20, Overlap: 5})
	require.NoError(t, err)

	ingest := NewIngestService(IngestServiceConfig{DocumentStore: store, TaskQueue: queue})
	indexer := NewIndexer(IndexerConfig{
		DocumentStore: store,
		VectorIndex:   index,
		Embedder:      embedder,
		Chunker:       splitter,
	})
	query := NewQuery(
		NewRetrieval(RetrievalConfig{DocumentStore: store, VectorIndex: index, Embedder: embedder}),
		NewSynthesizer(SynthesizerConfig{Generator: generator}),
	)

	// Ingest queues an index task; the document is pending and unsearchable
	doc, err := ingest.Create(ctx, "animals.txt", "A cat sat. A dog ran.")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPending, doc.Status)

	result, err := query.Retrieve(ctx, "A cat sat. ", driving.RetrieveOptions{})
	require.NoError(t, err)
	assert.True(t, result.Empty(), "pending documents must not be searchable")

	// Process the task as the worker would
	task, err := queue.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.NoError(t, indexer.IndexDocument(ctx, task.DocumentID, task.ContentHash))
	require.NoError(t, queue.Ack(ctx, task.ID))

	indexed, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusReady, indexed.Status)
	assert.Equal(t, 2, indexed.ChunkCount)
	assert.Equal(t, 2, index.PointCount())

	// The first chunk ends at the sentence boundary and is now retrievable
	result, err = query.Retrieve(ctx, "A cat sat. ", driving.RetrieveOptions{Threshold: 0.999})
	require.NoError(t, err)
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, doc.ID+"-0", result.Evidence[0].Key())
	assert.Equal(t, "A cat sat. ", result.Evidence[0].Text)

	answer, err := query.Ask(ctx, "What did the cat do?", driving.RetrieveOptions{Threshold: 0})
	require.NoError(t, err)
	assert.True(t, answer.Grounded)
	assert.NotEmpty(t, answer.Citations)
	assert.Equal(t, "A cat sat.", answer.Text)

	// Deleting cascades through the delete task
	require.NoError(t, ingest.Delete(ctx, doc.ID))
	task, err = queue.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.NoError(t, indexer.RemoveDocument(ctx, task.DocumentID))
	require.NoError(t, queue.Ack(ctx, task.ID))

	assert.Equal(t, 0, index.PointCount())
	result, err = query.Retrieve(ctx, "A cat sat. ", driving.RetrieveOptions{})
	require.NoError(t, err)
	assert.True(t, result.Empty())
}
