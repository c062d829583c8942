package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven/mocks"
)

func evidenceChunk(docID string, seq int, text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			DocumentID: docID,
			Seq:        seq,
			Text:       text,
			Source:     docID + ".txt",
		},
		Score: score,
	}
}

func TestSynthesizer_GroundedAnswer(t *testing.T) {
	generator := mocks.NewMockGenerationService()
	generator.SetResponse("Paris is the capital of France.")

	s := NewSynthesizer(SynthesizerConfig{Generator: generator})

	result := &domain.RetrievalResult{
		Query: "capital of France?",
		Evidence: []domain.ScoredChunk{
			evidenceChunk("doc-a", 0, "France's capital city is Paris.", 0.95),
			evidenceChunk("doc-b", 2, "Paris lies on the Seine.", 0.80),
		},
	}

	answer, err := s.Synthesize(context.Background(), "capital of France?", result)
	require.NoError(t, err)

	assert.True(t, answer.Grounded)
	assert.Equal(t, "Paris is the capital of France.", answer.Text)
	assert.Equal(t, []string{"doc-a-0", "doc-b-2"}, answer.Citations)
	assert.Equal(t, 1, generator.Calls())
}

func TestSynthesizer_PromptShape(t *testing.T) {
	generator := mocks.NewMockGenerationService()
	generator.SetResponse("ok")

	s := NewSynthesizer(SynthesizerConfig{Generator: generator})

	result := &domain.RetrievalResult{
		Evidence: []domain.ScoredChunk{
			evidenceChunk("doc-a", 0, "evidence text", 0.9),
		},
	}

	_, err := s.Synthesize(context.Background(), "what is it?", result)
	require.NoError(t, err)

	prompt := generator.LastPrompt()
	assert.True(t, strings.HasPrefix(prompt, "Context:\n"))
	assert.Contains(t, prompt, "Document 1 (from doc-a.txt):\nevidence text")
	assert.Contains(t, prompt, "Question: what is it?")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
	assert.Contains(t, generator.LastSystem(), "provided context")
}

func TestSynthesizer_EmptyResultSkipsGeneration(t *testing.T) {
	generator := mocks.NewMockGenerationService()

	s := NewSynthesizer(SynthesizerConfig{Generator: generator})

	answer, err := s.Synthesize(context.Background(), "anything?", &domain.RetrievalResult{Query: "anything?"})
	require.NoError(t, err)

	assert.False(t, answer.Grounded)
	assert.Empty(t, answer.Citations)
	assert.Contains(t, answer.Text, "don't have any relevant documents")
	assert.Equal(t, 0, generator.Calls(), "generator must not run without evidence")
}

func TestSynthesizer_BudgetStopsAtFirstOversizedChunk(t *testing.T) {
	generator := mocks.NewMockGenerationService()
	generator.SetResponse("ok")

	// Budget fits roughly one small chunk. Packing stops at the large
	// second chunk: it is never truncated, and the small third chunk must
	// not slip in behind it despite fitting on its own.
	s := NewSynthesizer(SynthesizerConfig{Generator: generator, TokenBudget: 30})

	result := &domain.RetrievalResult{
		Evidence: []domain.ScoredChunk{
			evidenceChunk("doc-a", 0, "short top chunk", 0.9),
			evidenceChunk("doc-b", 0, strings.Repeat("verbose filler ", 50), 0.8),
			evidenceChunk("doc-c", 0, "tail chunk", 0.7),
		},
	}

	answer, err := s.Synthesize(context.Background(), "q?", result)
	require.NoError(t, err)

	assert.Equal(t, []string{"doc-a-0"}, answer.Citations)
	assert.NotContains(t, generator.LastPrompt(), "verbose filler")
	assert.NotContains(t, generator.LastPrompt(), "tail chunk")
}

func TestSynthesizer_AllChunksOverBudget(t *testing.T) {
	generator := mocks.NewMockGenerationService()

	s := NewSynthesizer(SynthesizerConfig{Generator: generator, TokenBudget: 5})

	result := &domain.RetrievalResult{
		Evidence: []domain.ScoredChunk{
			evidenceChunk("doc-a", 0, strings.Repeat("too big to ever fit ", 10), 0.9),
		},
	}

	answer, err := s.Synthesize(context.Background(), "q?", result)
	require.NoError(t, err)

	assert.False(t, answer.Grounded)
	assert.Equal(t, 0, generator.Calls())
}

func TestSynthesizer_GenerationFailure(t *testing.T) {
	generator := mocks.NewMockGenerationService()
	generator.SetFailNext(true)

	s := NewSynthesizer(SynthesizerConfig{Generator: generator})

	result := &domain.RetrievalResult{
		Evidence: []domain.ScoredChunk{evidenceChunk("doc-a", 0, "some evidence", 0.9)},
	}

	_, err := s.Synthesize(context.Background(), "q?", result)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
}
