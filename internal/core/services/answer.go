package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
)

const synthesizerSystemPrompt = `You are a helpful AI assistant that answers questions based on the provided context documents.

Instructions:
- Use only the information from the provided context to answer questions
- If you cannot find the answer in the context, say "I don't have enough information to answer this question based on the provided documents."
- Elaborate the answer in detail.`

// insufficientAnswer is returned when retrieval produced no evidence.
// The generator is never invoked for it.
const insufficientAnswer = "I don't have any relevant documents to answer your question. " +
	"Please make sure you have uploaded documents that contain information related to your query."

// Synthesizer turns a question plus retrieved evidence into a grounded
// answer. Evidence is packed into the prompt in rank order under a token
// budget; packing stops at the first chunk that would not fit whole, so a
// chunk is never truncated and a lower-ranked chunk never displaces a
// higher-ranked one.
type Synthesizer struct {
	generator   driven.GenerationService
	tokenBudget int
	logger      *slog.Logger
}

// SynthesizerConfig holds dependencies for Synthesizer.
type SynthesizerConfig struct {
	Generator driven.GenerationService

	// TokenBudget caps the evidence context passed to generation
	TokenBudget int

	Logger *slog.Logger
}

// NewSynthesizer creates a new answer synthesizer.
func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 3000
	}

	return &Synthesizer{
		generator:   cfg.Generator,
		tokenBudget: cfg.TokenBudget,
		logger:      logger.With("component", "synthesizer"),
	}
}

// Synthesize produces an answer for the question from the retrieval result.
// An empty result short-circuits to a fixed insufficient-information answer
// with Grounded=false and no generation call.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, result *domain.RetrievalResult) (*domain.Answer, error) {
	if result.Empty() {
		return &domain.Answer{
			Text:     insufficientAnswer,
			Grounded: false,
		}, nil
	}

	context, citations := s.assembleContext(result.Evidence)
	if len(citations) == 0 {
		// The top-ranked chunk alone exceeded the budget
		return &domain.Answer{
			Text:     insufficientAnswer,
			Grounded: false,
		}, nil
	}

	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s\n\nAnswer:", context, question)

	text, err := s.generator.Generate(ctx, synthesizerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	s.logger.Info("answer synthesized",
		"citations", len(citations),
		"answer_len", len(text))

	return &domain.Answer{
		Text:      strings.TrimSpace(text),
		Citations: citations,
		Grounded:  true,
	}, nil
}

// assembleContext packs evidence into a context block, best-ranked first,
// stopping at the first chunk that would exceed the token budget. Citations
// list exactly the chunk keys that made it in.
func (s *Synthesizer) assembleContext(evidence []domain.ScoredChunk) (string, []string) {
	var b strings.Builder
	var citations []string
	used := 0

	for i, ev := range evidence {
		header := fmt.Sprintf("Document %d (from %s):\n", i+1, ev.Source)
		cost := estimateTokens(header + ev.Text + "\n\n")
		if used+cost > s.tokenBudget {
			break
		}

		b.WriteString(header)
		b.WriteString(ev.Text)
		b.WriteString("\n\n")
		used += cost
		citations = append(citations, ev.Key())
	}

	return b.String(), citations
}

// estimateTokens approximates token count as one per four characters.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
