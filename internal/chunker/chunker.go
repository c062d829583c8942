package chunker

import (
	"fmt"
	"strings"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

// Config configures the chunker behavior.
type Config struct {
	// MaxSize is the maximum characters per chunk
	MaxSize int

	// Overlap is the character overlap between consecutive chunks.
	// Must satisfy 0 <= Overlap < MaxSize.
	Overlap int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize: 1000,
		Overlap: 200,
	}
}

// Chunker splits normalized document text into overlapping, size-bounded
// segments with stable byte-offset spans. Splitting is deterministic:
// identical input and config always produce the identical chunk sequence,
// which re-indexing relies on for idempotent upserts.
type Chunker struct {
	config Config
}

// New creates a chunker, validating the config.
func New(config Config) (*Chunker, error) {
	if config.MaxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", domain.ErrInvalidInput, config.MaxSize)
	}
	if config.Overlap < 0 || config.Overlap >= config.MaxSize {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 <= overlap < max size, got %d", domain.ErrInvalidInput, config.Overlap)
	}
	return &Chunker{config: config}, nil
}

// Normalize canonicalizes line endings and trims surrounding whitespace.
// All chunk offsets refer to the normalized text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// Split normalizes text and cuts it into chunk drafts with contiguous
// sequence indexes. Empty text returns domain.ErrEmptyDocument; text that
// fits in one chunk returns exactly one.
func (c *Chunker) Split(text string) ([]domain.Chunk, error) {
	content := Normalize(text)
	if content == "" {
		return nil, domain.ErrEmptyDocument
	}

	if len(content) <= c.config.MaxSize {
		return []domain.Chunk{{
			Seq:         0,
			Text:        content,
			StartOffset: 0,
			EndOffset:   len(content),
		}}, nil
	}

	var chunks []domain.Chunk
	start := 0

	for start < len(content) {
		end := start + c.config.MaxSize
		if end > len(content) {
			end = len(content)
		}

		// Prefer a semantic boundary inside the window
		if end < len(content) {
			if breakPoint := findBreakPoint(content, start, end); breakPoint > start {
				end = breakPoint
			}
		}

		chunks = append(chunks, domain.Chunk{
			Seq:         len(chunks),
			Text:        content[start:end],
			StartOffset: start,
			EndOffset:   end,
		})

		if end >= len(content) {
			break
		}

		// Next chunk re-reads the last Overlap characters
		nextStart := end - c.config.Overlap
		if nextStart <= start {
			nextStart = start + 1
		}
		start = nextStart
	}

	return chunks, nil
}

// boundarySearchWindow bounds how far back from the size limit the chunker
// looks for a paragraph or sentence break.
const boundarySearchWindow = 100

// findBreakPoint finds a good break point for chunking: paragraph, then
// sentence, then word boundary, falling back to the hard cut at maxEnd.
func findBreakPoint(content string, start, maxEnd int) int {
	searchStart := maxEnd - boundarySearchWindow
	if searchStart < start {
		searchStart = start
	}

	searchContent := content[searchStart:maxEnd]

	// Paragraph boundary (double newline)
	if idx := strings.LastIndex(searchContent, "\n\n"); idx != -1 {
		return searchStart + idx + 2
	}

	// Sentence boundary
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	bestIdx := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(searchContent, ender); idx != -1 {
			endPos := idx + len(ender)
			if endPos > bestIdx {
				bestIdx = endPos
			}
		}
	}
	if bestIdx > 0 {
		return searchStart + bestIdx
	}

	// Word boundary
	if idx := strings.LastIndex(searchContent, " "); idx != -1 {
		return searchStart + idx + 1
	}

	return maxEnd
}
