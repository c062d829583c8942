package driven

import (
	"context"
)

// GenerationService produces a grounded answer from a question and its
// assembled evidence context.
type GenerationService interface {
	// Generate invokes the chat-completion capability with a system prompt
	// and a user prompt, returning the generated text.
	Generate(ctx context.Context, system, prompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the generation service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the generation service
	Close() error
}
