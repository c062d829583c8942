package mocks

import (
	"context"
	"fmt"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

// MockGenerationService is a mock implementation of GenerationService for testing
type MockGenerationService struct {
	response   string
	failNext   bool
	calls      int
	lastSystem string
	lastPrompt string
}

// NewMockGenerationService creates a new MockGenerationService
func NewMockGenerationService() *MockGenerationService {
	return &MockGenerationService{
		response: "mock answer",
	}
}

func (m *MockGenerationService) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.calls++
	m.lastSystem = system
	m.lastPrompt = prompt
	if m.failNext {
		m.failNext = false
		return "", fmt.Errorf("generation backend down: %w", domain.ErrGenerationUnavailable)
	}
	return m.response, nil
}

func (m *MockGenerationService) Model() string {
	return "mock-chat-model"
}

func (m *MockGenerationService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockGenerationService) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockGenerationService) SetResponse(response string) {
	m.response = response
}

func (m *MockGenerationService) SetFailNext(fail bool) {
	m.failNext = fail
}

func (m *MockGenerationService) Calls() int {
	return m.calls
}

func (m *MockGenerationService) LastSystem() string {
	return m.lastSystem
}

func (m *MockGenerationService) LastPrompt() string {
	return m.lastPrompt
}
