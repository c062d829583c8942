package mocks

import (
	"context"
	"sync"
	"time"
)

// MockLock is an in-memory mock implementation of DistributedLock for
// testing.
type MockLock struct {
	mu   sync.Mutex
	held map[string]bool
	deny bool
}

// NewMockLock creates a new MockLock
func NewMockLock() *MockLock {
	return &MockLock{
		held: make(map[string]bool),
	}
}

func (m *MockLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deny || m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *MockLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

func (m *MockLock) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

func (m *MockLock) SetDeny(deny bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deny = deny
}

func (m *MockLock) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[name]
}
