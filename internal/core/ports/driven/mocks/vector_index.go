package mocks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
)

// MockVectorIndex is an in-memory mock implementation of VectorIndex for
// testing. Points are keyed by chunk key, so re-upserting overwrites just
// like the real index.
type MockVectorIndex struct {
	mu       sync.RWMutex
	points   map[string]*domain.Chunk
	failNext bool
	upserts  int
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		points: make(map[string]*domain.Chunk),
	}
}

func (m *MockVectorIndex) EnsureCollection(ctx context.Context) error {
	return nil
}

func (m *MockVectorIndex) Upsert(ctx context.Context, chunks []*domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("vector index write failed: %w", domain.ErrTransientUpstream)
	}
	for _, ch := range chunks {
		cp := *ch
		m.points[ch.Key()] = &cp
	}
	return nil
}

func (m *MockVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ch := range m.points {
		if ch.DocumentID == documentID {
			delete(m.points, key)
		}
	}
	return nil
}

func (m *MockVectorIndex) Search(ctx context.Context, vector []float32, filter driven.SearchFilter, topK int, threshold float64) ([]domain.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var allowed map[string]bool
	if len(filter.DocumentIDs) > 0 {
		allowed = make(map[string]bool, len(filter.DocumentIDs))
		for _, id := range filter.DocumentIDs {
			allowed[id] = true
		}
	}

	var results []domain.ScoredChunk
	for _, ch := range m.points {
		if allowed != nil && !allowed[ch.DocumentID] {
			continue
		}
		score := cosineSimilarity(vector, ch.Embedding)
		if score < threshold {
			continue
		}
		results = append(results, domain.ScoredChunk{Chunk: *ch, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].Seq < results[j].Seq
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorIndex) ListDocumentIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, ch := range m.points {
		if !seen[ch.DocumentID] {
			seen[ch.DocumentID] = true
			ids = append(ids, ch.DocumentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Helper methods for testing

func (m *MockVectorIndex) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

func (m *MockVectorIndex) PointCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

func (m *MockVectorIndex) Point(key string) (*domain.Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.points[key]
	return ch, ok
}

func (m *MockVectorIndex) Upserts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}
