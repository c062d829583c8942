package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
)

func testRetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func embeddingHandler(dims int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := embeddingResponse{Object: "list", Model: req.Model}
		for i := range req.Input {
			emb := make([]float32, dims)
			for j := range emb {
				emb[j] = float32(i + j)
			}
			resp.Data = append(resp.Data, struct {
				Object    string    `json:"object"`
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Object: "embedding", Index: i, Embedding: emb})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestOpenAIEmbedding_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedding(EmbeddingConfig{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpenAIEmbedding_Embed(t *testing.T) {
	server := httptest.NewServer(embeddingHandler(1536))
	defer server.Close()

	svc, err := NewOpenAIEmbedding(EmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedding() error = %v", err)
	}
	defer svc.Close()

	embeddings, err := svc.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	for i, emb := range embeddings {
		if len(emb) != 1536 {
			t.Errorf("embedding %d has dimension %d, want 1536", i, len(emb))
		}
	}
}

func TestOpenAIEmbedding_SplitsBatches(t *testing.T) {
	var batchSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		batchSizes = append(batchSizes, len(req.Input))

		resp := embeddingResponse{Object: "list"}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Object    string    `json:"object"`
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: make([]float32, 1536)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding(EmbeddingConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		BatchSize: 2,
		Retry:     testRetryPolicy(),
	})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedding() error = %v", err)
	}

	texts := []string{"a", "b", "c", "d", "e"}
	embeddings, err := svc.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(embeddings) != len(texts) {
		t.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	want := []int{2, 2, 1}
	if len(batchSizes) != len(want) {
		t.Fatalf("expected %d API calls, got %d: %v", len(want), len(batchSizes), batchSizes)
	}
	for i, size := range want {
		if batchSizes[i] != size {
			t.Errorf("batch %d size = %d, want %d", i, batchSizes[i], size)
		}
	}
}

func TestOpenAIEmbedding_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	handler := embeddingHandler(1536)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		handler(w, r)
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding(EmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	_, err := svc.EmbedQuery(context.Background(), "what is retrieval")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestOpenAIEmbedding_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding(EmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	_, err := svc.EmbedQuery(context.Background(), "query")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestOpenAIEmbedding_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(embeddingHandler(8))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding(EmbeddingConfig{
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	_, err := svc.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingContract) {
		t.Errorf("expected ErrEmbeddingContract, got %v", err)
	}
}

func TestOpenAIEmbedding_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding(EmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	_, err := svc.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrEmbeddingContract) {
		t.Errorf("expected ErrEmbeddingContract, got %v", err)
	}
}

func TestOpenAIEmbedding_APIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key","type":"auth","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding(EmbeddingConfig{
		APIKey:  "bad-key",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	_, err := svc.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected error for unauthorized request")
	}
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("auth failure should not map to ErrEmbeddingUnavailable: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("auth failure should not be retried, got %d calls", calls.Load())
	}
}

func TestOpenAIEmbedding_Dimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		svc, err := NewOpenAIEmbedding(EmbeddingConfig{APIKey: "k", Model: tt.model})
		if err != nil {
			t.Fatalf("NewOpenAIEmbedding(%s) error = %v", tt.model, err)
		}
		if svc.Dimensions() != tt.want {
			t.Errorf("Dimensions(%s) = %d, want %d", tt.model, svc.Dimensions(), tt.want)
		}
	}
}
