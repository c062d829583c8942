package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
)

// Ensure Index implements VectorIndex
var _ driven.VectorIndex = (*Index)(nil)

// Config configures the Qdrant REST client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// Index is a REST client to Qdrant. Points are keyed deterministically by
// chunk key, so re-upserting the same (document, seq) pair overwrites the
// existing point instead of duplicating it.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// NewIndex creates a new Qdrant-backed vector index client.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant URL is required", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: qdrant dimension must be positive, got %d", domain.ErrInvalidInput, cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// pointID derives a stable UUID for a chunk key. Qdrant only accepts UUIDs
// or unsigned integers as point ids, so the human-readable key lives in the
// payload and the id is a UUIDv5 of it.
func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

type pointPayload struct {
	DocumentID  string `json:"document_id"`
	Seq         int    `json:"seq"`
	ContentHash string `json:"content_hash"`
	Text        string `json:"text"`
	Source      string `json:"source,omitempty"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

type upsertPoint struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload pointPayload `json:"payload"`
}

type fieldMatch struct {
	Key   string `json:"key"`
	Match struct {
		Any []string `json:"any"`
	} `json:"match"`
}

type searchFilter struct {
	Must []fieldMatch `json:"must,omitempty"`
}

// EnsureCollection creates the collection if it does not exist. Qdrant
// returns 200 for an existing collection with the same schema.
func (i *Index) EnsureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     i.dimension,
			"distance": "Cosine",
		},
	}
	return i.putJSON(ctx, fmt.Sprintf("/collections/%s", i.collection), body, nil)
}

// Upsert writes chunk points, waiting for the write to be durable.
func (i *Index) Upsert(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]upsertPoint, len(chunks))
	for idx, ch := range chunks {
		if len(ch.Embedding) != i.dimension {
			return fmt.Errorf("%w: chunk %s has embedding dimension %d, collection expects %d",
				domain.ErrInvalidInput, ch.Key(), len(ch.Embedding), i.dimension)
		}
		points[idx] = upsertPoint{
			ID:     pointID(ch.Key()),
			Vector: ch.Embedding,
			Payload: pointPayload{
				DocumentID:  ch.DocumentID,
				Seq:         ch.Seq,
				ContentHash: ch.ContentHash,
				Text:        ch.Text,
				Source:      ch.Source,
				StartOffset: ch.StartOffset,
				EndOffset:   ch.EndOffset,
			},
		}
	}

	body := map[string]any{"points": points}
	return i.putJSON(ctx, fmt.Sprintf("/collections/%s/points?wait=true", i.collection), body, nil)
}

// DeleteByDocument removes every point belonging to a document.
// Deleting an absent document succeeds with no effect.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	filter := searchFilter{Must: []fieldMatch{documentFilter([]string{documentID})}}
	body := map[string]any{"filter": filter}
	return i.postJSON(ctx, fmt.Sprintf("/collections/%s/points/delete?wait=true", i.collection), body, nil)
}

// Search runs a cosine similarity query, with the filter applied before
// ranking and results below threshold discarded server-side.
func (i *Index) Search(ctx context.Context, vector []float32, filter driven.SearchFilter, topK int, threshold float64) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if threshold > 0 {
		req["score_threshold"] = threshold
	}
	if len(filter.DocumentIDs) > 0 {
		req["filter"] = searchFilter{Must: []fieldMatch{documentFilter(filter.DocumentIDs)}}
	}

	var resp struct {
		Result []struct {
			Score   float64      `json:"score"`
			Payload pointPayload `json:"payload"`
		} `json:"result"`
	}
	if err := i.postJSON(ctx, fmt.Sprintf("/collections/%s/points/search", i.collection), req, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.ScoredChunk{
			Chunk: domain.Chunk{
				DocumentID:  r.Payload.DocumentID,
				Seq:         r.Payload.Seq,
				ContentHash: r.Payload.ContentHash,
				Text:        r.Payload.Text,
				Source:      r.Payload.Source,
				StartOffset: r.Payload.StartOffset,
				EndOffset:   r.Payload.EndOffset,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// ListDocumentIDs scrolls the whole collection and collects the distinct
// document ids present in point payloads.
func (i *Index) ListDocumentIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	var offset any

	for {
		req := map[string]any{
			"limit":        256,
			"with_payload": []string{"document_id"},
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points []struct {
					Payload pointPayload `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := i.postJSON(ctx, fmt.Sprintf("/collections/%s/points/scroll", i.collection), req, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Result.Points {
			id := p.Payload.DocumentID
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}

		if resp.Result.NextPageOffset == nil {
			return ids, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// HealthCheck verifies the collection is reachable.
func (i *Index) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url+fmt.Sprintf("/collections/%s", i.collection), nil)
	if err != nil {
		return err
	}
	i.setHeaders(req)

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant unreachable: %v", domain.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant collection check returned status %d", resp.StatusCode)
	}
	return nil
}

func documentFilter(ids []string) fieldMatch {
	fm := fieldMatch{Key: "document_id"}
	fm.Match.Any = ids
	return fm
}

func (i *Index) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}
}

func (i *Index) putJSON(ctx context.Context, path string, body, out any) error {
	return i.doJSON(ctx, http.MethodPut, path, body, out)
}

func (i *Index) postJSON(ctx context.Context, path string, body, out any) error {
	return i.doJSON(ctx, http.MethodPost, path, body, out)
}

func (i *Index) doJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, i.url+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	i.setHeaders(req)

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant request failed: %v", domain.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: qdrant %s %s returned status %d", domain.ErrTransientUpstream, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, respBody)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse qdrant response: %w", err)
		}
	}
	return nil
}
