package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docuport-labs/docuport-core/internal/core/domain"
	"github.com/docuport-labs/docuport-core/internal/core/ports/driven"
)

func newTestIndex(t *testing.T, handler http.Handler) *Index {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	idx, err := NewIndex(Config{
		URL:        server.URL,
		Collection: "documents",
		Dimension:  4,
	})
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	return idx
}

func TestNewIndex_Validation(t *testing.T) {
	if _, err := NewIndex(Config{Collection: "c", Dimension: 4}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing URL: expected ErrInvalidInput, got %v", err)
	}
	if _, err := NewIndex(Config{URL: "http://localhost:6333"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing dimension: expected ErrInvalidInput, got %v", err)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	a := pointID("doc-1-0")
	b := pointID("doc-1-0")
	c := pointID("doc-1-1")

	if a != b {
		t.Errorf("same key produced different ids: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different keys produced the same id: %s", a)
	}
}

func TestEnsureCollection(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"result":true,"status":"ok"}`)
	}))

	if err := idx.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	if gotPath != "PUT /collections/documents" {
		t.Errorf("unexpected request: %s", gotPath)
	}

	vectors := gotBody["vectors"].(map[string]any)
	if vectors["distance"] != "Cosine" {
		t.Errorf("distance = %v, want Cosine", vectors["distance"])
	}
	if vectors["size"].(float64) != 4 {
		t.Errorf("size = %v, want 4", vectors["size"])
	}
}

func TestUpsert_SendsDeterministicPoints(t *testing.T) {
	var gotBody struct {
		Points []upsertPoint `json:"points"`
	}
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"result":{"status":"completed"},"status":"ok"}`)
	}))

	chunks := []*domain.Chunk{
		{DocumentID: "doc-1", Seq: 0, Text: "first", ContentHash: "h1", Embedding: []float32{1, 0, 0, 0}},
		{DocumentID: "doc-1", Seq: 1, Text: "second", ContentHash: "h1", Embedding: []float32{0, 1, 0, 0}},
	}
	if err := idx.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if len(gotBody.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(gotBody.Points))
	}
	if gotBody.Points[0].ID != pointID("doc-1-0") {
		t.Errorf("point 0 id = %s, want %s", gotBody.Points[0].ID, pointID("doc-1-0"))
	}
	if gotBody.Points[0].Payload.DocumentID != "doc-1" || gotBody.Points[0].Payload.Seq != 0 {
		t.Errorf("unexpected payload: %+v", gotBody.Points[0].Payload)
	}
	if gotBody.Points[1].Payload.Text != "second" {
		t.Errorf("payload text = %q", gotBody.Points[1].Payload.Text)
	}
}

func TestUpsert_RejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for a bad dimension")
	}))

	err := idx.Upsert(context.Background(), []*domain.Chunk{
		{DocumentID: "doc-1", Seq: 0, Embedding: []float32{1, 2}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteByDocument_SendsFilter(t *testing.T) {
	var gotBody map[string]any
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/documents/points/delete" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"result":{"status":"completed"},"status":"ok"}`)
	}))

	if err := idx.DeleteByDocument(context.Background(), "doc-9"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}

	raw, _ := json.Marshal(gotBody)
	var parsed struct {
		Filter searchFilter `json:"filter"`
	}
	_ = json.Unmarshal(raw, &parsed)
	if len(parsed.Filter.Must) != 1 || parsed.Filter.Must[0].Key != "document_id" {
		t.Fatalf("unexpected filter: %+v", parsed.Filter)
	}
	if len(parsed.Filter.Must[0].Match.Any) != 1 || parsed.Filter.Must[0].Match.Any[0] != "doc-9" {
		t.Errorf("unexpected match: %+v", parsed.Filter.Must[0].Match)
	}
}

func TestSearch_ParsesResults(t *testing.T) {
	var gotReq map[string]any
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"result":[
			{"score":0.92,"payload":{"document_id":"doc-1","seq":2,"content_hash":"h","text":"relevant text","source":"notes.txt"}},
			{"score":0.71,"payload":{"document_id":"doc-2","seq":0,"content_hash":"g","text":"less relevant"}}
		],"status":"ok"}`)
	}))

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, driven.SearchFilter{DocumentIDs: []string{"doc-1", "doc-2"}}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Score != 0.92 || results[0].Key() != "doc-1-2" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[0].Source != "notes.txt" {
		t.Errorf("source = %q", results[0].Source)
	}

	if gotReq["score_threshold"].(float64) != 0.5 {
		t.Errorf("score_threshold = %v", gotReq["score_threshold"])
	}
	if gotReq["limit"].(float64) != 5 {
		t.Errorf("limit = %v", gotReq["limit"])
	}
	if _, ok := gotReq["filter"]; !ok {
		t.Error("expected a document filter in the request")
	}
}

func TestSearch_NoFilterWhenUnscoped(t *testing.T) {
	var gotReq map[string]any
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"result":[],"status":"ok"}`)
	}))

	_, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, driven.SearchFilter{}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, ok := gotReq["filter"]; ok {
		t.Error("unscoped search must not send a filter")
	}
}

func TestListDocumentIDs_Scrolls(t *testing.T) {
	var calls int
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"result":{"points":[
				{"payload":{"document_id":"doc-1"}},
				{"payload":{"document_id":"doc-1"}},
				{"payload":{"document_id":"doc-2"}}
			],"next_page_offset":"cursor-1"},"status":"ok"}`)
			return
		}
		fmt.Fprint(w, `{"result":{"points":[
			{"payload":{"document_id":"doc-3"}}
		],"next_page_offset":null},"status":"ok"}`)
	}))

	ids, err := idx.ListDocumentIDs(context.Background())
	if err != nil {
		t.Fatalf("ListDocumentIDs() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 scroll calls, got %d", calls)
	}

	want := []string{"doc-1", "doc-2", "doc-3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := idx.EnsureCollection(context.Background())
	if !errors.Is(err, domain.ErrTransientUpstream) {
		t.Errorf("expected ErrTransientUpstream, got %v", err)
	}
}

func TestClientErrorIsNotTransient(t *testing.T) {
	idx := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":{"error":"bad vector size"}}`)
	}))

	err := idx.Upsert(context.Background(), []*domain.Chunk{
		{DocumentID: "doc-1", Seq: 0, Embedding: []float32{1, 0, 0, 0}},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, domain.ErrTransientUpstream) {
		t.Errorf("client error must not be transient: %v", err)
	}
}
