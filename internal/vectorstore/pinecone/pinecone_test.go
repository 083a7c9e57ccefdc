package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

// fakeIndex simulates the Pinecone control and data planes in one server.
type fakeIndex struct {
	mu          sync.Mutex
	created     bool
	creates     int
	describe404 int // remaining describe calls to answer 404 regardless of state
	namespaces  map[string][]vector
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{namespaces: make(map[string][]vector)}
}

func (f *fakeIndex) handler(t *testing.T, selfURL *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") == "" {
			t.Error("missing Api-Key header")
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/indexes/test-index":
			if f.describe404 > 0 {
				f.describe404--
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if !f.created {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"name": "test-index", "host": *selfURL})
		case r.Method == http.MethodPost && r.URL.Path == "/indexes":
			f.creates++
			if f.created {
				w.WriteHeader(http.StatusConflict)
				return
			}
			f.created = true
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"name": "test-index", "host": *selfURL})
		case r.Method == http.MethodPost && r.URL.Path == "/vectors/upsert":
			var req upsertRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.namespaces[req.Namespace] = append(f.namespaces[req.Namespace], req.Vectors...)
			_ = json.NewEncoder(w).Encode(map[string]int{"upsertedCount": len(req.Vectors)})
		case r.Method == http.MethodPost && r.URL.Path == "/query":
			var req queryRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			matches := []map[string]any{}
			for i, v := range f.namespaces[req.Namespace] {
				if i >= req.TopK {
					break
				}
				matches = append(matches, map[string]any{
					"id": v.ID, "score": 1.0 - float64(i)*0.1, "metadata": v.Metadata,
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"matches": matches})
		case r.Method == http.MethodPost && r.URL.Path == "/describe_index_stats":
			namespaces := map[string]map[string]int{}
			for name, vecs := range f.namespaces {
				namespaces[name] = map[string]int{"vectorCount": len(vecs)}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"namespaces": namespaces})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestStore(t *testing.T) (*Store, *fakeIndex) {
	t.Helper()
	fake := newFakeIndex()
	var selfURL string
	srv := httptest.NewServer(fake.handler(t, &selfURL))
	selfURL = srv.URL
	t.Cleanup(srv.Close)
	t.Setenv("KOTAE_TEST_PINECONE_KEY", "test-key")
	store, err := NewStore(Config{
		ControlURL: srv.URL,
		APIKeyEnv:  "KOTAE_TEST_PINECONE_KEY",
		IndexName:  "test-index",
		Dimensions: 16,
	}, embedding.NewMockEmbedder(16))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, fake
}

func TestNewStoreMissingKey(t *testing.T) {
	if _, err := NewStore(Config{APIKeyEnv: "KOTAE_TEST_NO_SUCH_KEY", IndexName: "x"}, embedding.NewMockEmbedder(4)); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestEnsureIndexCreatesOnce(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)

	if err := store.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if err := store.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex second call: %v", err)
	}
	if fake.creates != 1 {
		t.Errorf("index should be created exactly once, got %d creates", fake.creates)
	}
}

func TestEnsureIndexConflictIsSuccess(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)
	// Another caller creates the index between our describe and create:
	// describe sees 404, create answers 409, the follow-up describe succeeds.
	fake.created = true
	fake.describe404 = 1
	if err := store.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex after losing create race: %v", err)
	}
	if fake.creates != 1 {
		t.Errorf("expected exactly one create attempt, got %d", fake.creates)
	}
}

func TestUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)

	chunks := []*models.DocumentChunk{
		{SourceFile: "doc.pdf", Page: 1, ChunkIndex: 0, Content: "first chunk"},
		{SourceFile: "doc.pdf", Page: 2, ChunkIndex: 1, Content: "second chunk"},
	}
	if err := store.Upsert(ctx, "user_a", chunks); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(fake.namespaces["user_a"]) != 2 {
		t.Fatalf("expected 2 vectors stored, got %d", len(fake.namespaces["user_a"]))
	}
	for _, ch := range chunks {
		if ch.ID == "" {
			t.Error("chunk ID should be assigned during upsert")
		}
	}

	query, _ := embedding.NewMockEmbedder(16).Embed(ctx, "first chunk")
	results, err := store.Search(ctx, "user_a", query, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not in descending score order")
		}
	}
	if results[0].Chunk.Content != "first chunk" || results[0].Chunk.Page != 1 {
		t.Errorf("metadata not round-tripped: %+v", results[0].Chunk)
	}
}

func TestListNamespaces(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	names, err := store.ListNamespaces(ctx)
	if err != nil {
		t.Fatalf("ListNamespaces: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no namespaces, got %v", names)
	}

	if err := store.Upsert(ctx, "user_a", []*models.DocumentChunk{{Content: "x"}}); err != nil {
		t.Fatal(err)
	}
	names, _ = store.ListNamespaces(ctx)
	if len(names) != 1 || names[0] != "user_a" {
		t.Errorf("namespaces: got %v", names)
	}
}

func TestProviderErrorWrapsVectorStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("KOTAE_TEST_PINECONE_KEY", "test-key")
	store, err := NewStore(Config{
		ControlURL: srv.URL,
		APIKeyEnv:  "KOTAE_TEST_PINECONE_KEY",
		IndexName:  "test-index",
	}, embedding.NewMockEmbedder(4))
	if err != nil {
		t.Fatal(err)
	}
	err = store.EnsureIndex(context.Background())
	if !errors.Is(err, models.ErrVectorStore) {
		t.Errorf("expected ErrVectorStore, got %v", err)
	}
}
