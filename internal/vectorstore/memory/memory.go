// Package memory provides an in-process vector store for development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

// Store is a namespace-partitioned brute-force vector store. Suitable for
// tests and small datasets; mirrors the remote index contract including
// implicit namespace creation and duplicate appends.
type Store struct {
	embedder   embedding.Embedder
	cutoff     float64
	mu         sync.RWMutex
	namespaces map[string][]entry
}

type entry struct {
	vector []float32
	chunk  *models.DocumentChunk
}

// NewStore creates an in-memory store. cutoff drops search results scoring
// below it when non-zero.
func NewStore(embedder embedding.Embedder, cutoff float64) *Store {
	return &Store{
		embedder:   embedder,
		cutoff:     cutoff,
		namespaces: make(map[string][]entry),
	}
}

// EnsureIndex is a no-op for the in-memory store.
func (s *Store) EnsureIndex(ctx context.Context) error {
	return nil
}

// Upsert embeds chunks and appends them to the namespace in input order.
func (s *Store) Upsert(ctx context.Context, namespace string, chunks []*models.DocumentChunk) error {
	if namespace == "" {
		return fmt.Errorf("%w: empty namespace", models.ErrVectorStore)
	}
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks for namespace %s: %w", len(chunks), namespace, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.New().String()
		}
		ch.Embedding = vectors[i]
		s.namespaces[namespace] = append(s.namespaces[namespace], entry{vector: vectors[i], chunk: ch})
	}
	return nil
}

// Search returns up to topK entries by cosine similarity, descending.
// An unknown namespace yields no results, not an error.
func (s *Store) Search(ctx context.Context, namespace string, query []float32, topK int) ([]*models.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.namespaces[namespace]
	results := make([]*models.SearchResult, 0, len(entries))
	for _, e := range entries {
		score := cosineSimilarity(query, e.vector)
		if s.cutoff > 0 && score < s.cutoff {
			continue
		}
		results = append(results, &models.SearchResult{Chunk: e.chunk, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// ListNamespaces returns namespaces holding at least one vector, sorted.
func (s *Store) ListNamespaces(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.namespaces))
	for name, entries := range s.namespaces {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// cosineSimilarity returns the cosine similarity of a and b clamped to [0,1].
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb))))
}
