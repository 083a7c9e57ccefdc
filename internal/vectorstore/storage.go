// Package vectorstore defines namespace-partitioned vector storage and
// similarity search over an external index.
package vectorstore

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Store owns per-namespace upsert and similarity-search operations against a
// shared vector index. Namespaces are created implicitly by the first write;
// there is no delete path. Implementations wrap provider faults with
// models.ErrVectorStore and do not retry.
type Store interface {
	// EnsureIndex creates the shared index if it does not exist. Idempotent
	// and safe to call concurrently; a duplicate-create race resolves to
	// "already exists".
	EnsureIndex(ctx context.Context) error

	// Upsert embeds each chunk and writes it into the namespace, in input
	// order. Repeated upserts of the same content append duplicates; no
	// deduplication is performed.
	Upsert(ctx context.Context, namespace string, chunks []*models.DocumentChunk) error

	// Search returns up to topK nearest chunks by cosine similarity, in
	// descending score order. A configured score cutoff, when non-zero,
	// drops results below it.
	Search(ctx context.Context, namespace string, query []float32, topK int) ([]*models.SearchResult, error)

	// ListNamespaces returns the names of namespaces holding at least one vector.
	ListNamespaces(ctx context.Context) ([]string, error)

	Close() error
}
