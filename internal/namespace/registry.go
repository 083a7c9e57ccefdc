// Package namespace maps user identifiers to isolated partitions of the
// shared vector index.
package namespace

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/vectorstore"
)

// Derive returns the namespace for a user id. Vectors from different
// namespaces are never compared or retrieved together.
func Derive(userID string) string {
	return "user_" + userID
}

// Registry answers namespace existence queries against the vector index.
// Read-only; namespaces are created implicitly by the first ingestion.
type Registry struct {
	store vectorstore.Store
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store vectorstore.Store) *Registry {
	return &Registry{store: store}
}

// Exists reports whether the user's namespace is present in the index stats.
// Connectivity errors propagate to the caller; no retry.
func (r *Registry) Exists(ctx context.Context, userID string) (bool, error) {
	names, err := r.store.ListNamespaces(ctx)
	if err != nil {
		return false, fmt.Errorf("check namespace for user %s: %w", userID, err)
	}
	want := Derive(userID)
	for _, name := range names {
		if name == want {
			return true, nil
		}
	}
	return false, nil
}
