// Package storage defines the local catalog of ingested documents.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage records which documents have been ingested into which namespace.
// The catalog is bookkeeping only: the vector index remains the source of
// truth for retrieval.
type Storage interface {
	RecordDocument(ctx context.Context, rec *models.DocumentRecord) error
	ListDocuments(ctx context.Context, namespace string) ([]*models.DocumentRecord, error)
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	Close() error
}
