package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/namespace"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

// PageExtractor extracts per-page text from a document on disk.
type PageExtractor interface {
	ExtractPages(path string) ([]string, error)
}

// Ingestor runs the ingestion pipeline: extract, chunk, embed, upsert.
// Each document is processed as a unit; a failure at any stage aborts that
// document without partial catalog entries.
type Ingestor struct {
	extractor PageExtractor
	chunker   *Chunker
	store     vectorstore.Store
	catalog   storage.Storage
	logger    *zap.Logger
}

// NewIngestor creates an ingestor. The catalog may be nil, in which case
// ingested documents are not recorded locally.
func NewIngestor(extractor PageExtractor, chunker *Chunker, store vectorstore.Store, catalog storage.Storage, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		extractor: extractor,
		chunker:   chunker,
		store:     store,
		catalog:   catalog,
		logger:    logger,
	}
}

// Ingest processes the PDF at path into the namespace of userID and returns
// the resulting catalog record. Repeated ingestion of the same file appends
// duplicate chunks; no deduplication is performed.
func (i *Ingestor) Ingest(ctx context.Context, path, userID string) (*models.DocumentRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", models.ErrValidation, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Base(path))
	}

	start := time.Now()
	pages, err := i.extractor.ExtractPages(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	docID := uuid.New().String()
	chunks := i.chunker.Chunk(docID, filepath.Base(path), pages)

	if err := i.store.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	ns := namespace.Derive(userID)
	if len(chunks) > 0 {
		if err := i.store.Upsert(ctx, ns, chunks); err != nil {
			return nil, err
		}
	}

	rec := &models.DocumentRecord{
		ID:         docID,
		Namespace:  ns,
		Filename:   filepath.Base(path),
		Pages:      len(pages),
		ChunkCount: len(chunks),
		IngestedAt: time.Now(),
	}
	if i.catalog != nil {
		if err := i.catalog.RecordDocument(ctx, rec); err != nil {
			return nil, fmt.Errorf("record document %s: %w", rec.Filename, err)
		}
	}

	i.logger.Info("Ingested document",
		zap.String("file", rec.Filename),
		zap.String("namespace", ns),
		zap.Int("pages", rec.Pages),
		zap.Int("chunks", rec.ChunkCount),
		zap.Duration("took", time.Since(start)))

	return rec, nil
}
