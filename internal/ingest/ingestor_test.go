package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/namespace"
	"github.com/hyperjump/kotae/internal/vectorstore/memory"
)

type fakeExtractor struct {
	pages []string
	err   error
}

func (f *fakeExtractor) ExtractPages(path string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func writeTestFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 stub"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func newTestIngestor(extractor PageExtractor, store *memory.Store) *Ingestor {
	return NewIngestor(extractor, NewChunker(1000, 10), store, nil, nil)
}

func TestIngest(t *testing.T) {
	store := memory.NewStore(embedding.NewMockEmbedder(64), 0)
	ing := newTestIngestor(&fakeExtractor{pages: []string{strings.Repeat("a", 1500), "second page"}}, store)
	path := writeTestFile(t, "report.pdf")

	rec, err := ing.Ingest(context.Background(), path, "alice")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if rec.Namespace != "user_alice" {
		t.Errorf("expected namespace user_alice, got %s", rec.Namespace)
	}
	if rec.Filename != "report.pdf" {
		t.Errorf("expected filename report.pdf, got %s", rec.Filename)
	}
	if rec.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", rec.Pages)
	}
	if rec.ChunkCount != 2 {
		t.Errorf("expected 2 chunks, got %d", rec.ChunkCount)
	}

	names, err := store.ListNamespaces(context.Background())
	if err != nil {
		t.Fatalf("ListNamespaces failed: %v", err)
	}
	if len(names) != 1 || names[0] != "user_alice" {
		t.Errorf("expected [user_alice], got %v", names)
	}
}

func TestIngestEmptyUserID(t *testing.T) {
	store := memory.NewStore(embedding.NewMockEmbedder(64), 0)
	ing := newTestIngestor(&fakeExtractor{pages: []string{"text"}}, store)
	path := writeTestFile(t, "report.pdf")

	_, err := ing.Ingest(context.Background(), path, "  ")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestIngestMissingFile(t *testing.T) {
	store := memory.NewStore(embedding.NewMockEmbedder(64), 0)
	ing := newTestIngestor(&fakeExtractor{pages: []string{"text"}}, store)

	_, err := ing.Ingest(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"), "alice")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIngestUnsupportedFormat(t *testing.T) {
	store := memory.NewStore(embedding.NewMockEmbedder(64), 0)
	ing := newTestIngestor(&fakeExtractor{pages: []string{"text"}}, store)
	path := writeTestFile(t, "notes.txt")

	_, err := ing.Ingest(context.Background(), path, "alice")
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestIngestUppercaseExtension(t *testing.T) {
	store := memory.NewStore(embedding.NewMockEmbedder(64), 0)
	ing := newTestIngestor(&fakeExtractor{pages: []string{"text"}}, store)
	path := writeTestFile(t, "REPORT.PDF")

	if _, err := ing.Ingest(context.Background(), path, "alice"); err != nil {
		t.Errorf("expected uppercase .PDF to be accepted, got %v", err)
	}
}

func TestIngestExtractionFailureAborts(t *testing.T) {
	store := memory.NewStore(embedding.NewMockEmbedder(64), 0)
	ing := newTestIngestor(&fakeExtractor{err: errors.New("broken xref")}, store)
	path := writeTestFile(t, "corrupt.pdf")

	if _, err := ing.Ingest(context.Background(), path, "alice"); err == nil {
		t.Fatal("expected error for failed extraction")
	}
	names, err := store.ListNamespaces(context.Background())
	if err != nil {
		t.Fatalf("ListNamespaces failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no namespaces after aborted ingestion, got %v", names)
	}
}

func TestIngestDuplicateAppends(t *testing.T) {
	store := memory.NewStore(embedding.NewMockEmbedder(64), 0)
	ing := newTestIngestor(&fakeExtractor{pages: []string{"same document text"}}, store)
	path := writeTestFile(t, "report.pdf")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := ing.Ingest(ctx, path, "alice"); err != nil {
			t.Fatalf("Ingest %d failed: %v", i, err)
		}
	}

	embedder := embedding.NewMockEmbedder(64)
	query, err := embedder.Embed(ctx, "same document text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	results, err := store.Search(ctx, namespace.Derive("alice"), query, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results after duplicate ingestion, got %d", len(results))
	}
}
