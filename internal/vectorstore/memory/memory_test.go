package memory

import (
	"context"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

func chunksFor(texts ...string) []*models.DocumentChunk {
	chunks := make([]*models.DocumentChunk, len(texts))
	for i, txt := range texts {
		chunks[i] = &models.DocumentChunk{SourceFile: "doc.pdf", ChunkIndex: i, Content: txt}
	}
	return chunks
}

func TestSearchOrderingAndTopK(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(16)
	store := NewStore(embedder, 0)

	if err := store.Upsert(ctx, "user_a", chunksFor("alpha", "beta", "gamma", "delta")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	query, _ := embedder.Embed(ctx, "beta")
	results, err := store.Search(ctx, "user_a", query, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) > 3 {
		t.Errorf("topK exceeded: got %d results", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}
	if results[0].Chunk.Content != "beta" {
		t.Errorf("identical text should rank first, got %q", results[0].Chunk.Content)
	}
	if results[0].Score < 0.99 {
		t.Errorf("identical text should score ~1, got %f", results[0].Score)
	}
}

func TestSearchUnknownNamespace(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(16)
	store := NewStore(embedder, 0)
	query, _ := embedder.Embed(ctx, "anything")
	results, err := store.Search(ctx, "user_none", query, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestUpsertDuplicatesNotDeduplicated(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(16)
	store := NewStore(embedder, 0)

	if err := store.Upsert(ctx, "user_a", chunksFor("same text")); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, "user_a", chunksFor("same text")); err != nil {
		t.Fatal(err)
	}
	query, _ := embedder.Embed(ctx, "same text")
	results, _ := store.Search(ctx, "user_a", query, 10)
	if len(results) != 2 {
		t.Errorf("repeated ingestion should double stored chunks, got %d", len(results))
	}
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(16)
	store := NewStore(embedder, 0)

	if err := store.Upsert(ctx, "user_a", chunksFor("the moon landing happened in 1969")); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, "user_b", chunksFor("bread needs flour and water")); err != nil {
		t.Fatal(err)
	}

	query, _ := embedder.Embed(ctx, "the moon landing happened in 1969")
	results, _ := store.Search(ctx, "user_b", query, 5)
	for _, r := range results {
		if r.Chunk.Content == "the moon landing happened in 1969" {
			t.Error("namespace isolation violated: user_a content surfaced under user_b")
		}
	}
}

func TestScoreCutoff(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(16)
	store := NewStore(embedder, 0.99)

	if err := store.Upsert(ctx, "user_a", chunksFor("exact match text", "unrelated stuff")); err != nil {
		t.Fatal(err)
	}
	query, _ := embedder.Embed(ctx, "exact match text")
	results, _ := store.Search(ctx, "user_a", query, 10)
	if len(results) != 1 {
		t.Fatalf("cutoff should keep only the exact match, got %d results", len(results))
	}
	if results[0].Chunk.Content != "exact match text" {
		t.Errorf("wrong result kept: %q", results[0].Chunk.Content)
	}
}

func TestListNamespaces(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewMockEmbedder(16)
	store := NewStore(embedder, 0)

	names, err := store.ListNamespaces(ctx)
	if err != nil || len(names) != 0 {
		t.Fatalf("expected no namespaces, got %v, %v", names, err)
	}
	if err := store.Upsert(ctx, "user_b", chunksFor("x")); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, "user_a", chunksFor("y")); err != nil {
		t.Fatal(err)
	}
	names, _ = store.ListNamespaces(ctx)
	if len(names) != 2 || names[0] != "user_a" || names[1] != "user_b" {
		t.Errorf("namespaces: got %v", names)
	}
}
