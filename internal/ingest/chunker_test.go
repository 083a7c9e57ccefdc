package ingest

import (
	"strings"
	"testing"
)

func TestChunkReconstruction(t *testing.T) {
	c := NewChunker(1000, 10)
	text := strings.Repeat("abcdefghij", 350) // 3500 chars
	chunks := c.Chunk("doc", "test.pdf", []string{text})

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	// Dropping the overlap prefix of every chunk after the first must
	// reassemble the original text exactly.
	var sb strings.Builder
	sb.WriteString(chunks[0].Content)
	for _, ch := range chunks[1:] {
		runes := []rune(ch.Content)
		if len(runes) > 10 {
			runes = runes[10:]
		} else {
			runes = nil
		}
		sb.WriteString(string(runes))
	}
	if sb.String() != text {
		t.Error("reassembled text does not match input")
	}
}

func TestChunkOverlapOffsets(t *testing.T) {
	c := NewChunker(1000, 10)
	text := strings.Repeat("x", 1500)
	chunks := c.Chunk("doc", "test.pdf", []string{text})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks for 1500 chars, got %d", len(chunks))
	}
	if len(chunks[0].Content) != 1000 {
		t.Errorf("expected first chunk of 1000 chars, got %d", len(chunks[0].Content))
	}
	// Second window starts at 990: 510 remaining characters.
	if len(chunks[1].Content) != 510 {
		t.Errorf("expected second chunk of 510 chars, got %d", len(chunks[1].Content))
	}
}

func TestChunkShortInput(t *testing.T) {
	c := NewChunker(1000, 10)
	chunks := c.Chunk("doc", "test.pdf", []string{"short text"})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short text" {
		t.Errorf("unexpected content: %q", chunks[0].Content)
	}
	if chunks[0].ChunkIndex != 0 {
		t.Errorf("expected chunk index 0, got %d", chunks[0].ChunkIndex)
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := NewChunker(1000, 10)

	if got := c.Chunk("doc", "test.pdf", nil); got != nil {
		t.Errorf("expected nil for no pages, got %d chunks", len(got))
	}
	if got := c.Chunk("doc", "test.pdf", []string{""}); got != nil {
		t.Errorf("expected nil for empty page, got %d chunks", len(got))
	}
}

func TestChunkPageAttribution(t *testing.T) {
	c := NewChunker(100, 10)
	pages := []string{strings.Repeat("a", 150), strings.Repeat("b", 150)}
	chunks := c.Chunk("doc", "test.pdf", pages)

	if chunks[0].Page != 1 {
		t.Errorf("expected first chunk on page 1, got %d", chunks[0].Page)
	}
	last := chunks[len(chunks)-1]
	if last.Page != 2 {
		t.Errorf("expected last chunk on page 2, got %d", last.Page)
	}
}

func TestChunkIDsUnique(t *testing.T) {
	c := NewChunker(100, 10)
	chunks := c.Chunk("doc", "test.pdf", []string{strings.Repeat("z", 500)})

	seen := make(map[string]bool)
	for _, ch := range chunks {
		if seen[ch.ID] {
			t.Fatalf("duplicate chunk id %s", ch.ID)
		}
		seen[ch.ID] = true
		if !strings.HasPrefix(ch.ID, "doc_") {
			t.Errorf("expected id prefixed with document id, got %s", ch.ID)
		}
	}
}

func TestChunkIndicesSequential(t *testing.T) {
	c := NewChunker(100, 10)
	chunks := c.Chunk("doc", "test.pdf", []string{strings.Repeat("z", 500)})

	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
	}
}
