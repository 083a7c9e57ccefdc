// Package ingest provides PDF document chunking and ingestion into the vector store.
package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits extracted text into overlapping fixed-size character windows.
// Splitting is purely by character count, independent of word or sentence
// boundaries, and never drops text: every input character lands in at least
// one chunk.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk concatenates the page texts and splits them into DocumentChunks with
// overlapping windows. Each chunk after the first starts chunkOverlap
// characters before the previous chunk's end. Each chunk records the page on
// which it starts. Returns nil for empty input.
func (c *Chunker) Chunk(docID, source string, pages []string) []*models.DocumentChunk {
	var sb strings.Builder
	pageStarts := make([]int, len(pages))
	offset := 0
	for i, p := range pages {
		if i > 0 {
			sb.WriteByte('\n')
			offset++
		}
		pageStarts[i] = offset
		offset += len([]rune(p))
		sb.WriteString(p)
	}
	runes := []rune(sb.String())
	if len(runes) == 0 {
		return nil
	}

	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	chunks := make([]*models.DocumentChunk, 0)
	chunkIndex := 0
	for start := 0; ; start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, &models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%s", docID, uuid.New().String()[:8]),
			SourceFile: source,
			Page:       pageAt(pageStarts, start),
			ChunkIndex: chunkIndex,
			Content:    string(runes[start:end]),
		})
		chunkIndex++
		if end >= len(runes) {
			break
		}
	}
	return chunks
}

// pageAt returns the 1-based page containing the given character offset.
func pageAt(pageStarts []int, offset int) int {
	page := 1
	for i, start := range pageStarts {
		if start > offset {
			break
		}
		page = i + 1
	}
	return page
}
