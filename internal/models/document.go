// Package models defines core data structures for chunks, search results, and answers.
package models

import "time"

// DocumentChunk is a contiguous span of extracted PDF text, the unit of
// embedding and retrieval. Chunks overlap their predecessor by a fixed number
// of characters so context survives the split boundary.
type DocumentChunk struct {
	ID         string    `json:"id"`
	SourceFile string    `json:"source_file"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// SearchResult pairs a retrieved chunk with its cosine similarity score in [0,1].
type SearchResult struct {
	Chunk *DocumentChunk `json:"chunk"`
	Score float64        `json:"score"`
}

// Answer is the text produced by the synthesizer for one question. It is not
// persisted; the caller decides whether to display or store it.
type Answer struct {
	Text string `json:"text"`
}

// DocumentRecord is a catalog entry for one successfully ingested document.
type DocumentRecord struct {
	ID         string    `json:"id"`
	Namespace  string    `json:"namespace"`
	Filename   string    `json:"filename"`
	Pages      int       `json:"pages"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}
