package models

import "errors"

// Failure classes for the ingestion and answering pipeline. Components wrap
// these with operation and namespace context via fmt.Errorf("%w", ...) and
// never retry or swallow; the HTTP layer maps them to response codes.
var (
	// ErrNotFound indicates a requested input file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates an input that is not a PDF.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrValidation indicates a missing or malformed request field.
	ErrValidation = errors.New("invalid request")

	// ErrEmbeddingService wraps embedding provider faults (rate limit, auth, timeout).
	ErrEmbeddingService = errors.New("embedding service failure")

	// ErrVectorStore wraps vector index provider faults.
	ErrVectorStore = errors.New("vector store failure")

	// ErrGenerationService wraps generation provider faults.
	ErrGenerationService = errors.New("generation service failure")

	// ErrNoDocuments indicates a question was asked against a namespace with
	// nothing ingested. Returned instead of generating from empty context.
	ErrNoDocuments = errors.New("no documents ingested for user")
)
