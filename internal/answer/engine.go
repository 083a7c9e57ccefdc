// Package answer orchestrates retrieval-augmented question answering.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/namespace"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

// Engine answers questions against a user's namespace: embed the question,
// retrieve the nearest chunks, synthesize one answer. Each stage fails fast;
// there is no retry and no partial answer.
type Engine struct {
	embedder    embedding.Embedder
	store       vectorstore.Store
	synthesizer generation.Synthesizer
	topK        int
	logger      *zap.Logger
}

// NewEngine creates an answer engine. topK defaults to 3 when non-positive.
func NewEngine(embedder embedding.Embedder, store vectorstore.Store, synthesizer generation.Synthesizer, topK int, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		embedder:    embedder,
		store:       store,
		synthesizer: synthesizer,
		topK:        topK,
		logger:      logger,
	}
}

// Ask answers the question using only the documents in the user's namespace.
// topK overrides the configured retrieval depth when positive. Returns
// models.ErrNoDocuments when retrieval produces nothing to ground an answer on.
func (e *Engine) Ask(ctx context.Context, userID, question string, topK int) (*models.Answer, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", models.ErrValidation)
	}
	if topK <= 0 {
		topK = e.topK
	}

	start := time.Now()
	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	ns := namespace.Derive(userID)
	results, err := e.store.Search(ctx, ns, queryVec, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: namespace %s", models.ErrNoDocuments, ns)
	}

	ans, err := e.synthesizer.Synthesize(ctx, question, results)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Answered question",
		zap.String("namespace", ns),
		zap.Int("retrieved", len(results)),
		zap.Duration("took", time.Since(start)))

	return ans, nil
}
