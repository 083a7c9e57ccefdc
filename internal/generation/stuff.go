package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// qaPromptTemplate instructs the model to answer only from the supplied
// context and to admit when it does not know.
const qaPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// Synthesizer produces an answer to a question from retrieved chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, results []*models.SearchResult) (*models.Answer, error)
}

// StuffSynthesizer concatenates every retrieved chunk into a single prompt
// and asks the generator once. There is no truncation or re-ranking: the
// caller bounds the context size by choosing topK.
type StuffSynthesizer struct {
	generator Generator
}

// NewStuffSynthesizer creates a synthesizer backed by the given generator.
func NewStuffSynthesizer(generator Generator) *StuffSynthesizer {
	return &StuffSynthesizer{generator: generator}
}

// Synthesize builds the question-answering prompt from the retrieved chunks
// and returns the generator's reply. An empty result set still produces a
// request; the model is expected to answer that it does not know.
func (s *StuffSynthesizer) Synthesize(ctx context.Context, question string, results []*models.SearchResult) (*models.Answer, error) {
	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Chunk.Content
	}
	prompt := fmt.Sprintf(qaPromptTemplate, strings.Join(contexts, "\n\n"), question)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &models.Answer{Text: text}, nil
}
