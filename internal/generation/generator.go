// Package generation produces natural-language answers from retrieved context.
package generation

import "context"

// Generator turns a prompt into a completion from a language model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
	Close() error
}
