// Package ai holds the model-facing collaborators of the matcher: embedders
// used by ingestion and the text generator behind the rerank hook.
package ai

import (
	"context"
)

// Embedder turns text into a fixed-length vector. Implementations may be
// remote and slow; the ranking engine never calls them.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Generator produces a text completion for a system instruction and a user
// message.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}
