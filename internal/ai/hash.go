package ai

import (
	"context"
	"crypto/sha256"
)

// DefaultHashDimension matches the offline fallback embedding width.
const DefaultHashDimension = 32

// HashEmbedder derives a deterministic pseudo-embedding from the SHA-256 of
// the text. Equal texts map to equal vectors; it carries no semantics and is
// meant for offline runs and tests.
type HashEmbedder struct {
	dim int
}

var _ Embedder = HashEmbedder{}

// NewHashEmbedder returns an embedder of width dim, or DefaultHashDimension
// when dim <= 0.
func NewHashEmbedder(dim int) HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return HashEmbedder{dim: dim}
}

func (h HashEmbedder) Dimension() int {
	if h.dim <= 0 {
		return DefaultHashDimension
	}
	return h.dim
}

// Embed maps each digest byte to [-1, 1], cycling through the digest when
// the dimension exceeds its length.
func (h HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(text))
	out := make([]float32, h.Dimension())
	for i := range out {
		out[i] = float32(float64(digest[i%len(digest)])/255*2 - 1)
	}
	return out, nil
}
