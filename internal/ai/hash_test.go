package ai

import (
	"context"
	"crypto/sha256"
	"slices"
	"testing"
)

func TestHashEmbedder(t *testing.T) {
	t.Parallel()

	e := NewHashEmbedder(0)
	if e.Dimension() != DefaultHashDimension {
		t.Fatalf("expected default dimension, got %d", e.Dimension())
	}

	a, err := e.Embed(context.Background(), "senior go developer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := e.Embed(context.Background(), "senior go developer")
	c, _ := e.Embed(context.Background(), "pastry chef")

	if len(a) != DefaultHashDimension {
		t.Fatalf("expected %d values, got %d", DefaultHashDimension, len(a))
	}
	if !slices.Equal(a, b) {
		t.Fatalf("expected identical text to embed identically")
	}
	if slices.Equal(a, c) {
		t.Fatalf("expected different text to embed differently")
	}

	digest := sha256.Sum256([]byte("senior go developer"))
	if want := float32(float64(digest[0])/255*2 - 1); a[0] != want {
		t.Fatalf("expected first value %v, got %v", want, a[0])
	}
	for _, v := range a {
		if v < -1 || v > 1 {
			t.Fatalf("value out of range: %v", v)
		}
	}
}

func TestHashEmbedderCyclesDigest(t *testing.T) {
	t.Parallel()

	v, _ := NewHashEmbedder(40).Embed(context.Background(), "x")
	if len(v) != 40 {
		t.Fatalf("expected 40 values, got %d", len(v))
	}
	if v[32] != v[0] || v[39] != v[7] {
		t.Fatalf("expected values past the digest to repeat")
	}
}

func TestHashEmbedderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(8).Embed(ctx, "x"); err == nil {
		t.Fatalf("expected an error for a cancelled context")
	}
}
