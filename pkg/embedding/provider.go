package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch means the provider returned vectors of a size the store was not built for.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingProvider turns text into fixed-size vectors.
type EmbeddingProvider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type dimensionGuard struct {
	inner EmbeddingProvider
	dim   int
}

// WithDimension wraps p so every returned vector is checked against dim.
func WithDimension(p EmbeddingProvider, dim int) EmbeddingProvider {
	return &dimensionGuard{inner: p, dim: dim}
}

func (g *dimensionGuard) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := g.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) != g.dim {
		return nil, fmt.Errorf("%w: provider returned %d, store configured for %d", ErrDimensionMismatch, len(v), g.dim)
	}
	return v, nil
}

func (g *dimensionGuard) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := g.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vs) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vs), len(texts))
	}
	for i, v := range vs {
		if len(v) != g.dim {
			return nil, fmt.Errorf("%w: vector %d has %d, store configured for %d", ErrDimensionMismatch, i, len(v), g.dim)
		}
	}
	return vs, nil
}

// normalizeVector scales vec to unit length; a zero vector is returned unchanged.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
