// Package embed defines the text-embedding provider the semantic stages
// depend on. The provider must work fully offline once warmed up; the one
// process-wide shared instance is the expensive model itself, behind this
// interface with an explicit lifecycle.
package embed

import (
	"context"
	"errors"
	"math"
)

// ErrNotReady is returned by Embed before Load has succeeded.
var ErrNotReady = errors.New("embedding provider not loaded")

// Provider is a pluggable text-embedding backend.
type Provider interface {
	// Load initializes the model. It may take seconds and hundreds of MB;
	// callers do it once at startup, never lazily mid-request.
	Load(ctx context.Context) error
	// Ready reports whether Embed can be called.
	Ready() bool
	// Embed returns the vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cosine computes cosine similarity between two vectors. Mismatched
// lengths compare over the shorter prefix; zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity embeds both texts with p and returns their cosine.
func Similarity(ctx context.Context, p Provider, a, b string) (float64, error) {
	va, err := p.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := p.Embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return Cosine(va, vb), nil
}
