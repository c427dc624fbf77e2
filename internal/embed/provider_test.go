package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestHashProviderIsDeterministic(t *testing.T) {
	p := HashProvider{}
	ctx := context.Background()

	a, err := p.Embed(ctx, "bevel the top edges")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "bevel the top edges")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashProviderSimilarityTracksTokenOverlap(t *testing.T) {
	p := HashProvider{}
	ctx := context.Background()

	same, err := Similarity(ctx, p, "make a tall tower", "make a tall tower")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-6)

	near, err := Similarity(ctx, p, "make a tall tower", "build a tall tower")
	require.NoError(t, err)
	far, err := Similarity(ctx, p, "make a tall tower", "apply glass material")
	require.NoError(t, err)
	assert.Greater(t, near, far)
}

func TestFastEmbedStubIsNotReady(t *testing.T) {
	p := NewFastEmbed(FastEmbedOptions{})
	if p.Ready() {
		t.Skip("built with -tags fastembed")
	}
	assert.Error(t, p.Load(context.Background()))
	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotReady)
}
