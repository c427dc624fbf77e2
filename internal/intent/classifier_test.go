package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhq/scenepilot/internal/embed"
)

func catalog() []Entry {
	return []Entry{
		{
			Name:        "tower_workflow",
			Description: "build a tall tapered tower with window loops",
			Keywords:    []string{"tower", "spire", "tall"},
			Phrases:     []string{"make a tower", "build a tall structure"},
		},
		{
			Name:        "phone_workflow",
			Description: "model a smartphone body with a recessed screen",
			Keywords:    []string{"phone", "smartphone", "screen"},
			Phrases:     []string{"make a phone", "model a smartphone"},
		},
		{
			Name:        "table_workflow",
			Description: "build a table with a flat top and four legs",
			Keywords:    []string{"table", "desk", "legs"},
			Phrases:     []string{"make a table"},
		},
	}
}

func TestPredictRanksBySimilarity(t *testing.T) {
	c := NewClassifier(embed.HashProvider{}, catalog(), nil)
	require.NoError(t, c.Warm(context.Background()))
	assert.False(t, c.UsingFallback())

	best, err := c.Predict(context.Background(), "build me a tall tower with a spire")
	require.NoError(t, err)
	assert.Equal(t, "tower_workflow", best.Name)
	assert.Greater(t, best.Score, 0.0)
}

func TestPredictTopK(t *testing.T) {
	c := NewClassifier(embed.HashProvider{}, catalog(), nil)
	require.NoError(t, c.Warm(context.Background()))

	top, err := c.PredictTopK(context.Background(), "model a smartphone with a screen", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "phone_workflow", top[0].Name)
	assert.GreaterOrEqual(t, top[0].Score, top[1].Score)
}

type brokenProvider struct{}

func (brokenProvider) Load(context.Context) error { return errors.New("no model") }
func (brokenProvider) Ready() bool                { return false }
func (brokenProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("no model")
}

func TestFallbackWhenProviderUnavailable(t *testing.T) {
	c := NewClassifier(brokenProvider{}, catalog(), nil)
	require.NoError(t, c.Warm(context.Background()))
	assert.True(t, c.UsingFallback())

	best, err := c.Predict(context.Background(), "make a table with four legs")
	require.NoError(t, err)
	assert.Equal(t, "table_workflow", best.Name)
}

func TestEmptyCatalog(t *testing.T) {
	c := NewClassifier(embed.HashProvider{}, nil, nil)
	require.NoError(t, c.Warm(context.Background()))

	best, err := c.Predict(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, best.Name)
}
