package scene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(x, y, z float64) Context {
	return Context{
		Mode:        "OBJECT",
		Dimensions:  [3]float64{x, y, z},
		Proportions: DeriveProportions(x, y, z),
		ObjectCount: 1,
		Timestamp:   time.Now(),
	}
}

func find(res Result, pattern string) *DetectedPattern {
	for i := range res.All {
		if res.All[i].Type == pattern {
			return &res.All[i]
		}
	}
	return nil
}

func TestPhoneDimensionsDetectPhonePattern(t *testing.T) {
	d := NewDetector(0, nil)
	res := d.Detect(snapshot(0.4, 0.8, 0.05))

	phone := find(res, PatternPhoneLike)
	require.NotNil(t, phone)
	assert.GreaterOrEqual(t, phone.Confidence, 0.9)
	assert.Equal(t, "phone_workflow", phone.SuggestedWorkflow)

	// is_tall gate fails, so tower must not be reported at all.
	assert.Nil(t, find(res, PatternTowerLike))

	require.NotNil(t, res.Best)
	assert.Equal(t, PatternPhoneLike, res.Best.Type)
}

func TestTowerDimensionsDetectTowerPattern(t *testing.T) {
	d := NewDetector(0, nil)
	res := d.Detect(snapshot(1, 1, 4))

	tower := find(res, PatternTowerLike)
	require.NotNil(t, tower)
	assert.InDelta(t, 1.0, tower.Confidence, 1e-9)
	assert.Contains(t, tower.MatchedRules, "height-over-3x-width")

	// Square-footprint tall object also gates pillar.
	pillar := find(res, PatternPillarLike)
	require.NotNil(t, pillar)
	assert.InDelta(t, 1.0, pillar.Confidence, 1e-9)
}

func TestCubeDetectsBoxPattern(t *testing.T) {
	d := NewDetector(0, nil)
	res := d.Detect(snapshot(1, 1.1, 0.95))

	box := find(res, PatternBoxLike)
	require.NotNil(t, box)
	assert.InDelta(t, 1.0, box.Confidence, 1e-9)
	assert.Empty(t, box.SuggestedWorkflow)
}

func TestWheelRequiresRoundFootprint(t *testing.T) {
	d := NewDetector(0, nil)

	res := d.Detect(snapshot(1, 1, 0.2))
	wheel := find(res, PatternWheelLike)
	require.NotNil(t, wheel)
	assert.InDelta(t, 1.0, wheel.Confidence, 1e-9)

	// Oblong flat object gates wheel but misses the footprint rule.
	res = d.Detect(snapshot(0.4, 0.8, 0.05))
	wheel = find(res, PatternWheelLike)
	require.NotNil(t, wheel)
	assert.InDelta(t, 0.4, wheel.Confidence, 1e-9)
}

func TestBestRespectsConfidenceFloor(t *testing.T) {
	d := NewDetector(0.99, nil)
	res := d.Detect(snapshot(1, 1, 0.2))
	require.NotNil(t, res.Best) // wheel scores 1.0

	d = NewDetector(0.5, nil)
	res = d.Detect(snapshot(0.5, 0.8, 0.2))
	for _, p := range res.All {
		if res.Best != nil {
			assert.LessOrEqual(t, p.Confidence, res.Best.Confidence)
		}
	}
}

func TestDegradedContextMatchesNothing(t *testing.T) {
	d := NewDetector(0, nil)
	res := d.Detect(Empty())
	assert.Empty(t, res.All)
	assert.Nil(t, res.Best)
}
