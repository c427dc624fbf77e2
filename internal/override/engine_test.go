package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhq/scenepilot/internal/scene"
)

func phonePattern() *scene.DetectedPattern {
	return &scene.DetectedPattern{Type: scene.PatternPhoneLike, Confidence: 1.0}
}

func TestPhoneExtrudeIsReplaced(t *testing.T) {
	e := NewEngine(nil)

	d := e.Check("mesh_extrude_region", map[string]any{"move": []any{0.0, 0.0, 0.5}}, phonePattern())
	require.True(t, d.ShouldOverride)
	require.Len(t, d.Replacements, 2)
	assert.Equal(t, "mesh_inset", d.Replacements[0].Tool)
	assert.Equal(t, "mesh_extrude_region", d.Replacements[1].Tool)
	assert.NotEmpty(t, d.Reason)
	assert.Equal(t, "phone_inset_extrude", d.RuleName)
}

func TestTowerSubdivideInheritsCuts(t *testing.T) {
	e := NewEngine(nil)
	pattern := &scene.DetectedPattern{Type: scene.PatternTowerLike, Confidence: 1.0}

	d := e.Check("mesh_subdivide", map[string]any{"cuts": 5}, pattern)
	require.True(t, d.ShouldOverride)
	require.Len(t, d.Replacements, 3)
	assert.Equal(t, 5, d.Replacements[0].Params["cuts"])
}

func TestNoPatternNoOverride(t *testing.T) {
	e := NewEngine(nil)

	d := e.Check("mesh_extrude_region", nil, nil)
	assert.False(t, d.ShouldOverride)

	boxPattern := &scene.DetectedPattern{Type: scene.PatternBoxLike}
	d = e.Check("mesh_extrude_region", nil, boxPattern)
	assert.False(t, d.ShouldOverride)
}

func TestRegistrationOrderFirstMatchWins(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Register(Rule{
		Name:    "later_phone_rule",
		Tool:    "mesh_extrude_region",
		Pattern: scene.PatternPhoneLike,
		Replacements: []Replacement{
			{Tool: "mesh_noop"},
		},
	}))

	d := e.Check("mesh_extrude_region", nil, phonePattern())
	require.True(t, d.ShouldOverride)
	assert.Equal(t, "phone_inset_extrude", d.RuleName)
}

func TestRemoveRule(t *testing.T) {
	e := NewEngine(nil)
	before := e.RuleCount()

	assert.True(t, e.Remove("phone_inset_extrude"))
	assert.Equal(t, before-1, e.RuleCount())

	d := e.Check("mesh_extrude_region", nil, phonePattern())
	assert.False(t, d.ShouldOverride)

	assert.False(t, e.Remove("phone_inset_extrude"))
}

func TestRegisterValidatesRule(t *testing.T) {
	e := NewEngine(nil)
	assert.Error(t, e.Register(Rule{Name: "incomplete"}))
}
