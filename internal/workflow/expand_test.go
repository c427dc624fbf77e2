package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhq/scenepilot/internal/eval"
	"github.com/voxelhq/scenepilot/internal/toolcall"
)

func testExprCtx() map[string]float64 {
	return map[string]float64{
		"width": 2, "depth": 1, "height": 4,
		"min_dim": 1, "max_dim": 4,
		"aspect_xy": 0.5, "aspect_xz": 2, "aspect_yz": 0.25,
	}
}

func TestExpandTowerDefaults(t *testing.T) {
	e := NewExpander(nil)
	steps, err := e.Expand(towerWorkflow(), "make a tower", testExprCtx(), nil)
	require.NoError(t, err)
	require.Len(t, steps, 7)

	assert.Equal(t, toolcall.ToolSetMode, steps[0].Call.Tool)
	assert.Equal(t, "mesh_subdivide", steps[2].Call.Tool)
	assert.Equal(t, 3, steps[2].Call.Params["cuts"])

	scale, ok := steps[4].Call.Params["scale"].([]any)
	require.True(t, ok)
	assert.Equal(t, 0.7, scale[0])

	// $ledge defaults to $AUTO_LOOP_OFFSET = height * 0.25.
	assert.InDelta(t, 1.0, steps[5].Call.Params["width"].(float64), 1e-9)
	// $CALCULATE(height * 0.15)
	assert.InDelta(t, 0.6, steps[6].Call.Params["depth"].(float64), 1e-9)
}

func TestExpandModifierAndExplicitPrecedence(t *testing.T) {
	e := NewExpander(nil)

	// "thin" modifier lowers the taper.
	steps, err := e.Expand(towerWorkflow(), "a thin tower please", testExprCtx(), nil)
	require.NoError(t, err)
	scale := steps[4].Call.Params["scale"].([]any)
	assert.Equal(t, 0.5, scale[0])

	// Explicit params beat modifiers.
	steps, err = e.Expand(towerWorkflow(), "a thin tower please", testExprCtx(),
		map[string]any{"taper": 0.9})
	require.NoError(t, err)
	scale = steps[4].Call.Params["scale"].([]any)
	assert.Equal(t, 0.9, scale[0])
}

func TestExpandIsPure(t *testing.T) {
	e := NewExpander(nil)
	def := phoneWorkflow()
	ctx := testExprCtx()

	first, err := e.Expand(def, "a rounded phone", ctx, map[string]any{"screen_inset": 0.02})
	require.NoError(t, err)
	second, err := e.Expand(def, "a rounded phone", ctx, map[string]any{"screen_inset": 0.02})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Call.Tool, second[i].Call.Tool)
		assert.Equal(t, first[i].Call.Params, second[i].Call.Params)
	}

	// Expansion does not mutate the definition's defaults.
	assert.Equal(t, "$AUTO_INSET", def.Defaults["screen_inset"])
}

func TestExpandConflictingModifiersResolveDeterministically(t *testing.T) {
	e := NewExpander(nil)
	def := &Definition{
		Name:     "conflict_workflow",
		Defaults: map[string]any{"cuts": 0},
		Modifiers: map[string]map[string]any{
			"chunky": {"cuts": 1},
			"smooth": {"cuts": 2},
		},
		Steps: []Step{{Tool: "mesh_subdivide", Params: map[string]any{"cuts": "$cuts"}}},
	}
	require.NoError(t, def.Validate())

	// Both phrases match and set the same variable; the later phrase in
	// sorted order wins on every run.
	for i := 0; i < 50; i++ {
		steps, err := e.Expand(def, "make it chunky but smooth", testExprCtx(), nil)
		require.NoError(t, err)
		require.Len(t, steps, 1)
		assert.Equal(t, 2, steps[0].Call.Params["cuts"], "iteration %d", i)
	}

	assert.Equal(t, map[string]any{"cuts": 2},
		MatchedModifiers(def, "make it chunky but smooth"))
}

func TestExpandUnrollsLoops(t *testing.T) {
	e := NewExpander(nil)
	steps, err := e.Expand(tableWorkflow(), "a table", testExprCtx(), nil)
	require.NoError(t, err)

	var corners []string
	for _, s := range steps {
		if s.Call.Tool == "mesh_select_face" {
			corners = append(corners, s.Call.Params["position"].(string))
		}
	}
	assert.Equal(t, []string{
		"bottom_front_left", "bottom_front_right",
		"bottom_back_left", "bottom_back_right",
	}, corners)
}

func TestExpandCalculateWithVariableReference(t *testing.T) {
	e := NewExpander(nil)
	steps, err := e.Expand(tableWorkflow(), "a low table", testExprCtx(), nil)
	require.NoError(t, err)

	var depth float64
	for _, s := range steps {
		if s.Call.Tool == "mesh_extrude_region" {
			depth = s.Call.Params["depth"].(float64)
		}
	}
	// "low" modifier: leg_length = max_dim * 0.4 = 1.6, extruded downward.
	assert.InDelta(t, -1.6, depth, 1e-9)
}

func TestExpandUnknownVariableFails(t *testing.T) {
	def := &Definition{
		Name: "broken",
		Steps: []Step{
			{Tool: "mesh_bevel", Params: map[string]any{"width": "$missing"}},
		},
	}
	_, err := NewExpander(nil).Expand(def, "", testExprCtx(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$missing")
}

func TestApplyConditionsDeduplicatesModeSwitch(t *testing.T) {
	e := NewExpander(nil)
	steps := []ExpandedStep{
		{Call: toolcall.SetMode(toolcall.ModeEdit), Condition: "current_mode != 'EDIT'"},
		{Call: toolcall.New("mesh_subdivide", map[string]any{"cuts": 2})},
		{Call: toolcall.SetMode(toolcall.ModeEdit), Condition: "current_mode != 'EDIT'"},
		{Call: toolcall.New("mesh_bevel", map[string]any{"width": 0.01})},
	}
	sim := eval.SimContext{Mode: toolcall.ModeObject}

	kept, err := e.ApplyConditions(steps, sim)
	require.NoError(t, err)

	// The first guard fires and advances the simulation, so the second
	// identical guard evaluates false and its step drops.
	require.Len(t, kept, 3)
	assert.Equal(t, toolcall.ToolSetMode, kept[0].Call.Tool)
	assert.Equal(t, "mesh_subdivide", kept[1].Call.Tool)
	assert.Equal(t, "mesh_bevel", kept[2].Call.Tool)
}

func TestApplyConditionsSkipsWhenAlreadyInMode(t *testing.T) {
	e := NewExpander(nil)
	steps := []ExpandedStep{
		{Call: toolcall.SetMode(toolcall.ModeEdit), Condition: "current_mode != 'EDIT'"},
		{Call: toolcall.SelectAll(), Condition: "not has_selection"},
		{Call: toolcall.New("mesh_subdivide", map[string]any{"cuts": 2})},
	}
	sim := eval.SimContext{Mode: toolcall.ModeEdit, HasSelection: true}

	kept, err := e.ApplyConditions(steps, sim)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "mesh_subdivide", kept[0].Call.Tool)
}

func TestApplyConditionsBadExpressionErrors(t *testing.T) {
	e := NewExpander(nil)
	steps := []ExpandedStep{
		{Call: toolcall.New("mesh_bevel", nil), Condition: "no_such_field > 1"},
	}
	_, err := e.ApplyConditions(steps, eval.SimContext{Mode: toolcall.ModeObject})
	require.Error(t, err)
	var evalErr *eval.EvaluationError
	assert.ErrorAs(t, err, &evalErr)
}
