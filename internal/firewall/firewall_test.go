package firewall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhq/scenepilot/internal/scene"
	"github.com/voxelhq/scenepilot/internal/toolcall"
)

func objectModeScene() scene.Context {
	return scene.Context{
		Mode:        "OBJECT",
		ObjectCount: 1,
		Dimensions:  [3]float64{1, 1, 0.2},
		Proportions: scene.DeriveProportions(1, 1, 0.2),
		Timestamp:   time.Now(),
	}
}

func TestMeshToolInObjectModeAutoFixes(t *testing.T) {
	e := NewEngine(nil)

	tools := []string{"mesh_bevel", "mesh_subdivide", "mesh_inset"}
	for _, tool := range tools {
		res := e.Validate(toolcall.New(tool, nil), objectModeScene())
		assert.Equal(t, AutoFix, res.Action, tool)
		require.Len(t, res.PreSteps, 1, tool)
		assert.Equal(t, toolcall.SetMode("EDIT"), res.PreSteps[0], tool)
	}
}

func TestModelingToolInEditModeAutoFixes(t *testing.T) {
	e := NewEngine(nil)
	c := objectModeScene()
	c.Mode = "EDIT"

	res := e.Validate(toolcall.New("modeling_add_cube", nil), c)
	assert.Equal(t, AutoFix, res.Action)
	require.Len(t, res.PreSteps, 1)
	assert.Equal(t, toolcall.SetMode("OBJECT"), res.PreSteps[0])
}

func TestExtrudeWithEmptySelectionSelectsAll(t *testing.T) {
	e := NewEngine(nil)
	c := objectModeScene()
	c.Mode = "EDIT"

	res := e.Validate(toolcall.New("mesh_extrude_region", nil), c)
	assert.Equal(t, AutoFix, res.Action)
	require.Len(t, res.PreSteps, 1)
	assert.Equal(t, toolcall.SelectAll(), res.PreSteps[0])
}

func TestBevelWidthClampedToHalfMinDim(t *testing.T) {
	e := NewEngine(nil)
	c := objectModeScene()
	c.Mode = "EDIT"
	c.Selection.Verts = 4

	res := e.Validate(toolcall.New("mesh_bevel", map[string]any{"width": 5.0}), c)
	assert.Equal(t, Modify, res.Action)
	require.NotNil(t, res.ModifiedCall)
	assert.Equal(t, 0.1, res.ModifiedCall.Params["width"]) // min_dim 0.2 / 2

	// In range: untouched.
	res = e.Validate(toolcall.New("mesh_bevel", map[string]any{"width": 0.05}), c)
	assert.Equal(t, Allow, res.Action)
}

func TestDeleteInEmptySceneIsBlocked(t *testing.T) {
	e := NewEngine(nil)
	c := scene.Empty()

	res := e.Validate(toolcall.New("mesh_delete", map[string]any{"type": "VERT"}), c)
	assert.Equal(t, Block, res.Action)
	assert.NotEmpty(t, res.Message)
	assert.Contains(t, res.Violations, "delete_in_empty_scene")
}

func TestUnmatchedCallIsAllowed(t *testing.T) {
	e := NewEngine(nil)

	res := e.Validate(toolcall.New("export_gltf", nil), objectModeScene())
	assert.Equal(t, Allow, res.Action)
	assert.Empty(t, res.Violations)
}

func TestRegisterRuleOrderMatters(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.RegisterRule(Rule{
		Name:         "warn_on_boolean",
		ToolContains: "boolean",
		Action:       Warn,
		Message:      "boolean ops can produce non-manifold geometry",
	}))

	res := e.Validate(toolcall.New("modeling_boolean_union", nil), objectModeScene())
	assert.Equal(t, Warn, res.Action)

	// A registered rule never outranks an earlier canonical match.
	require.NoError(t, e.RegisterRule(Rule{
		Name:         "late_delete_rule",
		ToolContains: "delete",
		Action:       Warn,
	}))
	res = e.Validate(toolcall.New("mesh_delete", nil), scene.Empty())
	assert.Equal(t, Block, res.Action)
}

func TestSchemaValidationBlocksBadParams(t *testing.T) {
	e := NewEngine(nil)
	schema := []byte(`{
		"type": "object",
		"properties": {
			"width": {"type": "number", "minimum": 0}
		},
		"required": ["width"]
	}`)
	require.NoError(t, e.RegisterSchema("mesh_bevel", schema))

	c := objectModeScene()
	c.Mode = "EDIT"
	c.Selection.Verts = 4

	res := e.Validate(toolcall.New("mesh_bevel", map[string]any{"width": "wide"}), c)
	assert.Equal(t, Block, res.Action)
	assert.Contains(t, res.Violations, "schema")

	res = e.Validate(toolcall.New("mesh_bevel", map[string]any{"width": 0.05}), c)
	assert.Equal(t, Allow, res.Action)

	assert.Error(t, e.RegisterSchema("mesh_bevel", []byte(`{"type":`)))
}
