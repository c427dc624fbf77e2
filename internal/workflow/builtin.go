package workflow

import "github.com/voxelhq/scenepilot/internal/toolcall"

// builtinDefinitions returns the shipped workflow set. These are authored
// in Go rather than YAML so the binary works with no data files, but they
// follow the same schema users author against.
func builtinDefinitions() []*Definition {
	return []*Definition{
		towerWorkflow(),
		phoneWorkflow(),
		tableWorkflow(),
		pillarWorkflow(),
		wheelWorkflow(),
	}
}

func f64(v float64) *float64 { return &v }

func towerWorkflow() *Definition {
	return &Definition{
		Name:            "tower_workflow",
		Description:     "Turn a tall primitive into a tapered tower with ledges and a roof",
		Category:        "architecture",
		TriggerKeywords: []string{"tower", "turret", "spire"},
		TriggerPattern:  "tower_like",
		Defaults: map[string]any{
			"taper":      0.7,
			"taper_cuts": 3,
			"ledge":      "$AUTO_LOOP_OFFSET",
		},
		Modifiers: map[string]map[string]any{
			"thin":  {"taper": 0.5},
			"thick": {"taper": 0.85},
			"tall":  {"taper_cuts": 5},
		},
		Parameters: map[string]ParameterSchema{
			"taper": {
				Type: "float", Min: f64(0.1), Max: f64(1.0), Default: 0.7,
				Description:   "how much the top narrows relative to the base",
				SemanticHints: []string{"taper", "narrow", "slim", "pointed"},
				Group:         "shape",
			},
			"taper_cuts": {
				Type: "int", Min: f64(1), Max: f64(6), Default: 3,
				Description:   "horizontal cuts distributing the taper",
				SemanticHints: []string{"cuts", "segments", "floors"},
				Group:         "shape",
			},
		},
		Steps: []Step{
			{
				Tool:        toolcall.ToolSetMode,
				Params:      map[string]any{"mode": toolcall.ModeEdit},
				Condition:   "current_mode != 'EDIT'",
				Description: "enter edit mode",
			},
			{
				Tool:        toolcall.ToolMeshSelect,
				Params:      map[string]any{"action": "all"},
				Condition:   "not has_selection",
				Description: "select the whole mesh",
			},
			{
				Tool:        "mesh_subdivide",
				Params:      map[string]any{"cuts": "$taper_cuts"},
				Description: "add horizontal cuts for the taper",
			},
			{
				Tool:        "mesh_select_loop",
				Params:      map[string]any{"position": "top"},
				Description: "select the top loop",
			},
			{
				Tool:        "mesh_transform",
				Params:      map[string]any{"scale": []any{"$taper", "$taper", 1.0}},
				Description: "taper the top inward",
			},
			{
				Tool:        "mesh_bevel",
				Params:      map[string]any{"width": "$ledge", "segments": 2},
				Description: "cut a ledge ring under the top",
				Optional:    true,
				Tags:        []string{"ledge", "ring", "detail"},
			},
			{
				Tool:        "mesh_extrude_region",
				Params:      map[string]any{"depth": "$CALCULATE(height * 0.15)"},
				Description: "raise a roof cap",
				Optional:    true,
				Tags:        []string{"roof", "cap", "spire"},
			},
		},
	}
}

func phoneWorkflow() *Definition {
	return &Definition{
		Name:            "phone_workflow",
		Description:     "Shape a flat slab into a phone body with a recessed screen",
		Category:        "product",
		TriggerKeywords: []string{"phone", "smartphone", "handset"},
		TriggerPattern:  "phone_like",
		Defaults: map[string]any{
			"corner_radius": "$AUTO_BEVEL",
			"screen_inset":  "$AUTO_INSET",
			"screen_depth":  "$AUTO_SCREEN_DEPTH_NEG",
		},
		Modifiers: map[string]map[string]any{
			"rounded": {"corner_radius": "$CALCULATE(min_dim * 0.12)"},
			"sharp":   {"corner_radius": "$CALCULATE(min_dim * 0.02)"},
		},
		Parameters: map[string]ParameterSchema{
			"corner_radius": {
				Type: "float", Min: f64(0.001), Max: f64(0.5),
				Description:   "rounding applied to the body edges",
				SemanticHints: []string{"rounded", "corner", "radius", "soft"},
				Group:         "body",
			},
			"screen_inset": {
				Type: "float", Min: f64(0.001), Max: f64(0.2),
				Description:   "bezel width around the screen face",
				SemanticHints: []string{"bezel", "border", "inset", "screen"},
				Group:         "screen",
			},
		},
		Steps: []Step{
			{
				Tool:        toolcall.ToolSetMode,
				Params:      map[string]any{"mode": toolcall.ModeEdit},
				Condition:   "current_mode != 'EDIT'",
				Description: "enter edit mode",
			},
			{
				Tool:        toolcall.ToolMeshSelect,
				Params:      map[string]any{"action": "all"},
				Condition:   "not has_selection",
				Description: "select the whole slab",
			},
			{
				Tool:        "mesh_bevel",
				Params:      map[string]any{"width": "$corner_radius", "segments": 3},
				Description: "round the body edges",
			},
			{
				Tool:        "mesh_select_face",
				Params:      map[string]any{"position": "top"},
				Description: "pick the screen face",
			},
			{
				Tool:        "mesh_inset",
				Params:      map[string]any{"thickness": "$screen_inset"},
				Description: "inset the bezel",
			},
			{
				Tool:        "mesh_extrude_region",
				Params:      map[string]any{"depth": "$screen_depth"},
				Description: "recess the screen",
			},
			{
				Tool:        "mesh_inset",
				Params:      map[string]any{"thickness": "$CALCULATE(min_dim * 0.01)"},
				Description: "trace a camera ring detail",
				Optional:    true,
				Tags:        []string{"camera", "lens", "detail"},
			},
		},
	}
}

func tableWorkflow() *Definition {
	return &Definition{
		Name:            "table_workflow",
		Description:     "Build a table top with four extruded corner legs",
		Category:        "furniture",
		TriggerKeywords: []string{"table", "desk", "bench"},
		TriggerPattern:  "table_like",
		Defaults: map[string]any{
			"leg_length": "$CALCULATE(max_dim * 0.8)",
			"leg_inset":  "$CALCULATE(min_dim * 0.1)",
			"top_bevel":  "$AUTO_BEVEL",
		},
		Modifiers: map[string]map[string]any{
			"low":  {"leg_length": "$CALCULATE(max_dim * 0.4)"},
			"high": {"leg_length": "$CALCULATE(max_dim * 1.2)"},
		},
		Parameters: map[string]ParameterSchema{
			"leg_length": {
				Type: "float", Min: f64(0.01), Max: f64(100),
				Description:   "how far the legs extend below the top",
				SemanticHints: []string{"leg", "height", "tall", "low"},
				Group:         "legs",
			},
			"leg_inset": {
				Type: "float", Min: f64(0.001), Max: f64(1),
				Description:   "distance from the top's edge to each leg",
				SemanticHints: []string{"inset", "corner", "spread"},
				Group:         "legs",
			},
		},
		Steps: []Step{
			{
				Tool:        toolcall.ToolSetMode,
				Params:      map[string]any{"mode": toolcall.ModeEdit},
				Condition:   "current_mode != 'EDIT'",
				Description: "enter edit mode",
			},
			{
				Tool:        "mesh_select_face",
				Params:      map[string]any{"position": "bottom_{corner}"},
				Description: "select the {corner} corner of the underside",
				Loop: &LoopSpec{Items: []map[string]any{
					{"corner": "front_left"},
					{"corner": "front_right"},
					{"corner": "back_left"},
					{"corner": "back_right"},
				}},
			},
			{
				Tool:        "mesh_inset",
				Params:      map[string]any{"thickness": "$leg_inset"},
				Description: "size the leg footprints",
			},
			{
				Tool:        "mesh_extrude_region",
				Params:      map[string]any{"depth": "$CALCULATE(0 - $leg_length)"},
				Description: "extrude the legs downward",
			},
			{
				Tool:        toolcall.ToolMeshSelect,
				Params:      map[string]any{"action": "all"},
				Description: "reselect everything for finishing",
			},
			{
				Tool:        "mesh_bevel",
				Params:      map[string]any{"width": "$top_bevel", "segments": 2},
				Description: "soften the table edges",
				Optional:    true,
				Tags:        []string{"bevel", "soft", "rounded", "edge"},
			},
		},
	}
}

func pillarWorkflow() *Definition {
	return &Definition{
		Name:            "pillar_workflow",
		Description:     "Dress a column with base and capital rings",
		Category:        "architecture",
		TriggerKeywords: []string{"pillar", "column", "post"},
		TriggerPattern:  "pillar_like",
		Defaults: map[string]any{
			"ring_offset": "$AUTO_LOOP_OFFSET",
			"ring_scale":  1.15,
		},
		Modifiers: map[string]map[string]any{
			"ornate": {"ring_scale": 1.3},
			"plain":  {"ring_scale": 1.05},
		},
		Parameters: map[string]ParameterSchema{
			"ring_scale": {
				Type: "float", Min: f64(1.0), Max: f64(2.0), Default: 1.15,
				Description:   "how far the base and capital flare outward",
				SemanticHints: []string{"flare", "ornate", "ring", "capital"},
				Group:         "shape",
			},
		},
		Steps: []Step{
			{
				Tool:        toolcall.ToolSetMode,
				Params:      map[string]any{"mode": toolcall.ModeEdit},
				Condition:   "current_mode != 'EDIT'",
				Description: "enter edit mode",
			},
			{
				Tool:        toolcall.ToolMeshSelect,
				Params:      map[string]any{"action": "all"},
				Condition:   "not has_selection",
				Description: "select the column",
			},
			{
				Tool:        "mesh_select_loop",
				Params:      map[string]any{"position": "{end}", "offset": "$ring_offset"},
				Description: "select the {end} ring",
				Loop: &LoopSpec{Items: []map[string]any{
					{"end": "bottom"},
					{"end": "top"},
				}},
			},
			{
				Tool:        "mesh_transform",
				Params:      map[string]any{"scale": []any{"$ring_scale", "$ring_scale", 1.0}},
				Description: "flare the selected rings",
			},
			{
				Tool:        "mesh_bevel",
				Params:      map[string]any{"width": "$AUTO_BEVEL", "segments": 2},
				Description: "soften the ring edges",
				Optional:    true,
				Tags:        []string{"bevel", "soft", "detail"},
			},
		},
	}
}

func wheelWorkflow() *Definition {
	return &Definition{
		Name:            "wheel_workflow",
		Description:     "Hollow a disc into a rim with a hub",
		Category:        "mechanical",
		TriggerKeywords: []string{"wheel", "tire", "rim", "gear"},
		TriggerPattern:  "wheel_like",
		Defaults: map[string]any{
			"rim_width":  "$CALCULATE(max_dim * 0.15)",
			"hub_radius": "$CALCULATE(max_dim * 0.2)",
		},
		Modifiers: map[string]map[string]any{
			"wide":   {"rim_width": "$CALCULATE(max_dim * 0.25)"},
			"narrow": {"rim_width": "$CALCULATE(max_dim * 0.08)"},
		},
		Parameters: map[string]ParameterSchema{
			"rim_width": {
				Type: "float", Min: f64(0.001), Max: f64(10),
				Description:   "radial thickness of the outer rim",
				SemanticHints: []string{"rim", "wide", "narrow", "thick"},
				Group:         "shape",
			},
		},
		Steps: []Step{
			{
				Tool:        toolcall.ToolSetMode,
				Params:      map[string]any{"mode": toolcall.ModeEdit},
				Condition:   "current_mode != 'EDIT'",
				Description: "enter edit mode",
			},
			{
				Tool:        "mesh_select_face",
				Params:      map[string]any{"position": "front"},
				Description: "select the disc face",
			},
			{
				Tool:        "mesh_inset",
				Params:      map[string]any{"thickness": "$rim_width"},
				Description: "mark the rim band",
			},
			{
				Tool:        "mesh_extrude_region",
				Params:      map[string]any{"depth": "$AUTO_SCREEN_DEPTH_NEG"},
				Description: "sink the web between rim and hub",
			},
			{
				Tool:        "mesh_inset",
				Params:      map[string]any{"thickness": "$hub_radius"},
				Description: "mark the hub",
			},
			{
				Tool:        "mesh_extrude_region",
				Params:      map[string]any{"depth": "$AUTO_EXTRUDE"},
				Description: "raise the hub boss",
				Optional:    true,
				Tags:        []string{"hub", "boss", "axle"},
			},
		},
	}
}
