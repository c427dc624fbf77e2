package eval

import "github.com/voxelhq/scenepilot/internal/toolcall"

// SimContext is the simulated scene state that workflow step conditions
// observe during expansion. It starts from the real scene snapshot and is
// advanced by the known side effects of earlier kept steps, so later
// conditions see the effect of earlier steps without executing them.
type SimContext struct {
	Mode          string
	HasSelection  bool
	ObjectCount   int
	SelectedVerts int
	SelectedEdges int
	SelectedFaces int
	ActiveObject  string
}

// Lookup implements Scope for condition evaluation.
func (s SimContext) Lookup(name string) (any, bool) {
	switch name {
	case "current_mode":
		return s.Mode, true
	case "has_selection":
		return s.HasSelection, true
	case "object_count":
		return float64(s.ObjectCount), true
	case "selected_verts":
		return float64(s.SelectedVerts), true
	case "selected_edges":
		return float64(s.SelectedEdges), true
	case "selected_faces":
		return float64(s.SelectedFaces), true
	case "active_object":
		return s.ActiveObject, true
	default:
		return nil, false
	}
}

// Advance applies the known side effects of a kept step to the simulation.
//
// Known limitation: only mode switches and select-all/none shapes are
// modeled. A step with other side effects (say, creating a named object a
// later condition depends on) does not advance the simulation.
func (s *SimContext) Advance(call toolcall.ToolCall) {
	switch call.Tool {
	case toolcall.ToolSetMode:
		if mode, ok := call.Params["mode"].(string); ok && mode != "" {
			s.Mode = mode
		}
	case toolcall.ToolMeshSelect:
		action, _ := call.Params["action"].(string)
		switch action {
		case "all":
			s.HasSelection = true
		case "none", "deselect":
			s.HasSelection = false
			s.SelectedVerts = 0
			s.SelectedEdges = 0
			s.SelectedFaces = 0
		}
	}
}
