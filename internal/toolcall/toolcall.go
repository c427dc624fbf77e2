package toolcall

import "strings"

// Application modes the bridge understands.
const (
	ModeObject = "OBJECT"
	ModeEdit   = "EDIT"
	ModeSculpt = "SCULPT"
	ModePose   = "POSE"
)

// Well-known tools the router synthesizes as prerequisites.
const (
	ToolSetMode    = "system_set_mode"
	ToolMeshSelect = "mesh_select"
)

// ToolCall is one discrete operation request to the 3D application.
// Instances are treated as immutable: corrections and overrides build new
// calls with Clone rather than mutating params in place.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// New builds a call, copying params so the caller's map stays untouched.
func New(tool string, params map[string]any) ToolCall {
	return ToolCall{Tool: tool, Params: copyParams(params)}
}

// Clone returns a call whose params map is independent of the receiver's.
// Vector values ([]any / []float64) are copied one level deep; anything
// deeper is template data that is never mutated after construction.
func (c ToolCall) Clone() ToolCall {
	return ToolCall{Tool: c.Tool, Params: copyParams(c.Params)}
}

// WithParam returns a copy of the call with one param replaced.
func (c ToolCall) WithParam(key string, value any) ToolCall {
	out := c.Clone()
	if out.Params == nil {
		out.Params = map[string]any{}
	}
	out.Params[key] = value
	return out
}

func copyParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch vec := v.(type) {
		case []any:
			cp := make([]any, len(vec))
			copy(cp, vec)
			out[k] = cp
		case []float64:
			cp := make([]float64, len(vec))
			copy(cp, vec)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// SetMode builds the mode-switch prerequisite call.
func SetMode(mode string) ToolCall {
	return ToolCall{Tool: ToolSetMode, Params: map[string]any{"mode": mode}}
}

// SelectAll builds the select-all prerequisite call.
func SelectAll() ToolCall {
	return ToolCall{Tool: ToolMeshSelect, Params: map[string]any{"action": "all"}}
}

// RequiredMode maps a tool-name prefix to the mode the tool must run in.
// Empty string means the tool is mode-agnostic.
func RequiredMode(tool string) string {
	switch {
	case strings.HasPrefix(tool, "mesh_"):
		return ModeEdit
	case strings.HasPrefix(tool, "modeling_"):
		return ModeObject
	case strings.HasPrefix(tool, "sculpt_"):
		return ModeSculpt
	default:
		return ""
	}
}

// selectionDependent lists operation stems that require a non-empty
// selection to do anything meaningful.
var selectionDependent = []string{
	"extrude", "bevel", "inset", "delete", "duplicate", "transform",
}

// SelectionDependent reports whether the tool operates on the current
// selection.
func SelectionDependent(tool string) bool {
	if !strings.HasPrefix(tool, "mesh_") {
		return false
	}
	for _, stem := range selectionDependent {
		if strings.Contains(tool, stem) {
			return true
		}
	}
	return false
}
