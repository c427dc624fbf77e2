// Package correct rewrites a requested tool call so it can succeed in the
// current application state: out-of-range parameters are clamped and
// missing mode/selection prerequisites are synthesized as pre-steps.
package correct

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/toolcall"
)

// Limit is an inclusive numeric range for one parameter.
type Limit struct {
	Tool  string // tool-name prefix; empty matches any tool
	Param string
	Min   float64
	Max   float64
}

// DefaultLimits is the built-in clamp table. First matching entry wins.
var DefaultLimits = []Limit{
	{Tool: "mesh_bevel", Param: "width", Min: 0.001, Max: 10},
	{Tool: "mesh_bevel", Param: "segments", Min: 1, Max: 10},
	{Tool: "mesh_subdivide", Param: "cuts", Min: 1, Max: 6},
	{Tool: "modeling_decimate", Param: "ratio", Min: 0.01, Max: 1.0},
	{Param: "segments", Min: 1, Max: 10},
	{Param: "ratio", Min: 0.01, Max: 1.0},
}

// Result is a corrected call plus the prerequisite calls that must run
// first, with one named entry per applied correction for observability.
type Result struct {
	Corrected toolcall.ToolCall
	PreSteps  []toolcall.ToolCall
	Applied   []string
}

// Engine applies the clamp table and prerequisite rules. Correction is
// deterministic and idempotent: correcting an already-correct call in its
// resulting mode yields no further changes.
type Engine struct {
	limits []Limit
	log    *slog.Logger
}

// NewEngine builds an engine; nil limits means DefaultLimits.
func NewEngine(limits []Limit, log *slog.Logger) *Engine {
	if limits == nil {
		limits = DefaultLimits
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{limits: limits, log: log}
}

// Correct clamps params and prepends mode-switch / select-all steps as
// needed given the current mode and selection state.
func (e *Engine) Correct(tool string, params map[string]any, mode string, hasSelection bool) Result {
	res := Result{Corrected: toolcall.New(tool, params)}

	for key, raw := range res.Corrected.Params {
		limit, ok := e.limitFor(tool, key)
		if !ok {
			continue
		}
		value, ok := asFloat(raw)
		if !ok {
			continue
		}
		clamped := value
		if clamped < limit.Min {
			clamped = limit.Min
		}
		if clamped > limit.Max {
			clamped = limit.Max
		}
		if clamped != value {
			res.Corrected.Params[key] = clamped
			res.Applied = append(res.Applied,
				fmt.Sprintf("clamped %s.%s from %g to %g", tool, key, value, clamped))
		}
	}

	if required := toolcall.RequiredMode(tool); required != "" && !strings.EqualFold(mode, required) {
		res.PreSteps = append(res.PreSteps, toolcall.SetMode(required))
		res.Applied = append(res.Applied,
			fmt.Sprintf("switched mode %s -> %s for %s", mode, required, tool))
	}
	if toolcall.SelectionDependent(tool) && !hasSelection {
		res.PreSteps = append(res.PreSteps, toolcall.SelectAll())
		res.Applied = append(res.Applied,
			fmt.Sprintf("selected all: %s requires a selection", tool))
	}

	if len(res.Applied) > 0 {
		e.log.Debug("corrections applied", "tool", tool, "corrections", res.Applied)
	}
	return res
}

func (e *Engine) limitFor(tool, param string) (Limit, bool) {
	for _, l := range e.limits {
		if l.Param != param {
			continue
		}
		if l.Tool != "" && !strings.HasPrefix(tool, l.Tool) {
			continue
		}
		return l, true
	}
	return Limit{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
