// Package firewall is the final safety pass over a candidate call before
// it is handed to the outer dispatch layer. Rules are ordered data
// records built from a small closed set of predicate fields; first match
// wins and an unmatched call is allowed.
package firewall

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/scene"
	"github.com/voxelhq/scenepilot/internal/toolcall"
)

// Action is what the firewall decided about a call.
type Action string

const (
	Allow   Action = "ALLOW"
	Block   Action = "BLOCK"
	AutoFix Action = "AUTO_FIX"
	Modify  Action = "MODIFY"
	Warn    Action = "WARN"
)

// Fix is the closed set of repairs an AUTO_FIX/MODIFY rule can apply.
type Fix string

const (
	FixNone         Fix = ""
	FixSwitchEdit   Fix = "switch_edit"
	FixSwitchObject Fix = "switch_object"
	FixSelectAll    Fix = "select_all"
	FixClampParam   Fix = "clamp_param" // clamp Param to half the smallest dimension
)

// Rule matches on tool name shape plus scene predicates. Zero-valued
// predicate fields are ignored; the populated ones must all hold.
type Rule struct {
	Name           string
	ToolPrefix     string // match tool by prefix
	ToolContains   string // match tool by substring
	Mode           string // require current mode
	EmptySelection bool   // require no active selection
	EmptyScene     bool   // require zero objects in the scene
	Param          string // for FixClampParam: the param to bound
	Action         Action
	Fix            Fix
	Message        string
}

// Result is the firewall's verdict. ModifiedCall is set for MODIFY,
// PreSteps for AUTO_FIX; Violations names the matched rules.
type Result struct {
	Action       Action
	Message      string
	ModifiedCall *toolcall.ToolCall
	PreSteps     []toolcall.ToolCall
	Violations   []string
}

// Engine evaluates the ordered rule table. RegisterRule appends at
// runtime, mirroring the override engine.
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	schemas *schemaSet
	log     *slog.Logger
}

// NewEngine builds an engine preloaded with the canonical rules.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{rules: canonicalRules(), schemas: newSchemaSet(), log: log}
}

// RegisterRule appends a rule to the table.
func (e *Engine) RegisterRule(r Rule) error {
	if r.Name == "" || r.Action == "" {
		return fmt.Errorf("firewall rule %q: name and action are required", r.Name)
	}
	if r.Fix == FixClampParam && r.Param == "" {
		return fmt.Errorf("firewall rule %q: clamp fix needs a param name", r.Name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
	return nil
}

// RuleCount reports how many rules are registered.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// RegisterSchema attaches a JSON schema to a tool name; calls to that tool
// are validated against it before the rule table runs.
func (e *Engine) RegisterSchema(tool string, schema []byte) error {
	return e.schemas.register(tool, schema)
}

// Validate runs the schema check and then the rule table against one call.
func (e *Engine) Validate(call toolcall.ToolCall, c scene.Context) Result {
	if err := e.schemas.validate(call.Tool, call.Params); err != nil {
		return Result{
			Action:     Block,
			Message:    fmt.Sprintf("params for %s rejected by schema: %v", call.Tool, err),
			Violations: []string{"schema"},
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.rules {
		if !e.matches(r, call, c) {
			continue
		}
		res := Result{Action: r.Action, Message: r.Message, Violations: []string{r.Name}}
		switch r.Fix {
		case FixSwitchEdit:
			res.PreSteps = []toolcall.ToolCall{toolcall.SetMode(toolcall.ModeEdit)}
		case FixSwitchObject:
			res.PreSteps = []toolcall.ToolCall{toolcall.SetMode(toolcall.ModeObject)}
		case FixSelectAll:
			res.PreSteps = []toolcall.ToolCall{toolcall.SelectAll()}
		case FixClampParam:
			bound := c.Proportions.MinDim / 2
			fixed := call.WithParam(r.Param, bound)
			res.ModifiedCall = &fixed
			res.Message = fmt.Sprintf("%s (clamped %s to %g)", r.Message, r.Param, bound)
		}
		if r.Action != Allow {
			e.log.Info("firewall verdict", "rule", r.Name, "tool", call.Tool, "action", r.Action)
		}
		return res
	}
	return Result{Action: Allow}
}

func (e *Engine) matches(r Rule, call toolcall.ToolCall, c scene.Context) bool {
	if r.ToolPrefix != "" && !strings.HasPrefix(call.Tool, r.ToolPrefix) {
		return false
	}
	if r.ToolContains != "" && !strings.Contains(call.Tool, r.ToolContains) {
		return false
	}
	if r.Mode != "" && !strings.EqualFold(c.Mode, r.Mode) {
		return false
	}
	if r.EmptySelection && c.HasSelection() {
		return false
	}
	if r.EmptyScene && c.ObjectCount > 0 {
		return false
	}
	if r.Fix == FixClampParam {
		v, ok := numParam(call.Params[r.Param])
		if !ok || c.Proportions.MinDim <= 0 || v <= c.Proportions.MinDim/2 {
			return false
		}
	}
	return true
}

func canonicalRules() []Rule {
	return []Rule{
		{
			Name:         "delete_in_empty_scene",
			ToolContains: "delete",
			EmptyScene:   true,
			Action:       Block,
			Message:      "refusing delete: the scene has no objects",
		},
		{
			Name:       "mesh_tool_in_object_mode",
			ToolPrefix: "mesh_",
			Mode:       toolcall.ModeObject,
			Action:     AutoFix,
			Fix:        FixSwitchEdit,
			Message:    "mesh tools require edit mode; switching",
		},
		{
			Name:       "modeling_tool_in_edit_mode",
			ToolPrefix: "modeling_",
			Mode:       toolcall.ModeEdit,
			Action:     AutoFix,
			Fix:        FixSwitchObject,
			Message:    "modeling tools require object mode; switching",
		},
		{
			Name:           "extrude_with_empty_selection",
			ToolContains:   "extrude",
			EmptySelection: true,
			Action:         AutoFix,
			Fix:            FixSelectAll,
			Message:        "extrude needs a selection; selecting all",
		},
		{
			Name:         "bevel_offset_exceeds_geometry",
			ToolContains: "bevel",
			Param:        "width",
			Action:       Modify,
			Fix:          FixClampParam,
			Message:      "bevel width exceeds half the smallest dimension",
		},
	}
}

func numParam(v any) (float64, bool) {
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
