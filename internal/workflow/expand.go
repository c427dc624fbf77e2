package workflow

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/voxelhq/scenepilot/internal/eval"
	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/toolcall"
)

// ExpandedStep is one concrete step with its adaptation metadata and its
// not-yet-evaluated condition. Conditions are evaluated after confidence
// adaptation, because dropped steps must not advance the simulation that
// later conditions observe.
type ExpandedStep struct {
	Call              toolcall.ToolCall
	Description       string
	Condition         string
	Optional          bool
	Tags              []string
	DisableAdaptation bool
}

// Expander turns a definition plus context into concrete steps. It holds
// no state, so expansion is pure: identical inputs yield identical output.
type Expander struct {
	log *slog.Logger
}

// NewExpander builds an expander.
func NewExpander(log *slog.Logger) *Expander {
	if log == nil {
		log = logging.Nop()
	}
	return &Expander{log: log}
}

// Expand resolves defaults, modifiers, loops and templates, in that
// order. invokingText selects modifiers by case-insensitive keyword
// phrase; explicit params win over both.
func (e *Expander) Expand(def *Definition, invokingText string, exprCtx map[string]float64, explicit map[string]any) ([]ExpandedStep, error) {
	vars := map[string]any{}
	for k, v := range def.Defaults {
		vars[k] = v
	}
	for k, v := range MatchedModifiers(def, invokingText) {
		vars[k] = v
	}
	for k, v := range explicit {
		vars[k] = v
	}

	var out []ExpandedStep
	for i, step := range def.Steps {
		instances := []Step{step}
		if step.Loop != nil {
			instances = unrollLoop(step)
		}
		for _, inst := range instances {
			resolved, err := e.resolveStep(inst, exprCtx, vars)
			if err != nil {
				return nil, fmt.Errorf("workflow %s step %d (%s): %w", def.Name, i+1, inst.Tool, err)
			}
			out = append(out, resolved)
		}
	}
	return out, nil
}

// MatchedModifiers collects the variable overrides of every modifier
// whose key phrase occurs in text, case-insensitively. Phrases apply in
// sorted order, so when two matched phrases set the same variable the
// winner does not depend on map iteration order.
func MatchedModifiers(def *Definition, text string) map[string]any {
	lowered := strings.ToLower(text)
	phrases := make([]string, 0, len(def.Modifiers))
	for phrase := range def.Modifiers {
		if phrase != "" && strings.Contains(lowered, strings.ToLower(phrase)) {
			phrases = append(phrases, phrase)
		}
	}
	sort.Strings(phrases)
	out := make(map[string]any, len(phrases))
	for _, phrase := range phrases {
		for k, v := range def.Modifiers[phrase] {
			out[k] = v
		}
	}
	return out
}

// ApplyConditions evaluates step conditions against the simulated scene
// context, dropping steps whose guard is false. Kept steps advance the
// simulation by their known side effects; dropped steps do not.
func (e *Expander) ApplyConditions(steps []ExpandedStep, sim eval.SimContext) ([]ExpandedStep, error) {
	var kept []ExpandedStep
	for _, step := range steps {
		if step.Condition != "" {
			ok, err := eval.EvaluateCond(step.Condition, sim)
			if err != nil {
				return nil, fmt.Errorf("condition on %s: %w", step.Call.Tool, err)
			}
			if !ok {
				e.log.Debug("step dropped by condition", "tool", step.Call.Tool, "condition", step.Condition)
				continue
			}
		}
		sim.Advance(step.Call)
		kept = append(kept, step)
	}
	return kept, nil
}

func (e *Expander) resolveStep(step Step, exprCtx map[string]float64, vars map[string]any) (ExpandedStep, error) {
	params := make(map[string]any, len(step.Params))
	for key, raw := range step.Params {
		v, err := resolveValue(raw, exprCtx, vars)
		if err != nil {
			return ExpandedStep{}, fmt.Errorf("param %s: %w", key, err)
		}
		params[key] = v
	}
	return ExpandedStep{
		Call:              toolcall.New(step.Tool, params),
		Description:       step.Description,
		Condition:         step.Condition,
		Optional:          step.Optional,
		Tags:              step.Tags,
		DisableAdaptation: step.DisableAdaptation,
	}, nil
}

// unrollLoop replicates a step once per loop item, substituting {key}
// placeholders in the tool name, description and string param values.
func unrollLoop(step Step) []Step {
	out := make([]Step, 0, len(step.Loop.Items))
	for _, item := range step.Loop.Items {
		inst := step
		inst.Loop = nil
		inst.Tool = substituteText(step.Tool, item)
		if step.Description != "" {
			inst.Description = substituteText(step.Description, item)
		}
		params := make(map[string]any, len(step.Params))
		for k, v := range step.Params {
			params[k] = substituteAny(v, item)
		}
		inst.Params = params
		out = append(out, inst)
	}
	return out
}

func substituteAny(v any, item map[string]any) any {
	switch val := v.(type) {
	case string:
		return substitutePlaceholders(val, item)
	case []any:
		cp := make([]any, len(val))
		for i, el := range val {
			cp[i] = substituteAny(el, item)
		}
		return cp
	default:
		return v
	}
}

func substituteText(s string, item map[string]any) string {
	if v, ok := substitutePlaceholders(s, item).(string); ok {
		return v
	}
	return fmt.Sprintf("%v", substitutePlaceholders(s, item))
}

// substitutePlaceholders replaces {key} tokens. A string that is exactly
// one placeholder takes the item's typed value; otherwise substitution is
// textual.
func substitutePlaceholders(s string, item map[string]any) any {
	for key, v := range item {
		token := "{" + key + "}"
		if s == token {
			return v
		}
		if strings.Contains(s, token) {
			s = strings.ReplaceAll(s, token, fmt.Sprintf("%v", v))
		}
	}
	return s
}
