// Package override replaces a requested tool call with a better call
// sequence when the detected geometric pattern warrants it. Rules are data
// records evaluated in registration order; first match wins.
package override

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/scene"
	"github.com/voxelhq/scenepilot/internal/toolcall"
)

// Replacement is one call in a rule's replacement sequence. Inherit lists
// param keys copied from the original call when present, so replacements
// keep user intent (e.g. an extrude distance) without hard-coding it.
type Replacement struct {
	Tool    string
	Params  map[string]any
	Inherit []string
}

// Rule triggers on an exact tool name plus a pattern type.
type Rule struct {
	Name         string
	Tool         string
	Pattern      string
	Replacements []Replacement
	Reason       string
}

// Decision is the outcome of an override check.
type Decision struct {
	ShouldOverride bool
	Replacements   []toolcall.ToolCall
	Reason         string
	RuleName       string
}

// Engine holds the ordered rule list. Register/Remove are safe to call at
// runtime.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
	log   *slog.Logger
}

// NewEngine builds an engine preloaded with the built-in rules.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{rules: builtinRules(), log: log}
}

// Register appends a rule. Later registrations lose to earlier ones when
// both match.
func (e *Engine) Register(r Rule) error {
	if r.Name == "" || r.Tool == "" || r.Pattern == "" || len(r.Replacements) == 0 {
		return fmt.Errorf("override rule %q: name, tool, pattern and replacements are required", r.Name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
	return nil
}

// Remove deletes a rule by name; it reports whether one was removed.
func (e *Engine) Remove(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// RuleCount reports how many rules are registered.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Check evaluates the rules against the requested call and the detected
// pattern. A nil pattern never triggers anything.
func (e *Engine) Check(tool string, params map[string]any, pattern *scene.DetectedPattern) Decision {
	if pattern == nil {
		return Decision{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if r.Tool != tool || r.Pattern != pattern.Type {
			continue
		}
		calls := make([]toolcall.ToolCall, 0, len(r.Replacements))
		for _, rep := range r.Replacements {
			call := toolcall.New(rep.Tool, rep.Params)
			for _, key := range rep.Inherit {
				if v, ok := params[key]; ok {
					call = call.WithParam(key, v)
				}
			}
			calls = append(calls, call)
		}
		e.log.Info("override triggered", "rule", r.Name, "tool", tool, "pattern", pattern.Type)
		return Decision{
			ShouldOverride: true,
			Replacements:   calls,
			Reason:         r.Reason,
			RuleName:       r.Name,
		}
	}
	return Decision{}
}

func builtinRules() []Rule {
	return []Rule{
		{
			Name:    "phone_inset_extrude",
			Tool:    "mesh_extrude_region",
			Pattern: scene.PatternPhoneLike,
			Replacements: []Replacement{
				{Tool: "mesh_inset", Params: map[string]any{"thickness": 0.02}},
				{Tool: "mesh_extrude_region", Params: map[string]any{"move": []any{0.0, 0.0, -0.02}}},
			},
			Reason: "flat phone-like body: inset then extrude inward to form the screen recess instead of extruding outward",
		},
		{
			Name:    "tower_taper_subdivide",
			Tool:    "mesh_subdivide",
			Pattern: scene.PatternTowerLike,
			Replacements: []Replacement{
				{Tool: "mesh_subdivide", Params: map[string]any{"cuts": 3}, Inherit: []string{"cuts"}},
				{Tool: "mesh_select_loop", Params: map[string]any{"position": "top"}},
				{Tool: "mesh_transform", Params: map[string]any{"scale": []any{0.8, 0.8, 1.0}}},
			},
			Reason: "tall tower-like body: subdivide then taper the top loop so the silhouette narrows with height",
		},
	}
}
