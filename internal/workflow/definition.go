// Package workflow holds named multi-step templates and expands them into
// concrete tool-call sequences: defaults and keyword modifiers, loop
// replication, template resolution through the expression evaluator, and
// condition filtering against a simulated scene context.
package workflow

import "fmt"

// ValidationError rejects a malformed definition at load time. The
// offending file is skipped; loading continues for the rest.
type ValidationError struct {
	Name string
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return "invalid workflow: " + e.Msg
	}
	return fmt.Sprintf("invalid workflow %q: %s", e.Name, e.Msg)
}

// ParameterSchema describes one user-facing workflow parameter.
type ParameterSchema struct {
	Type          string   `yaml:"type"` // float, int, string, bool
	Min           *float64 `yaml:"min"`
	Max           *float64 `yaml:"max"`
	Default       any      `yaml:"default"`
	Description   string   `yaml:"description"`
	SemanticHints []string `yaml:"semantic_hints"`
	Group         string   `yaml:"group"`
}

// LoopSpec replicates a step once per item. Each item is a named-value
// map; {key} placeholders in the step's tool, params and description are
// substituted per item.
type LoopSpec struct {
	Items []map[string]any `yaml:"items"`
}

// Step is one templated entry in a workflow. Param values may be
// literals, $CALCULATE(expr), $AUTO_* constants or $variable references.
type Step struct {
	Tool              string         `yaml:"tool"`
	Params            map[string]any `yaml:"params"`
	Description       string         `yaml:"description"`
	Condition         string         `yaml:"condition"`
	Optional          bool           `yaml:"optional"`
	Tags              []string       `yaml:"tags"`
	DisableAdaptation bool           `yaml:"disable_adaptation"`
	Loop              *LoopSpec      `yaml:"loop"`
}

// Definition is one named workflow. Immutable after load; a reload
// replaces the registry entry wholesale.
type Definition struct {
	Name            string                     `yaml:"name"`
	Description     string                     `yaml:"description"`
	Category        string                     `yaml:"category"`
	TriggerKeywords []string                   `yaml:"trigger_keywords"`
	TriggerPattern  string                     `yaml:"trigger_pattern"`
	Defaults        map[string]any             `yaml:"defaults"`
	Modifiers       map[string]map[string]any  `yaml:"modifiers"`
	Parameters      map[string]ParameterSchema `yaml:"parameters"`
	Steps           []Step                     `yaml:"steps"`
}

// Validate checks the required fields. All-or-nothing per definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &ValidationError{Msg: "missing name"}
	}
	if len(d.Steps) == 0 {
		return &ValidationError{Name: d.Name, Msg: "missing or empty steps"}
	}
	for i, s := range d.Steps {
		if s.Tool == "" {
			return &ValidationError{Name: d.Name, Msg: fmt.Sprintf("step %d missing tool", i+1)}
		}
		if s.Loop != nil && len(s.Loop.Items) == 0 {
			return &ValidationError{Name: d.Name, Msg: fmt.Sprintf("step %d has a loop with no items", i+1)}
		}
	}
	return nil
}
