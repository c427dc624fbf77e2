package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/voxelhq/scenepilot/internal/eval"
)

// TemplateKind discriminates the template union.
type TemplateKind int

const (
	TemplateLiteral TemplateKind = iota
	TemplateCalculate
	TemplateAuto
	TemplateVar
)

// Template is a parsed step-param value. The string-prefix sniffing
// happens exactly once, here; resolution is a single exhaustive switch.
type Template struct {
	Kind    TemplateKind
	Literal any    // TemplateLiteral
	Expr    string // TemplateCalculate
	Name    string // TemplateAuto (without $), TemplateVar (without $)
}

// ParseTemplate classifies one raw param value.
func ParseTemplate(v any) Template {
	s, ok := v.(string)
	if !ok {
		return Template{Kind: TemplateLiteral, Literal: v}
	}
	switch {
	case strings.HasPrefix(s, "$CALCULATE(") && strings.HasSuffix(s, ")"):
		return Template{Kind: TemplateCalculate, Expr: s[len("$CALCULATE(") : len(s)-1]}
	case strings.HasPrefix(s, "$AUTO_"):
		return Template{Kind: TemplateAuto, Name: s[1:]}
	case strings.HasPrefix(s, "$") && len(s) > 1:
		return Template{Kind: TemplateVar, Name: s[1:]}
	default:
		return Template{Kind: TemplateLiteral, Literal: s}
	}
}

// Resolve produces the concrete value. exprCtx feeds $CALCULATE and
// $AUTO_*; vars feeds $variable lookups. A resolved variable's value is
// itself template-resolved, so a default like "$AUTO_BEVEL" works.
func (t Template) Resolve(exprCtx map[string]float64, vars map[string]any) (any, error) {
	switch t.Kind {
	case TemplateLiteral:
		return t.Literal, nil
	case TemplateCalculate:
		body, err := substituteVars(t.Expr, exprCtx, vars)
		if err != nil {
			return nil, err
		}
		v, err := eval.EvaluateExpr(body, exprCtx)
		if err != nil {
			return nil, err
		}
		return v, nil
	case TemplateAuto:
		v, err := eval.ResolveAuto(t.Name, exprCtx)
		if err != nil {
			return nil, err
		}
		return v, nil
	case TemplateVar:
		v, ok := vars[t.Name]
		if !ok {
			return nil, fmt.Errorf("unresolved workflow variable $%s", t.Name)
		}
		inner := ParseTemplate(v)
		if inner.Kind == TemplateVar {
			// One level of indirection is enough; deeper chains are an
			// authoring bug.
			return nil, fmt.Errorf("variable $%s resolves to another variable", t.Name)
		}
		return inner.Resolve(exprCtx, vars)
	default:
		return nil, fmt.Errorf("unknown template kind %d", t.Kind)
	}
}

// resolveValue resolves a raw param value, recursing into lists.
func resolveValue(v any, exprCtx map[string]float64, vars map[string]any) (any, error) {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			resolved, err := resolveValue(item, exprCtx, vars)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	}
	return ParseTemplate(v).Resolve(exprCtx, vars)
}

// substituteVars inlines variables referenced as $name inside a
// $CALCULATE body, leaving $AUTO_* for the evaluator. A referenced
// variable is template-resolved first, so a default that is itself a
// $CALCULATE or $AUTO_* expression inlines as its numeric value.
func substituteVars(expr string, exprCtx map[string]float64, vars map[string]any) (string, error) {
	if !strings.Contains(expr, "$") {
		return expr, nil
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		if !strings.HasPrefix(name, "AUTO_") {
			names = append(names, name)
		}
	}
	// Longest first so $taper_cuts is not clobbered by $taper.
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	out := expr
	for _, name := range names {
		token := "$" + name
		if !strings.Contains(out, token) {
			continue
		}
		resolved, err := ParseTemplate(vars[name]).Resolve(exprCtx, vars)
		if err != nil {
			return "", fmt.Errorf("variable $%s: %w", name, err)
		}
		out = strings.ReplaceAll(out, token, formatOperand(resolved))
	}
	return out, nil
}

// formatOperand renders a variable value as an expression operand. Floats
// use plain decimal notation; the lexer does not read scientific form.
func formatOperand(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
