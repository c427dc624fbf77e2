package eval

import (
	"strconv"
	"strings"
	"unicode"
)

// autoConstants maps each $AUTO_* name to its formula over the numeric
// context. The formulas are plain expression strings evaluated by
// EvaluateExpr, so the table is data that tests can enumerate.
var autoConstants = map[string]string{
	"AUTO_BEVEL":            "min_dim * 0.05",
	"AUTO_INSET":            "min_dim * 0.02",
	"AUTO_EXTRUDE":          "max_dim * 0.1",
	"AUTO_SCREEN_DEPTH":     "depth * 0.5",
	"AUTO_SCREEN_DEPTH_NEG": "depth * -0.5",
	"AUTO_LOOP_OFFSET":      "height * 0.25",
	"AUTO_WALL_THICKNESS":   "min_dim * 0.1",
}

// AutoConstantNames returns the registered $AUTO_* names without prefix.
func AutoConstantNames() []string {
	names := make([]string, 0, len(autoConstants))
	for name := range autoConstants {
		names = append(names, name)
	}
	return names
}

// ResolveAuto evaluates one named constant (name given without the "$"
// prefix, e.g. "AUTO_BEVEL") against ctx.
func ResolveAuto(name string, ctx map[string]float64) (float64, error) {
	formula, ok := autoConstants[name]
	if !ok {
		return 0, evalErr("$"+name, "unknown auto constant")
	}
	return EvaluateExpr(formula, ctx)
}

// SubstituteAuto replaces every $AUTO_* token in expr with its computed
// numeric value. Runs as a preprocessing pass before expression parsing.
func SubstituteAuto(expr string, ctx map[string]float64) (string, error) {
	if !strings.Contains(expr, "$AUTO_") {
		return expr, nil
	}
	var sb strings.Builder
	i := 0
	for i < len(expr) {
		if expr[i] != '$' {
			sb.WriteByte(expr[i])
			i++
			continue
		}
		j := i + 1
		for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_') {
			j++
		}
		name := expr[i+1 : j]
		if !strings.HasPrefix(name, "AUTO_") {
			return "", evalErr(expr, "unexpected token $%s", name)
		}
		v, err := ResolveAuto(name, ctx)
		if err != nil {
			return "", err
		}
		// Plain decimal form: the expression lexer does not read the
		// exponent notation 'g' emits for very small values.
		sb.WriteString("(" + strconv.FormatFloat(v, 'f', -1, 64) + ")")
		i = j
	}
	return sb.String(), nil
}
