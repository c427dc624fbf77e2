// Package eval implements the template micro-language used by workflow
// definitions: arithmetic expressions ($CALCULATE bodies and $AUTO_*
// constants) and boolean step conditions evaluated against a simulated
// scene context.
package eval

import "fmt"

// EvaluationError reports a malformed expression, an unknown identifier or
// a division by zero. It is a hard error: it indicates an authoring bug in
// a workflow template, not a transient condition, so nothing recovers from
// it locally.
type EvaluationError struct {
	Expr string
	Msg  string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error in %q: %s", e.Expr, e.Msg)
}

func evalErr(expr, format string, args ...any) error {
	return &EvaluationError{Expr: expr, Msg: fmt.Sprintf(format, args...)}
}
