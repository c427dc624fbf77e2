package eval

import (
	"strconv"
	"unicode"
)

// Scope resolves identifiers for condition evaluation. Lookup returns the
// value (string, bool, float64 or int) and whether the name is known.
type Scope interface {
	Lookup(name string) (any, bool)
}

// MapScope is a Scope backed by a plain map, used by the pattern detector
// rule tables and by tests.
type MapScope map[string]any

func (m MapScope) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// EvaluateCond evaluates a boolean guard expression against scope.
// Grammar: == != on strings/numbers/bools, < > <= >= on numbers, bare
// boolean identifiers, not/and/or (in decreasing precedence), parentheses.
// Unknown identifiers are a hard EvaluationError so malformed templates
// surface at load or expand time instead of silently reading as false.
func EvaluateCond(cond string, scope Scope) (bool, error) {
	p := &condParser{src: cond, toks: lexCond(cond), scope: scope}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos < len(p.toks) {
		return false, evalErr(cond, "unexpected token %q", p.toks[p.pos].text)
	}
	b, ok := v.(bool)
	if !ok {
		return false, evalErr(cond, "condition does not evaluate to a boolean")
	}
	return b, nil
}

type condToken struct {
	text string
	str  bool // quoted string literal
}

func lexCond(s string) []condToken {
	var toks []condToken
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '\'' || c == '"':
			quote := s[i]
			j := i + 1
			for j < len(s) && s[j] != quote {
				j++
			}
			if j >= len(s) {
				// Unterminated string: keep the raw text, the parser
				// rejects it as a stray token.
				toks = append(toks, condToken{text: s[i:]})
				return toks
			}
			toks = append(toks, condToken{text: s[i+1 : j], str: true})
			i = j + 1
		case c == '=' || c == '!' || c == '<' || c == '>':
			if i+1 < len(s) && s[i+1] == '=' {
				toks = append(toks, condToken{text: s[i : i+2]})
				i += 2
			} else {
				toks = append(toks, condToken{text: string(c)})
				i++
			}
		case c == '(' || c == ')':
			toks = append(toks, condToken{text: string(c)})
			i++
		case unicode.IsDigit(c) || c == '.' || c == '-':
			j := i + 1
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.') {
				j++
			}
			toks = append(toks, condToken{text: s[i:j]})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_') {
				j++
			}
			toks = append(toks, condToken{text: s[i:j]})
			i = j
		default:
			toks = append(toks, condToken{text: string(c)})
			i++
		}
	}
	return toks
}

type condParser struct {
	src   string
	toks  []condToken
	pos   int
	scope Scope
}

func (p *condParser) peek() (condToken, bool) {
	if p.pos < len(p.toks) {
		return p.toks[p.pos], true
	}
	return condToken{}, false
}

func (p *condParser) parseOr() (any, error) {
	v, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.str || tok.text != "or" {
			return v, nil
		}
		p.pos++
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lb, rb, err := p.bothBool(v, r, "or")
		if err != nil {
			return nil, err
		}
		v = lb || rb
	}
}

func (p *condParser) parseAnd() (any, error) {
	v, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.str || tok.text != "and" {
			return v, nil
		}
		p.pos++
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		lb, rb, err := p.bothBool(v, r, "and")
		if err != nil {
			return nil, err
		}
		v = lb && rb
	}
}

func (p *condParser) parseNot() (any, error) {
	if tok, ok := p.peek(); ok && !tok.str && tok.text == "not" {
		p.pos++
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, evalErr(p.src, "operand of 'not' is not a boolean")
		}
		return !b, nil
	}
	return p.parseComparison()
}

func (p *condParser) parseComparison() (any, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	tok, ok := p.peek()
	if !ok || tok.str {
		return left, nil
	}
	switch tok.text {
	case "==", "!=", "<", ">", "<=", ">=":
		p.pos++
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return p.compare(left, tok.text, right)
	default:
		return left, nil
	}
}

func (p *condParser) parseOperand() (any, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, evalErr(p.src, "unexpected end of condition")
	}
	p.pos++
	if tok.str {
		return tok.text, nil
	}
	switch {
	case tok.text == "(":
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.str || closing.text != ")" {
			return nil, evalErr(p.src, "unbalanced parentheses")
		}
		p.pos++
		return v, nil
	case tok.text == "true":
		return true, nil
	case tok.text == "false":
		return false, nil
	case isNumber(tok.text) || (len(tok.text) > 1 && tok.text[0] == '-'):
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, evalErr(p.src, "bad number %q", tok.text)
		}
		return v, nil
	case isIdent(tok.text):
		v, ok := p.scope.Lookup(tok.text)
		if !ok {
			return nil, evalErr(p.src, "unknown identifier %q", tok.text)
		}
		return normalize(v), nil
	default:
		return nil, evalErr(p.src, "unexpected token %q", tok.text)
	}
}

func (p *condParser) compare(left any, op string, right any) (any, error) {
	ln, lok := left.(float64)
	rn, rok := right.(float64)
	if lok && rok {
		switch op {
		case "==":
			return ln == rn, nil
		case "!=":
			return ln != rn, nil
		case "<":
			return ln < rn, nil
		case ">":
			return ln > rn, nil
		case "<=":
			return ln <= rn, nil
		case ">=":
			return ln >= rn, nil
		}
	}
	if op != "==" && op != "!=" {
		return nil, evalErr(p.src, "operator %q requires numeric operands", op)
	}
	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		return (ls == rs) == (op == "=="), nil
	}
	lb, lbok := left.(bool)
	rb, rbok := right.(bool)
	if lbok && rbok {
		return (lb == rb) == (op == "=="), nil
	}
	return nil, evalErr(p.src, "mismatched operand types for %q", op)
}

func (p *condParser) bothBool(l, r any, op string) (bool, bool, error) {
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if !lok || !rok {
		return false, false, evalErr(p.src, "operands of %q must be booleans", op)
	}
	return lb, rb, nil
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
