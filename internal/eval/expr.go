package eval

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// EvaluateExpr evaluates an arithmetic expression against a numeric
// context. Supported: + - * /, unary minus, parentheses, the functions
// min, max, abs, round, floor, ceil, sqrt, and bare identifiers resolved
// from ctx. $AUTO_* constants are substituted before parsing.
func EvaluateExpr(expr string, ctx map[string]float64) (float64, error) {
	pre, err := SubstituteAuto(expr, ctx)
	if err != nil {
		return 0, err
	}
	p := &exprParser{src: expr, toks: lexExpr(pre), ctx: ctx}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.toks) {
		return 0, evalErr(expr, "unexpected token %q", p.toks[p.pos])
	}
	return v, nil
}

func lexExpr(s string) []string {
	var toks []string
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case strings.ContainsRune("+-*/(),", c):
			toks = append(toks, string(c))
			i++
		case unicode.IsDigit(c) || c == '.':
			j := i
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			// Lexing never fails; the parser reports the stray token with
			// the full expression for context.
			toks = append(toks, string(c))
			i++
		}
	}
	return toks
}

type exprParser struct {
	src  string
	toks []string
	pos  int
	ctx  map[string]float64
}

func (p *exprParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *exprParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "+":
			p.next()
			r, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v += r
		case "-":
			p.next()
			r, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "*":
			p.next()
			r, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= r
		case "/":
			p.next()
			r, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, evalErr(p.src, "division by zero")
			}
			v /= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == "-" {
		p.next()
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	tok := p.next()
	switch {
	case tok == "":
		return 0, evalErr(p.src, "unexpected end of expression")
	case tok == "(":
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.next() != ")" {
			return 0, evalErr(p.src, "unbalanced parentheses")
		}
		return v, nil
	case isNumber(tok):
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, evalErr(p.src, "bad number %q", tok)
		}
		return v, nil
	case isIdent(tok):
		if p.peek() == "(" {
			return p.parseCall(tok)
		}
		v, ok := p.ctx[tok]
		if !ok {
			return 0, evalErr(p.src, "unknown identifier %q", tok)
		}
		return v, nil
	default:
		return 0, evalErr(p.src, "unexpected token %q", tok)
	}
}

func (p *exprParser) parseCall(name string) (float64, error) {
	p.next() // consume "("
	var args []float64
	if p.peek() != ")" {
		for {
			v, err := p.parseSum()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek() != "," {
				break
			}
			p.next()
		}
	}
	if p.next() != ")" {
		return 0, evalErr(p.src, "unbalanced parentheses in call to %q", name)
	}
	return p.applyFunc(name, args)
}

func (p *exprParser) applyFunc(name string, args []float64) (float64, error) {
	variadic := func(pick func(a, b float64) float64) (float64, error) {
		if len(args) == 0 {
			return 0, evalErr(p.src, "%s needs at least one argument", name)
		}
		v := args[0]
		for _, a := range args[1:] {
			v = pick(v, a)
		}
		return v, nil
	}
	single := func(fn func(float64) float64) (float64, error) {
		if len(args) != 1 {
			return 0, evalErr(p.src, "%s takes exactly one argument", name)
		}
		return fn(args[0]), nil
	}
	switch name {
	case "min":
		return variadic(math.Min)
	case "max":
		return variadic(math.Max)
	case "abs":
		return single(math.Abs)
	case "round":
		return single(math.Round)
	case "floor":
		return single(math.Floor)
	case "ceil":
		return single(math.Ceil)
	case "sqrt":
		if len(args) != 1 {
			return 0, evalErr(p.src, "sqrt takes exactly one argument")
		}
		if args[0] < 0 {
			return 0, evalErr(p.src, "sqrt of negative value")
		}
		return math.Sqrt(args[0]), nil
	default:
		return 0, evalErr(p.src, "unknown function %q", name)
	}
}

func isNumber(tok string) bool {
	return len(tok) > 0 && (unicode.IsDigit(rune(tok[0])) || tok[0] == '.')
}

func isIdent(tok string) bool {
	return len(tok) > 0 && (unicode.IsLetter(rune(tok[0])) || tok[0] == '_')
}
