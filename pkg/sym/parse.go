package sym

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

// ErrSyntax is returned by [Parse] for malformed input.
var ErrSyntax = errors.New("invalid size expression")

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(s string) Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// Parse reads an expression such as "4*s0*(s1+1) - 8". An empty string
// parses as 0.
func Parse(s string) (Expr, error) {
	p := &parser{src: []rune(s)}
	p.skipSpace()
	if p.eof() {
		return Expr{}, nil
	}
	e, err := p.expr()
	if err != nil {
		return Expr{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Expr{}, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[p.pos], p.pos)
	}
	return e, nil
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) peek() rune {
	p.skipSpace()
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return Expr{}, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.term()
			if err != nil {
				return Expr{}, err
			}
			left = left.Add(right)
		case '-':
			p.pos++
			right, err := p.term()
			if err != nil {
				return Expr{}, err
			}
			left = left.Sub(right)
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (Expr, error) {
	left, err := p.factor()
	if err != nil {
		return Expr{}, err
	}
	for p.peek() == '*' {
		p.pos++
		right, err := p.factor()
		if err != nil {
			return Expr{}, err
		}
		left = left.Mul(right)
	}
	return left, nil
}

func (p *parser) factor() (Expr, error) {
	r := p.peek()
	switch {
	case r == 0:
		return Expr{}, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	case r == '-':
		p.pos++
		f, err := p.factor()
		if err != nil {
			return Expr{}, err
		}
		return f.Scale(-1), nil
	case r == '(':
		p.pos++
		e, err := p.expr()
		if err != nil {
			return Expr{}, err
		}
		if p.peek() != ')' {
			return Expr{}, fmt.Errorf("%w: missing ')' at %d", ErrSyntax, p.pos)
		}
		p.pos++
		return e, nil
	case unicode.IsDigit(r):
		start := p.pos
		for !p.eof() && unicode.IsDigit(p.src[p.pos]) {
			p.pos++
		}
		v, err := strconv.ParseInt(string(p.src[start:p.pos]), 10, 64)
		if err != nil {
			return Expr{}, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return Const(v), nil
	case r == '_' || unicode.IsLetter(r):
		start := p.pos
		for !p.eof() && (p.src[p.pos] == '_' || unicode.IsLetter(p.src[p.pos]) || unicode.IsDigit(p.src[p.pos])) {
			p.pos++
		}
		return Var(string(p.src[start:p.pos])), nil
	}
	return Expr{}, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, r, p.pos)
}
