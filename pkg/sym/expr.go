package sym

import (
	"slices"
	"strconv"
	"strings"
)

// DefaultHint is the value substituted for variables that have no explicit
// hint during [Expr.Eval].
const DefaultHint int64 = 1024

type term struct {
	mono string // sorted variable names joined by "*", "" for the constant term
	coef int64
}

// Expr is an immutable integer polynomial over named size variables.
// The zero value represents the constant 0.
type Expr struct {
	terms []term // sorted by mono, no zero coefficients
}

// Const returns the constant expression v.
func Const(v int64) Expr {
	if v == 0 {
		return Expr{}
	}
	return Expr{terms: []term{{mono: "", coef: v}}}
}

// Var returns the expression consisting of the single variable name.
// An empty name yields the constant 1.
func Var(name string) Expr {
	if name == "" {
		return Const(1)
	}
	return Expr{terms: []term{{mono: name, coef: 1}}}
}

func fromMap(m map[string]int64) Expr {
	terms := make([]term, 0, len(m))
	for mono, c := range m {
		if c != 0 {
			terms = append(terms, term{mono: mono, coef: c})
		}
	}
	slices.SortFunc(terms, func(a, b term) int { return strings.Compare(a.mono, b.mono) })
	return Expr{terms: terms}
}

func (e Expr) toMap() map[string]int64 {
	m := make(map[string]int64, len(e.terms))
	for _, t := range e.terms {
		m[t.mono] += t.coef
	}
	return m
}

// Add returns e + o.
func (e Expr) Add(o Expr) Expr {
	m := e.toMap()
	for _, t := range o.terms {
		m[t.mono] += t.coef
	}
	return fromMap(m)
}

// Sub returns e - o.
func (e Expr) Sub(o Expr) Expr {
	m := e.toMap()
	for _, t := range o.terms {
		m[t.mono] -= t.coef
	}
	return fromMap(m)
}

// Mul returns e * o.
func (e Expr) Mul(o Expr) Expr {
	m := make(map[string]int64, len(e.terms)*len(o.terms))
	for _, a := range e.terms {
		for _, b := range o.terms {
			m[mulMono(a.mono, b.mono)] += a.coef * b.coef
		}
	}
	return fromMap(m)
}

// Scale returns e * k.
func (e Expr) Scale(k int64) Expr { return e.Mul(Const(k)) }

func mulMono(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	vars := append(strings.Split(a, "*"), strings.Split(b, "*")...)
	slices.Sort(vars)
	return strings.Join(vars, "*")
}

// Sum adds all expressions. Sum() is 0.
func Sum(es ...Expr) Expr {
	var out Expr
	for _, e := range es {
		out = out.Add(e)
	}
	return out
}

// Product multiplies all expressions. Product() is 1.
func Product(es ...Expr) Expr {
	out := Const(1)
	for _, e := range es {
		out = out.Mul(e)
	}
	return out
}

// IsZero reports whether e is the constant 0.
func (e Expr) IsZero() bool { return len(e.terms) == 0 }

// IsConst returns the value of e and true if e contains no variables.
func (e Expr) IsConst() (int64, bool) {
	switch len(e.terms) {
	case 0:
		return 0, true
	case 1:
		if e.terms[0].mono == "" {
			return e.terms[0].coef, true
		}
	}
	return 0, false
}

// Vars returns the distinct variable names appearing in e, sorted.
func (e Expr) Vars() []string {
	seen := map[string]struct{}{}
	for _, t := range e.terms {
		if t.mono == "" {
			continue
		}
		for _, v := range strings.Split(t.mono, "*") {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Hints maps variable names to the values used by Eval. Variables without
// an entry evaluate to Default, or to DefaultHint when Default is not positive.
type Hints struct {
	Values  map[string]int64 `toml:"values" yaml:"values" json:"values,omitempty"`
	Default int64            `toml:"default" yaml:"default" json:"default,omitempty"`
}

func (h Hints) value(name string) int64 {
	if v, ok := h.Values[name]; ok {
		return v
	}
	if h.Default > 0 {
		return h.Default
	}
	return DefaultHint
}

// Eval evaluates e with the given hints.
func (e Expr) Eval(h Hints) int64 {
	var total int64
	for _, t := range e.terms {
		v := t.coef
		if t.mono != "" {
			for _, name := range strings.Split(t.mono, "*") {
				v *= h.value(name)
			}
		}
		total += v
	}
	return total
}

// String renders e in canonical form, e.g. "4*s0*s1 + 16".
// Non-constant monomials come first in lexical order, the constant last.
func (e Expr) String() string {
	if len(e.terms) == 0 {
		return "0"
	}
	terms := slices.Clone(e.terms)
	slices.SortStableFunc(terms, func(a, b term) int {
		switch {
		case a.mono == "" && b.mono != "":
			return 1
		case a.mono != "" && b.mono == "":
			return -1
		}
		return strings.Compare(a.mono, b.mono)
	})

	var sb strings.Builder
	for i, t := range terms {
		c := t.coef
		if i > 0 {
			if c < 0 {
				sb.WriteString(" - ")
				c = -c
			} else {
				sb.WriteString(" + ")
			}
		} else if c < 0 {
			sb.WriteString("-")
			c = -c
		}
		switch {
		case t.mono == "":
			sb.WriteString(strconv.FormatInt(c, 10))
		case c == 1:
			sb.WriteString(t.mono)
		default:
			sb.WriteString(strconv.FormatInt(c, 10))
			sb.WriteString("*")
			sb.WriteString(t.mono)
		}
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (e Expr) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Expr) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
