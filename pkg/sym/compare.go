package sym

// Relation is the three-valued answer of [Eq].
type Relation int

const (
	// Unknown means the relation cannot be decided statically.
	Unknown Relation = iota
	// Equal means both expressions are identical for every assignment.
	Equal
	// NotEqual means the expressions differ for every assignment.
	NotEqual
)

func (r Relation) String() string {
	switch r {
	case Equal:
		return "equal"
	case NotEqual:
		return "not-equal"
	default:
		return "unknown"
	}
}

// Eq compares a and b assuming every variable is at least 1.
func Eq(a, b Expr) Relation {
	sign, ok := Cmp(a, b)
	switch {
	case !ok:
		return Unknown
	case sign == 0:
		return Equal
	default:
		return NotEqual
	}
}

// Cmp returns the sign of a-b and true when it can be decided for every
// assignment of variables ≥ 1.
func Cmp(a, b Expr) (int, bool) {
	return sign(a.Sub(b))
}

func sign(d Expr) (int, bool) {
	if c, ok := d.IsConst(); ok {
		switch {
		case c > 0:
			return 1, true
		case c < 0:
			return -1, true
		}
		return 0, true
	}

	var constant, positive, negative int64
	for _, t := range d.terms {
		switch {
		case t.mono == "":
			constant = t.coef
		case t.coef > 0:
			positive += t.coef
		default:
			negative += t.coef
		}
	}
	// Each monomial is at least 1, so the sum of same-signed coefficients
	// bounds the variable part from the corresponding side.
	switch {
	case negative == 0 && positive+constant > 0:
		return 1, true
	case positive == 0 && negative+constant < 0:
		return -1, true
	}
	return 0, false
}

// Min returns the smaller of a and b when the comparison is decided.
func Min(a, b Expr) (Expr, bool) {
	s, ok := Cmp(a, b)
	if !ok {
		return Expr{}, false
	}
	if s <= 0 {
		return a, true
	}
	return b, true
}

// Less orders a before b by hint evaluation. For hints ≥ 1 it agrees with
// every comparison [Cmp] decides, and unlike Cmp it is a total order.
func Less(a, b Expr, h Hints) bool {
	return a.Eval(h) < b.Eval(h)
}
