// Package sym implements symbolic size expressions for tensor shapes.
//
// # Overview
//
// Tensor sizes in a compute graph are often only partially known at compile
// time: a batch dimension may be the variable "batch", a sequence length
// "s0", and a byte count the product of both with a constant element size.
// This package represents such sizes as integer polynomials over named
// variables and answers the questions the fusion scheduler needs:
//
//   - [Eq] compares two expressions with three-valued logic
//     ([Equal], [NotEqual], [Unknown])
//   - [Cmp] returns the sign of a-b when it can be decided
//   - [Expr.Eval] evaluates an expression with per-variable hints
//
// # Assumptions
//
// Every variable is a size and therefore at least 1. Under that assumption a
// difference whose coefficients all share a sign, and whose lower bound has
// that same sign, is decided even when it is not constant:
//
//	Cmp(Parse("4*s0 + 8"), Parse("4*s0"))  // +1, decided
//	Cmp(Parse("s0"), Parse("s1"))          // undecided
//
// Decided comparisons always agree with hint evaluation for hints ≥ 1, so
// callers that need a total order may fall back to [Expr.Eval].
//
// # Syntax
//
// [Parse] accepts integers, identifiers, '+', '-', '*' and parentheses:
//
//	e, err := sym.Parse("(s0 + 1) * 128 * 4")
//
// Expressions implement [encoding.TextMarshaler] so they can be embedded
// directly in JSON, TOML or YAML documents.
package sym
