// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"github.com/gomlx/sdfg/pkg/support/xslices"
)

// linear is the canonical form of an integer linear combination: sum(coef*atom) + constant.
// Atoms are any expressions that are not themselves sums or constant multiples (symbols,
// non-constant products, calls, divisions...). They are keyed by their printed form.
type linear struct {
	constant int64
	terms    map[string]linearTerm
}

type linearTerm struct {
	atom Expr
	coef int64
}

func toLinear(e Expr) linear {
	l := linear{terms: make(map[string]linearTerm)}
	return l.accumulate(e, 1)
}

func (l linear) accumulate(e Expr, coef int64) linear {
	switch v := e.(type) {
	case IntConst:
		l.constant += coef * v.Value
		return l
	case *Negate:
		return l.accumulate(v.X, -coef)
	case *Binary:
		switch v.Op {
		case OpAdd:
			l = l.accumulate(v.X, coef)
			return l.accumulate(v.Y, coef)
		case OpSub:
			l = l.accumulate(v.X, coef)
			return l.accumulate(v.Y, -coef)
		case OpMul:
			if c, ok := Constant(v.X); ok {
				return l.accumulate(v.Y, coef*c)
			}
			if c, ok := Constant(v.Y); ok {
				return l.accumulate(v.X, coef*c)
			}
		}
	}
	key := e.String()
	t := l.terms[key]
	t.atom = e
	t.coef += coef
	l.terms[key] = t
	return l
}

func (l linear) add(other linear, sign int64) linear {
	sum := linear{constant: l.constant + sign*other.constant, terms: make(map[string]linearTerm, len(l.terms)+len(other.terms))}
	for k, t := range l.terms {
		sum.terms[k] = t
	}
	for k, t := range other.terms {
		acc := sum.terms[k]
		acc.atom = t.atom
		acc.coef += sign * t.coef
		sum.terms[k] = acc
	}
	return sum
}

func (l linear) scale(c int64) linear {
	scaled := linear{constant: l.constant * c, terms: make(map[string]linearTerm, len(l.terms))}
	for k, t := range l.terms {
		t.coef *= c
		scaled.terms[k] = t
	}
	return scaled
}

// expr rebuilds the canonical expression.
func (l linear) expr() Expr {
	var acc Expr
	for _, key := range xslices.SortedKeys(l.terms) {
		t := l.terms[key]
		if t.coef == 0 {
			continue
		}
		magnitude := t.coef
		if magnitude < 0 {
			magnitude = -magnitude
		}
		var term Expr = t.atom
		if magnitude != 1 {
			term = &Binary{Op: OpMul, X: Int(magnitude), Y: t.atom}
		}
		switch {
		case acc == nil && t.coef < 0 && magnitude != 1:
			acc = &Binary{Op: OpMul, X: Int(t.coef), Y: t.atom}
		case acc == nil && t.coef < 0:
			acc = &Negate{X: term}
		case acc == nil:
			acc = term
		case t.coef < 0:
			acc = &Binary{Op: OpSub, X: acc, Y: term}
		default:
			acc = &Binary{Op: OpAdd, X: acc, Y: term}
		}
	}
	switch {
	case acc == nil:
		return Int(l.constant)
	case l.constant > 0:
		return &Binary{Op: OpAdd, X: acc, Y: Int(l.constant)}
	case l.constant < 0:
		return &Binary{Op: OpSub, X: acc, Y: Int(-l.constant)}
	}
	return acc
}
