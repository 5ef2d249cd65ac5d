// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

// Resolver resolves symbolic expressions to constants, given known symbol values.
//
// Transformations only use this narrow service: e.g. to decide whether an array size is known
// at compile time.
type Resolver interface {
	// ResolveToConstant returns the integer value of expr, or false if it can't be determined.
	ResolveToConstant(expr Expr, bindings map[string]int64) (int64, bool)
}

// DefaultResolver substitutes the bindings and folds the expression.
type DefaultResolver struct{}

var _ Resolver = DefaultResolver{}

// ResolveToConstant implements Resolver.
func (DefaultResolver) ResolveToConstant(expr Expr, bindings map[string]int64) (int64, bool) {
	if expr == nil {
		return 0, false
	}
	if c, ok := Constant(expr); ok {
		return c, true
	}
	for _, name := range Symbols(expr) {
		if _, found := bindings[name]; !found {
			return 0, false
		}
	}
	v, err := EvalInt(expr, bindings)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ResolveAll resolves each expression, returning false if any of them can't be resolved.
func ResolveAll(r Resolver, exprs []Expr, bindings map[string]int64) ([]int64, bool) {
	values := make([]int64, len(exprs))
	for ii, e := range exprs {
		v, ok := r.ResolveToConstant(e, bindings)
		if !ok {
			return nil, false
		}
		values[ii] = v
	}
	return values, true
}
