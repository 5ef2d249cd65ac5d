// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/support/sets"
	"github.com/pkg/errors"
)

// intFunctions are the functions usable in integer (shape/range) expressions.
var intFunctions = map[string]func(args []int64) (int64, error){
	"min": func(args []int64) (int64, error) { return slices.Min(args), nil },
	"max": func(args []int64) (int64, error) { return slices.Max(args), nil },
	"abs": func(args []int64) (int64, error) {
		if args[0] < 0 {
			return -args[0], nil
		}
		return args[0], nil
	},
	"int_floor": func(args []int64) (int64, error) {
		if args[1] == 0 {
			return 0, errors.New("int_floor division by zero")
		}
		return floorDiv(args[0], args[1]), nil
	},
	"int_ceil": func(args []int64) (int64, error) {
		if args[1] == 0 {
			return 0, errors.New("int_ceil division by zero")
		}
		return -floorDiv(-args[0], args[1]), nil
	},
}

// floatFunctions are the functions usable in tasklet code.
var floatFunctions = map[string]func(args []float64) float64{
	"min":  func(args []float64) float64 { return slices.Min(args) },
	"max":  func(args []float64) float64 { return slices.Max(args) },
	"abs":  func(args []float64) float64 { return math.Abs(args[0]) },
	"sqrt": func(args []float64) float64 { return math.Sqrt(args[0]) },
	"exp":  func(args []float64) float64 { return math.Exp(args[0]) },
	"log":  func(args []float64) float64 { return math.Log(args[0]) },
	"tanh": func(args []float64) float64 { return math.Tanh(args[0]) },
	"int_floor": func(args []float64) float64 {
		return math.Floor(args[0] / args[1])
	},
	"int_ceil": func(args []float64) float64 {
		return math.Ceil(args[0] / args[1])
	},
}

var functionArity = map[string]int{
	"min": -2, "max": -2, "abs": 1, "sqrt": 1, "exp": 1, "log": 1, "tanh": 1, "int_floor": 2, "int_ceil": 2,
}

// NewCall returns the call expression fn(args...), folded if all arguments are integer constants.
// It returns an error for unknown functions or wrong number of arguments.
func NewCall(fn string, args ...Expr) (Expr, error) {
	arity, found := functionArity[fn]
	if !found {
		return nil, errors.Errorf("unknown function %q", fn)
	}
	if (arity > 0 && len(args) != arity) || (arity < 0 && len(args) < -arity) {
		return nil, errors.Errorf("function %q called with %d arguments", fn, len(args))
	}
	if (fn == "min" || fn == "max") && allEqual(args) {
		return args[0], nil
	}
	values := make([]int64, len(args))
	for ii, arg := range args {
		c, ok := Constant(arg)
		if !ok {
			return &Call{Func: fn, Args: slices.Clone(args)}, nil
		}
		values[ii] = c
	}
	if intFn, ok := intFunctions[fn]; ok {
		if v, err := intFn(values); err == nil {
			return Int(v), nil
		}
	}
	return &Call{Func: fn, Args: slices.Clone(args)}, nil
}

func allEqual(args []Expr) bool {
	for _, arg := range args[1:] {
		if !Equal(arg, args[0]) {
			return false
		}
	}
	return true
}

// EvalInt evaluates the expression with integer arithmetic, given the values of its free symbols.
// The division "/" is evaluated as a floor division.
func EvalInt(e Expr, bindings map[string]int64) (int64, error) {
	switch v := e.(type) {
	case IntConst:
		return v.Value, nil
	case FloatConst:
		return 0, errors.Errorf("float constant %s in integer expression", v)
	case SymbolRef:
		value, found := bindings[v.Name]
		if !found {
			return 0, errors.Errorf("symbol %q has no value", v.Name)
		}
		return value, nil
	case *Negate:
		x, err := EvalInt(v.X, bindings)
		return -x, err
	case *Binary:
		x, err := EvalInt(v.X, bindings)
		if err != nil {
			return 0, err
		}
		y, err := EvalInt(v.Y, bindings)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case OpAdd:
			return x + y, nil
		case OpSub:
			return x - y, nil
		case OpMul:
			return x * y, nil
		}
		if y == 0 {
			return 0, errors.Errorf("division by zero evaluating %s", e)
		}
		if v.Op == OpMod {
			return floorMod(x, y), nil
		}
		return floorDiv(x, y), nil
	case *Call:
		args := make([]int64, len(v.Args))
		for ii, arg := range v.Args {
			var err error
			if args[ii], err = EvalInt(arg, bindings); err != nil {
				return 0, err
			}
		}
		fn, found := intFunctions[v.Func]
		if !found {
			return 0, errors.Errorf("function %q is not an integer function", v.Func)
		}
		return fn(args)
	}
	exceptions.Panicf("unknown expression type %T", e)
	return 0, nil
}

// EvalFloat evaluates the expression with floating point arithmetic, given the values of its free symbols.
func EvalFloat(e Expr, bindings map[string]float64) (float64, error) {
	switch v := e.(type) {
	case IntConst:
		return float64(v.Value), nil
	case FloatConst:
		return v.Value, nil
	case SymbolRef:
		value, found := bindings[v.Name]
		if !found {
			return 0, errors.Errorf("symbol %q has no value", v.Name)
		}
		return value, nil
	case *Negate:
		x, err := EvalFloat(v.X, bindings)
		return -x, err
	case *Binary:
		x, err := EvalFloat(v.X, bindings)
		if err != nil {
			return 0, err
		}
		y, err := EvalFloat(v.Y, bindings)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case OpAdd:
			return x + y, nil
		case OpSub:
			return x - y, nil
		case OpMul:
			return x * y, nil
		case OpDiv:
			return x / y, nil
		case OpFloorDiv:
			return math.Floor(x / y), nil
		case OpMod:
			return x - math.Floor(x/y)*y, nil
		}
	case *Call:
		args := make([]float64, len(v.Args))
		for ii, arg := range v.Args {
			var err error
			if args[ii], err = EvalFloat(arg, bindings); err != nil {
				return 0, err
			}
		}
		fn, found := floatFunctions[v.Func]
		if !found {
			return 0, errors.Errorf("unknown function %q", v.Func)
		}
		return fn(args), nil
	}
	exceptions.Panicf("unknown expression type %T", e)
	return 0, nil
}

// Symbols returns the sorted list of free symbols of e.
func Symbols(e Expr) []string {
	found := sets.Make[string]()
	collectSymbols(e, found)
	return sets.Sorted(found)
}

// HasSymbol returns whether the symbol name appears in e.
func HasSymbol(e Expr, name string) bool {
	found := sets.Make[string]()
	collectSymbols(e, found)
	return found.Has(name)
}

func collectSymbols(e Expr, found sets.Set[string]) {
	switch v := e.(type) {
	case SymbolRef:
		found.Insert(v.Name)
	case *Negate:
		collectSymbols(v.X, found)
	case *Binary:
		collectSymbols(v.X, found)
		collectSymbols(v.Y, found)
	case *Call:
		for _, arg := range v.Args {
			collectSymbols(arg, found)
		}
	}
}

// Substitute replaces free symbols by the given expressions, and simplifies the result.
func Substitute(e Expr, replacements map[string]Expr) Expr {
	switch v := e.(type) {
	case SymbolRef:
		if r, found := replacements[v.Name]; found {
			return r
		}
		return v
	case *Negate:
		return Neg(Substitute(v.X, replacements))
	case *Binary:
		x, y := Substitute(v.X, replacements), Substitute(v.Y, replacements)
		switch v.Op {
		case OpAdd:
			return Add(x, y)
		case OpSub:
			return Sub(x, y)
		case OpMul:
			return Mul(x, y)
		case OpDiv:
			return Div(x, y)
		case OpFloorDiv:
			return FloorDiv(x, y)
		case OpMod:
			return Mod(x, y)
		}
	case *Call:
		args := make([]Expr, len(v.Args))
		for ii, arg := range v.Args {
			args[ii] = Substitute(arg, replacements)
		}
		call, err := NewCall(v.Func, args...)
		if err != nil {
			panic(err)
		}
		return call
	}
	return e
}

// SubstituteInts is like Substitute, with integer constants as replacements.
func SubstituteInts(e Expr, values map[string]int64) Expr {
	replacements := make(map[string]Expr, len(values))
	for k, v := range values {
		replacements[k] = Int(v)
	}
	return Substitute(e, replacements)
}

// Affine recognizes e as `coef*symbol + rest`, where rest does not depend on symbol.
// It returns ok=false if e depends on symbol in a non-linear way.
func Affine(e Expr, symbol string) (coef int64, rest Expr, ok bool) {
	if !HasSymbol(e, symbol) {
		return 0, e, true
	}
	l := toLinear(e)
	term, found := l.terms[symbol]
	if !found {
		return 0, nil, false
	}
	delete(l.terms, symbol)
	rest = l.expr()
	if HasSymbol(rest, symbol) {
		return 0, nil, false
	}
	return term.coef, rest, true
}
