// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package symbolic implements the small symbolic expression language used for shapes,
// subsets, map ranges and tasklet code.
//
// Expressions are immutable trees. All constructors (Add, Sub, Mul, ...) simplify their
// result: integer constants are folded and linear combinations are kept in a canonical form
// (terms sorted by their printed form, constant last), so that two equivalent linear
// expressions print the same. Equal compares expressions by that canonical form.
package symbolic

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Expr is a symbolic expression. Use the constructors of this package to build one.
type Expr interface {
	fmt.Stringer

	// precedence of the top-level operation, used to decide on parenthesis when printing.
	precedence() int
}

// Operator of a Binary expression.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
)

var operatorSymbols = [...]string{" + ", " - ", "*", "/", "//", "%"}

// String returns the operator as it is printed in expressions.
func (op Operator) String() string {
	return strings.TrimSpace(operatorSymbols[op])
}

const (
	precSum = iota + 1
	precProduct
	precUnary
	precAtom
)

// IntConst is an integer constant.
type IntConst struct{ Value int64 }

// FloatConst is a floating point constant.
type FloatConst struct{ Value float64 }

// SymbolRef is a reference to a free symbol (a size, a map parameter, a tasklet connector).
type SymbolRef struct{ Name string }

// Binary is a binary operation.
type Binary struct {
	Op   Operator
	X, Y Expr
}

// Negate is the unary minus.
type Negate struct{ X Expr }

// Call is a function call, e.g. min(a, b) or int_ceil(N, 4).
type Call struct {
	Func string
	Args []Expr
}

func (e IntConst) String() string { return strconv.FormatInt(e.Value, 10) }
func (e IntConst) precedence() int {
	if e.Value < 0 {
		return precUnary
	}
	return precAtom
}

func (e FloatConst) String() string {
	s := strconv.FormatFloat(e.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
func (e FloatConst) precedence() int {
	if e.Value < 0 {
		return precUnary
	}
	return precAtom
}

func (e SymbolRef) String() string  { return e.Name }
func (e SymbolRef) precedence() int { return precAtom }

func (e *Binary) precedence() int {
	if e.Op == OpAdd || e.Op == OpSub {
		return precSum
	}
	return precProduct
}

func (e *Binary) String() string {
	prec := e.precedence()
	rightPrec := prec + 1
	if y, ok := e.Y.(*Binary); ok && e.Op == OpMul && y.Op == OpMul {
		rightPrec = prec
	}
	return parenthesize(e.X, prec) + operatorSymbols[e.Op] + parenthesize(e.Y, rightPrec)
}

func (e *Negate) precedence() int { return precUnary }
func (e *Negate) String() string  { return "-" + parenthesize(e.X, precUnary) }

func (e *Call) precedence() int { return precAtom }
func (e *Call) String() string {
	parts := make([]string, len(e.Args))
	for ii, arg := range e.Args {
		parts[ii] = arg.String()
	}
	return e.Func + "(" + strings.Join(parts, ", ") + ")"
}

func parenthesize(e Expr, minPrecedence int) string {
	if e.precedence() < minPrecedence {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// Int returns an integer constant expression.
func Int(v int64) Expr { return IntConst{v} }

// Float returns a floating point constant expression.
func Float(v float64) Expr { return FloatConst{v} }

// Symbol returns a reference to the free symbol name.
func Symbol(name string) Expr { return SymbolRef{name} }

// Equal returns whether a and b have the same canonical form.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Constant returns the value of e if it is an integer constant.
func Constant(e Expr) (int64, bool) {
	if c, ok := e.(IntConst); ok {
		return c.Value, true
	}
	return 0, false
}

func numericConstant(e Expr) (float64, bool) {
	switch c := e.(type) {
	case IntConst:
		return float64(c.Value), true
	case FloatConst:
		return c.Value, true
	}
	return 0, false
}

func isFloat(e Expr) bool {
	_, ok := e.(FloatConst)
	return ok
}

// foldFloat folds a binary operation when both sides are numeric constants and at least one is a float.
func foldFloat(op Operator, x, y Expr) (Expr, bool) {
	if !isFloat(x) && !isFloat(y) {
		return nil, false
	}
	a, okA := numericConstant(x)
	b, okB := numericConstant(y)
	if !okA || !okB {
		return nil, false
	}
	switch op {
	case OpAdd:
		return Float(a + b), true
	case OpSub:
		return Float(a - b), true
	case OpMul:
		return Float(a * b), true
	case OpDiv:
		if b == 0 {
			return nil, false
		}
		return Float(a / b), true
	case OpFloorDiv:
		if b == 0 {
			return nil, false
		}
		return Float(math.Floor(a / b)), true
	}
	return nil, false
}

// Add returns x + y.
func Add(x, y Expr) Expr {
	if f, ok := foldFloat(OpAdd, x, y); ok {
		return f
	}
	return toLinear(x).add(toLinear(y), 1).expr()
}

// Sub returns x - y.
func Sub(x, y Expr) Expr {
	if f, ok := foldFloat(OpSub, x, y); ok {
		return f
	}
	return toLinear(x).add(toLinear(y), -1).expr()
}

// Neg returns -x.
func Neg(x Expr) Expr {
	if f, ok := x.(FloatConst); ok {
		return Float(-f.Value)
	}
	return toLinear(x).scale(-1).expr()
}

// Mul returns x * y.
func Mul(x, y Expr) Expr {
	if f, ok := foldFloat(OpMul, x, y); ok {
		return f
	}
	if c, ok := Constant(x); ok {
		return toLinear(y).scale(c).expr()
	}
	if c, ok := Constant(y); ok {
		return toLinear(x).scale(c).expr()
	}
	coefX, x := splitCoefficient(x)
	coefY, y := splitCoefficient(y)
	// Commutative: order operands canonically.
	if x.String() > y.String() {
		x, y = y, x
	}
	var product Expr = &Binary{Op: OpMul, X: x, Y: y}
	if coef := coefX * coefY; coef != 1 {
		product = toLinear(product).scale(coef).expr()
	}
	return product
}

// splitCoefficient splits `c*x` into c and x. Other expressions have coefficient 1.
func splitCoefficient(e Expr) (int64, Expr) {
	if b, ok := e.(*Binary); ok && b.Op == OpMul {
		if c, ok := Constant(b.X); ok {
			return c, b.Y
		}
	}
	if n, ok := e.(*Negate); ok {
		c, rest := splitCoefficient(n.X)
		return -c, rest
	}
	return 1, e
}

// Div returns x / y. Integer operands are folded only when the division is exact.
func Div(x, y Expr) Expr {
	if f, ok := foldFloat(OpDiv, x, y); ok {
		return f
	}
	if c, ok := Constant(y); ok && c == 1 {
		return x
	}
	a, okA := Constant(x)
	b, okB := Constant(y)
	if okA && okB && b != 0 && a%b == 0 {
		return Int(a / b)
	}
	return &Binary{Op: OpDiv, X: x, Y: y}
}

// FloorDiv returns x // y, the division rounded towards negative infinity.
func FloorDiv(x, y Expr) Expr {
	if f, ok := foldFloat(OpFloorDiv, x, y); ok {
		return f
	}
	if c, ok := Constant(y); ok && c == 1 {
		return x
	}
	a, okA := Constant(x)
	b, okB := Constant(y)
	if okA && okB && b != 0 {
		return Int(floorDiv(a, b))
	}
	return &Binary{Op: OpFloorDiv, X: x, Y: y}
}

// Mod returns x % y, with the sign of y.
func Mod(x, y Expr) Expr {
	a, okA := Constant(x)
	b, okB := Constant(y)
	if okA && okB && b != 0 {
		return Int(floorMod(a, b))
	}
	if okB && b == 1 {
		return Int(0)
	}
	return &Binary{Op: OpMod, X: x, Y: y}
}

// Min returns min(x, y).
func Min(x, y Expr) Expr {
	e, _ := NewCall("min", x, y)
	return e
}

// Max returns max(x, y).
func Max(x, y Expr) Expr {
	e, _ := NewCall("max", x, y)
	return e
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
