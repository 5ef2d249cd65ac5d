// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Lexer tokenizes symbolic expressions, subsets and tasklet code.
// It is exported so other grammars (e.g. subsets) can embed ExprGrammar.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Float", Pattern: `[0-9]+\.[0-9]*([eE][-+]?[0-9]+)?|[0-9]+[eE][-+]?[0-9]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `//|[-+*/%(),=;:]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// ExprGrammar is the participle grammar node of a full expression (a sum of products).
// Use Build to convert it to an Expr.
type ExprGrammar struct {
	Left *productGrammar `@@`
	Ops  []*sumOp        `{ @@ }`
}

type sumOp struct {
	Operator string          `@("+" | "-")`
	Right    *productGrammar `@@`
}

type productGrammar struct {
	Left *unaryGrammar `@@`
	Ops  []*productOp  `{ @@ }`
}

type productOp struct {
	Operator string        `@("*" | "//" | "/" | "%")`
	Right    *unaryGrammar `@@`
}

type unaryGrammar struct {
	Negate  *unaryGrammar   `  "-" @@`
	Primary *primaryGrammar `| @@`
}

type primaryGrammar struct {
	Call   *callGrammar `  @@`
	Float  *string      `| @Float`
	Int    *string      `| @Int`
	Ident  *string      `| @Ident`
	Parens *ExprGrammar `| "(" @@ ")"`
}

type callGrammar struct {
	Func string         `@Ident "("`
	Args []*ExprGrammar `[ @@ { "," @@ } ] ")"`
}

type statementGrammar struct {
	Target string       `@Ident "="`
	Value  *ExprGrammar `@@ [ ";" ]`
}

type codeGrammar struct {
	Statements []*statementGrammar `{ @@ }`
}

var (
	exprParser = participle.MustBuild[ExprGrammar](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
	codeParser = participle.MustBuild[codeGrammar](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// Build converts the parsed grammar tree into a simplified Expr.
func (g *ExprGrammar) Build() (Expr, error) {
	acc, err := g.Left.build()
	if err != nil {
		return nil, err
	}
	for _, op := range g.Ops {
		right, err := op.Right.build()
		if err != nil {
			return nil, err
		}
		if op.Operator == "+" {
			acc = Add(acc, right)
		} else {
			acc = Sub(acc, right)
		}
	}
	return acc, nil
}

func (g *productGrammar) build() (Expr, error) {
	acc, err := g.Left.build()
	if err != nil {
		return nil, err
	}
	for _, op := range g.Ops {
		right, err := op.Right.build()
		if err != nil {
			return nil, err
		}
		switch op.Operator {
		case "*":
			acc = Mul(acc, right)
		case "/":
			acc = Div(acc, right)
		case "//":
			acc = FloorDiv(acc, right)
		case "%":
			acc = Mod(acc, right)
		default:
			exceptions.Panicf("unknown product operator %q", op.Operator)
		}
	}
	return acc, nil
}

func (g *unaryGrammar) build() (Expr, error) {
	if g.Negate != nil {
		x, err := g.Negate.build()
		if err != nil {
			return nil, err
		}
		return Neg(x), nil
	}
	return g.Primary.build()
}

func (g *primaryGrammar) build() (Expr, error) {
	switch {
	case g.Call != nil:
		args := make([]Expr, 0, len(g.Call.Args))
		for _, argG := range g.Call.Args {
			arg, err := argG.Build()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return NewCall(g.Call.Func, args...)
	case g.Float != nil:
		v, err := strconv.ParseFloat(*g.Float, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid float literal %q", *g.Float)
		}
		return Float(v), nil
	case g.Int != nil:
		v, err := strconv.ParseInt(*g.Int, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer literal %q", *g.Int)
		}
		return Int(v), nil
	case g.Ident != nil:
		return Symbol(*g.Ident), nil
	case g.Parens != nil:
		return g.Parens.Build()
	}
	return nil, errors.New("empty primary expression")
}

// Parse parses a symbolic expression like "N - 1", "2*i + 1" or "int_ceil(N, 4)".
func Parse(text string) (Expr, error) {
	g, err := exprParser.ParseString("", text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse expression %q", text)
	}
	e, err := g.Build()
	if err != nil {
		return nil, errors.WithMessagef(err, "in expression %q", text)
	}
	return e, nil
}

// MustParse is like Parse, but panics on error.
func MustParse(text string) Expr {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}
