// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndSimplify(t *testing.T) {
	for text, want := range map[string]string{
		"N - 1 + 1":        "N",
		"2*i + 1":          "2*i + 1",
		"1 + i":            "i + 1",
		"(N - 1) + 1 - N":  "0",
		"N*M":              "M*N",
		"(N + 1) * M":      "M*(N + 1)",
		"7 // 2":           "3",
		"-7 // 2":          "-4",
		"-7 % 3":           "2",
		"int_ceil(10, 4)":  "3",
		"min(N, N)":        "N",
		"max(N, 2)":        "max(N, 2)",
		"1.5 * 2":          "3.0",
		"0 - 2*i":          "-2*i",
		"i - (j - i)":      "2*i - j",
		"3 * (i + 2) - 6":  "3*i",
		"N // 1":           "N",
		"N / 2":            "N/2",
		"8 / 2":            "4",
		"i * 0 + N % 1":    "0",
		"int_floor(N, 2)":  "int_floor(N, 2)",
		"-(a - b)":         "-a + b",
		"2.0 * x":          "2.0*x",
		"__tmp0 + __i0*3":  "3*__i0 + __tmp0",
		"N*3*M":            "3*M*N",
	} {
		e, err := Parse(text)
		require.NoErrorf(t, err, "parsing %q", text)
		require.Equalf(t, want, e.String(), "parsing %q", text)

		// The canonical form parses back to itself.
		require.Equalf(t, want, MustParse(e.String()).String(), "reparsing %q", want)
	}

	require.True(t, Equal(MustParse("N*M"), MustParse("M*N")))
	require.True(t, Equal(MustParse("i + 1 - 1"), Symbol("i")))
	require.False(t, Equal(MustParse("N"), MustParse("M")))
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{"N +", "(N", "foo(N)", "min(N)", "a b"} {
		_, err := Parse(text)
		require.Errorf(t, err, "parsing %q should fail", text)
	}
}

func TestEval(t *testing.T) {
	bindings := map[string]int64{"N": 10, "M": 3}
	for text, want := range map[string]int64{
		"N*M - 1":         29,
		"int_ceil(N, 4)":  3,
		"int_floor(N, 4)": 2,
		"N / 4":           2,
		"min(N, M, 7)":    3,
		"-N % M":          2,
	} {
		got, err := EvalInt(MustParse(text), bindings)
		require.NoErrorf(t, err, "evaluating %q", text)
		require.Equalf(t, want, got, "evaluating %q", text)
	}
	_, err := EvalInt(MustParse("K + 1"), bindings)
	require.Error(t, err)
	_, err = EvalInt(MustParse("N // (M - 3)"), bindings)
	require.Error(t, err)

	got, err := EvalFloat(MustParse("__a * __b + sqrt(4.0)"), map[string]float64{"__a": 1.5, "__b": 2})
	require.NoError(t, err)
	require.InDelta(t, 5.0, got, 1e-9)
	got, err = EvalFloat(MustParse("N / 4"), map[string]float64{"N": 10})
	require.NoError(t, err)
	require.InDelta(t, 2.5, got, 1e-9)
}

func TestSymbolsAndSubstitute(t *testing.T) {
	require.Equal(t, []string{"M", "N", "i"}, Symbols(MustParse("i + N*M")))
	require.Empty(t, Symbols(MustParse("3 + 4")))
	require.True(t, HasSymbol(MustParse("min(i, N)"), "N"))

	e := Substitute(MustParse("i + 1"), map[string]Expr{"i": MustParse("j - 1")})
	require.Equal(t, "j", e.String())
	e = SubstituteInts(MustParse("N*M + i"), map[string]int64{"N": 2, "M": 5})
	require.Equal(t, "i + 10", e.String())
}

func TestAffine(t *testing.T) {
	coef, rest, ok := Affine(MustParse("2*i + N - 1"), "i")
	require.True(t, ok)
	require.Equal(t, int64(2), coef)
	require.Equal(t, "N - 1", rest.String())

	coef, rest, ok = Affine(MustParse("N"), "i")
	require.True(t, ok)
	require.Zero(t, coef)
	require.Equal(t, "N", rest.String())

	_, _, ok = Affine(MustParse("i*j"), "i")
	require.False(t, ok)
	_, _, ok = Affine(MustParse("min(i, 3)"), "i")
	require.False(t, ok)
}

func TestResolver(t *testing.T) {
	var r Resolver = DefaultResolver{}
	v, ok := r.ResolveToConstant(MustParse("N*M"), map[string]int64{"N": 2, "M": 3})
	require.True(t, ok)
	require.Equal(t, int64(6), v)
	_, ok = r.ResolveToConstant(MustParse("N*M"), map[string]int64{"N": 2})
	require.False(t, ok)
	v, ok = r.ResolveToConstant(Int(7), nil)
	require.True(t, ok)
	require.Equal(t, int64(7), v)

	values, ok := ResolveAll(r, []Expr{Int(2), MustParse("K + 1")}, map[string]int64{"K": 3})
	require.True(t, ok)
	require.Equal(t, []int64{2, 4}, values)
}

func TestParseCode(t *testing.T) {
	statements, err := ParseCode("__c = __a * __b")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	require.Equal(t, "__c", statements[0].Target)
	require.Equal(t, "__c = __a*__b", statements[0].String())

	statements, err = ParseCode("a = b + 1; c = a * 2\nd = -c")
	require.NoError(t, err)
	require.Len(t, statements, 3)
	require.Equal(t, "a = b + 1\nc = 2*a\nd = -c", CodeString(statements))

	statements, err = ParseCode("  ")
	require.NoError(t, err)
	require.Empty(t, statements)

	_, err = ParseCode("a + b")
	require.Error(t, err)
}

func TestConstantFolding(t *testing.T) {
	require.Equal(t, "5", Add(Int(2), Int(3)).String())
	require.Equal(t, "-1", Sub(Int(2), Int(3)).String())
	require.Equal(t, "N + 5", Add(Add(Symbol("N"), Int(2)), Int(3)).String())
	require.Equal(t, "N - 1", MustParse("N - 1").String())
	c, ok := Constant(Add(Mul(Int(2), Int(3)), Int(1)))
	require.True(t, ok)
	require.Equal(t, int64(7), c)
}
