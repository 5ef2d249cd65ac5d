// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package subsets

import (
	"testing"

	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	s, err := Parse("i, 0:N, 0:M:2")
	require.NoError(t, err)
	require.Equal(t, 3, s.Dims())
	require.True(t, s[0].IsIndex())
	require.Equal(t, "N - 1", s[1].End.String())
	require.Equal(t, "2", s[2].Step.String())
	require.Equal(t, "i, 0:N, 0:M:2", s.String())

	sizes := s.Size()
	require.Equal(t, "1", sizes[0].String())
	require.Equal(t, "N", sizes[1].String())
	require.Equal(t, "(M + 1)//2", sizes[2].String())

	empty, err := Parse("")
	require.NoError(t, err)
	require.Zero(t, empty.Dims())

	_, err = Parse("0:N:")
	require.Error(t, err)
	_, err = Parse("0:N,")
	require.Error(t, err)
}

func TestSqueeze(t *testing.T) {
	s := MustParse("i, 0:N, 3, 0:M")
	squeezed, kept := s.Squeeze()
	require.Equal(t, "0:N, 0:M", squeezed.String())
	require.Equal(t, []int{1, 3}, kept)

	squeezed, kept = MustParse("i, j").Squeeze()
	require.Equal(t, "j", squeezed.String())
	require.Equal(t, []int{1}, kept)

	// Ranges of symbolic size are never squeezed.
	squeezed, _ = MustParse("0:K").Squeeze()
	require.Equal(t, 1, squeezed.Dims())
}

func TestOffsetAndPrepend(t *testing.T) {
	s := MustParse("i + 2, 1:N")
	require.Equal(t, "i, 0:N - 1", s.Offset(MustParse("2, 1:N"), true).String())
	require.Equal(t, "i + 4, 3:N + 2", s.Offset(MustParse("2, 2"), false).String())

	// Fewer dimensions offset the trailing ones.
	require.Equal(t, "i + 2, 0:N - 1", s.Offset(MustParse("1"), true).String())
	require.Panics(t, func() { s.Offset(MustParse("1, 2, 3"), false) })

	p := s.Prepend(Index(symbolic.Symbol("k")), Span(symbolic.Int(4)))
	require.Equal(t, "k, 0:4, i + 2, 1:N", p.String())
	require.Equal(t, "i + 2, 1:N", s.String(), "Prepend must not modify the original")
}

func TestNumElementsAndEval(t *testing.T) {
	s := FromShape([]symbolic.Expr{symbolic.Symbol("N"), symbolic.Int(3)})
	require.Equal(t, "0:N, 0:3", s.String())
	require.Equal(t, "3*N", s.NumElements().String())
	require.Equal(t, []string{"N"}, s.Symbols())

	concrete, err := MustParse("1:N:2, j").Eval(map[string]int64{"N": 8, "j": 5})
	require.NoError(t, err)
	require.Equal(t, []Concrete{{Start: 1, End: 7, Step: 2}, {Start: 5, End: 5, Step: 1}}, concrete)
	require.Equal(t, int64(4), concrete[0].Len())
	require.Equal(t, int64(1), concrete[1].Len())
	_, err = MustParse("0:N").Eval(nil)
	require.Error(t, err)

	sub := MustParse("i, 0:N").Substitute(map[string]symbolic.Expr{"i": symbolic.MustParse("j + 1")})
	require.Equal(t, "j + 1, 0:N", sub.String())
	require.True(t, sub.Equal(MustParse("1 + j, 0:N")))
	require.False(t, sub.Equal(MustParse("j, 0:N")))
}

func TestUnsqueeze(t *testing.T) {
	s := MustParse("i, 0:N, 3, 0:M")
	squeezed, kept := s.Squeeze()
	u := squeezed.Unsqueeze(kept, s.Dims())
	require.Equal(t, "0, 0:N, 0, 0:M", u.String())
	require.Panics(t, func() { squeezed.Unsqueeze([]int{0}, 4) })
}
