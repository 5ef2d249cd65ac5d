// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package memlet

import (
	"math"
	"testing"

	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/stretchr/testify/require"
)

func TestMemlet(t *testing.T) {
	m := Simple("A", "i, 0:N")
	require.False(t, m.IsEmpty())
	require.Equal(t, "A[i, 0:N]", m.String())
	require.Equal(t, "N", m.NumAccesses().String())

	m.Volume = symbolic.Int(1)
	m.Dynamic = true
	require.Equal(t, "1", m.NumAccesses().String())

	c := m.Clone().WithWCR(ReductionSum, Float(0))
	require.Equal(t, "A[i, 0:N] (dynamic) (CR: Sum)", c.String())
	require.Equal(t, ReductionNone, m.WCR)
	*c.WCRIdentity = 3
	c.Subset[0] = c.Subset[1]
	require.Equal(t, "A[i, 0:N] (dynamic)", m.String())

	require.True(t, Empty().IsEmpty())
	require.Equal(t, "{}", Empty().String())
	var nilMemlet *Memlet
	require.True(t, nilMemlet.IsEmpty())
	require.Panics(t, func() { Simple("A", "0:") })
}

func TestReduction(t *testing.T) {
	require.Equal(t, 5.0, ReductionSum.Combine(2, 3))
	require.Equal(t, 6.0, ReductionProduct.Combine(2, 3))
	require.Equal(t, 2.0, ReductionMin.Combine(2, 3))
	require.Equal(t, 3.0, ReductionMax.Combine(2, 3))
	require.Equal(t, 3.0, ReductionNone.Combine(2, 3))
	require.Equal(t, 1.0, ReductionProduct.Identity())
	require.True(t, math.IsInf(ReductionMin.Identity(), 1))
	require.Panics(t, func() { ReductionNone.Identity() })

	r, err := ReductionString("sum")
	require.NoError(t, err)
	require.Equal(t, ReductionSum, r)
}
