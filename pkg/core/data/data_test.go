// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package data

import (
	"encoding/json"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/stretchr/testify/require"
)

func TestNewArray(t *testing.T) {
	d := NewArray(dtypes.Float32, symbolic.Symbol("N"), symbolic.Int(3), symbolic.Symbol("M"))
	require.NoError(t, d.Check())
	require.Equal(t, 3, d.Rank())
	require.Equal(t, []string{"3*M", "M", "1"}, exprStrings(d.Strides))
	require.Equal(t, []string{"0", "0", "0"}, exprStrings(d.Offset))
	require.Equal(t, "3*M*N", d.TotalSize.String())
	require.Equal(t, []string{"M", "N"}, d.Symbols())
	require.Equal(t, "0:N, 0:3, 0:M", d.FullSubset().String())
	require.Equal(t, "Array Float32[N, 3, M]", d.String())

	c := d.Clone()
	c.Shape[0] = symbolic.Int(7)
	c.Storage = StorageFPGALocal
	require.Equal(t, "N", d.Shape[0].String())
	require.Equal(t, StorageDefault, d.Storage)

	s := NewScalar(dtypes.Float64)
	s.Transient = true
	require.NoError(t, s.Check())
	require.Equal(t, "Scalar Float64 transient", s.String())

	bad := NewArrayFromInts(dtypes.Int32, 2, 2)
	bad.Strides = bad.Strides[:1]
	require.Error(t, bad.Check())
	require.Error(t, (&Descriptor{DType: dtypes.Float32}).Check())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("B", NewArrayFromInts(dtypes.Float32, 4)))
	require.NoError(t, r.Add("A", NewArrayFromInts(dtypes.Float32, 4)))
	require.Error(t, r.Add("A", NewArrayFromInts(dtypes.Float32, 4)))
	require.Error(t, r.Add("bad-name", NewArrayFromInts(dtypes.Float32, 4)))
	require.NoError(t, r.Add("__tmp0", NewScalar(dtypes.Float32)))

	name := r.AddTemp(NewScalar(dtypes.Float32))
	require.Equal(t, "__tmp1", name)
	require.Equal(t, []string{"B", "A", "__tmp0", "__tmp1"}, r.Names())

	r.Remove("A")
	require.False(t, r.Has("A"))
	require.Equal(t, 3, r.Len())

	c := r.Clone()
	desc, found := c.Get("B")
	require.True(t, found)
	desc.Transient = true
	original, _ := r.Get("B")
	require.False(t, original.Transient)
	require.Equal(t, r.Names(), c.Names())
}

func TestStorageEnums(t *testing.T) {
	s, err := StorageTypeString("fpgalocal")
	require.NoError(t, err)
	require.Equal(t, StorageFPGALocal, s)
	require.True(t, s.IsFPGA())
	require.False(t, s.IsGPU())
	require.True(t, StorageCPUHeap.IsHost())

	blob, err := json.Marshal(StorageGPUShared)
	require.NoError(t, err)
	require.Equal(t, `"GPUShared"`, string(blob))
	var l Lifetime
	require.NoError(t, json.Unmarshal([]byte(`"Global"`), &l))
	require.Equal(t, LifetimeGlobal, l)
	require.Error(t, json.Unmarshal([]byte(`"Forever"`), &l))
}

func exprStrings(exprs []symbolic.Expr) []string {
	s := make([]string, len(exprs))
	for ii, e := range exprs {
		s[ii] = e.String()
	}
	return s
}
