// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interstate

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/interp"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/transformation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fpgaProgram has two FPGA-global transients: "fixed" of 16 elements and "sized" of N elements.
// "fixed" is passed to a nested SDFG, as its array "buf".
func fpgaProgram(t *testing.T) *sdfg.SDFG {
	g := sdfg.New("fpga")
	g.AddSymbol("N", dtypes.Int64)
	g.AddArray("A", data.NewArrayFromInts(dtypes.Float32, 16))
	fixed := g.AddTransient("fixed", data.NewArrayFromInts(dtypes.Float32, 16))
	fixed.Storage = data.StorageFPGAGlobal
	sized := g.AddTransient("sized", data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
	sized.Storage = data.StorageFPGAGlobal

	inner := sdfg.New("consumer")
	buf := inner.AddArray("buf", data.NewArrayFromInts(dtypes.Float32, 16))
	buf.Storage = data.StorageFPGAGlobal
	inner.AddState("empty")

	s := g.AddState("main")
	s.AddEdge(s.AddRead("A"), "", s.AddWrite("fixed"), "", memlet.Simple("A", "0:16"))
	nested := s.AddNestedSDFG(inner, []string{"buf"}, nil, nil)
	s.AddEdge(s.AddRead("fixed"), "", nested, "buf", memlet.Simple("fixed", "0:16"))
	s.AddAccess("sized")
	require.NoError(t, sdfg.Validate(g))
	return g
}

func TestGlobalToLocal(t *testing.T) {
	g := fpgaProgram(t)
	opts := config.New().WithDebugPrint(true)
	xf := NewGlobalToLocal(opts)
	assert.Equal(t, data.StorageFPGAGlobal, xf.From)
	assert.Equal(t, data.StorageFPGALocal, xf.To)

	d := transformation.NewDriver(opts)
	count, err := d.ApplyRepeated(g, xf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Exactly one of the two arrays has a size known at compile time.
	assert.Equal(t, 1, xf.Applied)
	assert.Equal(t, data.StorageFPGALocal, g.Array("fixed").Storage)
	assert.Equal(t, data.StorageFPGAGlobal, g.Array("sized").Storage)
	assert.Equal(t, data.StorageDefault, g.Array("A").Storage)

	// The nested alias follows.
	nested := g.AllSDFGsRecursive()[1]
	assert.Equal(t, data.StorageFPGALocal, nested.Array("buf").Storage)

	// Nothing left to convert.
	assert.Empty(t, transformation.Enumerate(g, xf, false))
}

func TestGlobalToLocalConfigured(t *testing.T) {
	t.Run("known symbols", func(t *testing.T) {
		g := fpgaProgram(t)
		xf := NewGlobalToLocal(config.New().WithSymbol("N", 8))
		count, err := transformation.NewDriver(nil).ApplyRepeated(g, xf, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, 2, xf.Applied)
	})

	t.Run("constants", func(t *testing.T) {
		g := fpgaProgram(t)
		g.Constants["N"] = 4
		xf := NewGlobalToLocal(nil)
		_, err := transformation.NewDriver(nil).ApplyRepeated(g, xf, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, xf.Applied)
	})

	t.Run("shared transients", func(t *testing.T) {
		g := fpgaProgram(t)
		next := g.AddStateAfter(g.StartState(), "next")
		next.AddAccess("fixed")
		xf := NewGlobalToLocal(nil)
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})

	t.Run("storage classes", func(t *testing.T) {
		opts := config.New()
		require.NoError(t, opts.LoadHCL([]byte(`
transformation "GlobalToLocal" {
  params = {
    from = "GPUGlobal"
    to   = "GPUShared"
  }
}
`), "test.hcl"))
		xf := transformation.New(GlobalToLocalName, opts).(*GlobalToLocal)
		assert.Equal(t, data.StorageGPUGlobal, xf.From)
		assert.Equal(t, data.StorageGPUShared, xf.To)

		opts.Params.Set("/"+GlobalToLocalName, ParamTo, "Nowhere")
		assert.Panics(t, func() { NewGlobalToLocal(opts) })
	})
}

// scratchProgram computes B = A + 1 through a nested SDFG that also writes a scratch copy to the outer
// transient "scratch", which nobody else reads.
func scratchProgram(t *testing.T) (*sdfg.SDFG, *sdfg.State, *sdfg.NestedSDFG) {
	inner := sdfg.New("body")
	inner.AddArray("x", data.NewArrayFromInts(dtypes.Float64, 4))
	inner.AddArray("y", data.NewArrayFromInts(dtypes.Float64, 4))
	inner.AddArray("t", data.NewArrayFromInts(dtypes.Float64, 4))
	body := inner.AddState("body")
	body.AddMappedTasklet("copy", []sdfg.MapParam{{Name: "i", Range: "0:4"}},
		[]sdfg.Connection{{Conn: "v", Memlet: memlet.Simple("x", "i")}}, "w = v",
		[]sdfg.Connection{{Conn: "w", Memlet: memlet.Simple("t", "i")}}, true)
	next := inner.AddStateAfter(body, "inc")
	next.AddMappedTasklet("inc", []sdfg.MapParam{{Name: "i", Range: "0:4"}},
		[]sdfg.Connection{{Conn: "v", Memlet: memlet.Simple("t", "i")}}, "w = v + 1",
		[]sdfg.Connection{{Conn: "w", Memlet: memlet.Simple("y", "i")}}, true)

	g := sdfg.New("outer")
	g.AddArray("A", data.NewArrayFromInts(dtypes.Float64, 4))
	g.AddArray("B", data.NewArrayFromInts(dtypes.Float64, 4))
	g.AddTransient("scratch", data.NewArrayFromInts(dtypes.Float64, 4))
	s := g.AddState("main")
	nested := s.AddNestedSDFG(inner, []string{"x"}, []string{"y", "t"}, nil)
	s.AddEdge(s.AddRead("A"), "", nested, "x", memlet.Simple("A", "0:4"))
	s.AddEdge(nested, "y", s.AddWrite("B"), "", memlet.Simple("B", "0:4"))
	s.AddEdge(nested, "t", s.AddWrite("scratch"), "", memlet.Simple("scratch", "0:4"))
	require.NoError(t, sdfg.Validate(g))
	return g, s, nested
}

func runScratch(t *testing.T, g *sdfg.SDFG) []float64 {
	a := interp.FromValues(dtypes.Float64, []int{4}, []float64{1, 2, 3, 4})
	b := interp.NewBuffer(dtypes.Float64, 4)
	require.NoError(t, interp.Run(g, map[string]*interp.Buffer{"A": a, "B": b}, nil))
	return b.Values()
}

func TestInlineTransients(t *testing.T) {
	g, s, nested := scratchProgram(t)
	assert.Equal(t, []float64{2, 3, 4, 5}, runScratch(t, g))

	xf := &InlineTransients{}
	applied, err := transformation.NewDriver(nil).ApplyFirst(g, xf)
	require.NoError(t, err)
	require.True(t, applied)

	assert.False(t, g.Arrays.Has("scratch"))
	assert.True(t, nested.SDFG.Array("t").Transient)
	assert.Equal(t, []string{"y"}, nested.OutConnectors())
	for _, a := range s.DataNodes() {
		assert.NotEqual(t, "scratch", a.Data)
	}
	require.NoError(t, sdfg.Validate(g))
	assert.Equal(t, []float64{2, 3, 4, 5}, runScratch(t, g))
	assert.Empty(t, transformation.Enumerate(g, xf, false))
}

func TestInlineTransientsNotApplicable(t *testing.T) {
	xf := &InlineTransients{}

	t.Run("used in another state", func(t *testing.T) {
		g, s, _ := scratchProgram(t)
		g.AddStateAfter(s, "next").AddAccess("scratch")
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})

	t.Run("read by another node", func(t *testing.T) {
		g, s, _ := scratchProgram(t)
		g.AddArray("C", data.NewArrayFromInts(dtypes.Float64, 4))
		for _, a := range s.DataNodes() {
			if a.Data == "scratch" {
				s.AddEdge(a, "", s.AddWrite("C"), "", memlet.Simple("scratch", "0:4"))
			}
		}
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})

	t.Run("state lifetime", func(t *testing.T) {
		g, _, _ := scratchProgram(t)
		g.Array("scratch").Lifetime = data.LifetimeState
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})
}
