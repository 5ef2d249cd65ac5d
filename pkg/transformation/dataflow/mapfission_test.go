// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/interp"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/gomlx/sdfg/pkg/transformation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exprStrings(exprs []symbolic.Expr) []string {
	return xslices.Map(exprs, func(e symbolic.Expr) string { return e.String() })
}

func mapEntries(s *sdfg.State) []*sdfg.MapEntry {
	var entries []*sdfg.MapEntry
	for _, n := range s.Nodes() {
		if entry, ok := n.(*sdfg.MapEntry); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// twoStageMap builds C[i] = 2*A[i] + 1 as a single map with two tasklets. If viaScalar is set, the
// tasklets are connected directly (code to code), otherwise through the transient scalar "tmp".
func twoStageMap(t *testing.T, viaScalar bool) (*sdfg.SDFG, *sdfg.State) {
	g := sdfg.New("two_stages")
	g.AddSymbol("N", dtypes.Int64)
	g.AddArray("A", data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
	g.AddArray("C", data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
	g.AddTransient("tmp", data.NewScalar(dtypes.Float32))
	s := g.AddState("main")
	entry, exit := s.AddMap("outer", []string{"i"}, []string{"0:N"}, sdfg.ScheduleCPUMultiCore)
	double := s.AddTasklet("double", []string{"a"}, []string{"b"}, "b = a * 2", sdfg.LanguagePython)
	inc := s.AddTasklet("inc", []string{"b"}, []string{"c"}, "c = b + 1", sdfg.LanguagePython)
	s.AddEdge(s.AddRead("A"), "", entry, "", memlet.Simple("A", "0:N"))
	s.AddEdge(entry, "", double, "a", memlet.Simple("A", "i"))
	if viaScalar {
		s.AddEdge(double, "b", inc, "b", memlet.Simple("tmp", "0"))
	} else {
		tmp := s.AddAccess("tmp")
		s.AddEdge(double, "b", tmp, "", memlet.Simple("tmp", "0"))
		s.AddEdge(tmp, "", inc, "b", memlet.Simple("tmp", "0"))
	}
	s.AddEdge(inc, "c", exit, "", memlet.Simple("C", "i"))
	s.AddEdge(exit, "", s.AddWrite("C"), "", memlet.Simple("C", "0:N"))
	s.FillScopeConnectors()
	require.NoError(t, sdfg.Validate(g))
	return g, s
}

func runTwoStages(t *testing.T, g *sdfg.SDFG) []float64 {
	a := interp.FromValues(dtypes.Float32, []int{4}, []float64{1, 2, 3, 4})
	c := interp.NewBuffer(dtypes.Float32, 4)
	require.NoError(t, interp.Run(g, map[string]*interp.Buffer{"A": a, "C": c}, map[string]int64{"N": 4}))
	return c.Values()
}

func TestMapFissionSubgraph(t *testing.T) {
	g, s := twoStageMap(t, false)
	assert.Equal(t, []float64{3, 5, 7, 9}, runTwoStages(t, g))

	xf := &MapFission{}
	matches := transformation.Enumerate(g, xf, false)
	require.Len(t, matches, 1)
	assert.Equal(t, "MapFission of outer", transformation.MatchString(xf, matches[0]))

	d := transformation.NewDriver(config.New())
	applied, err := d.ApplyFirst(g, xf)
	require.NoError(t, err)
	require.True(t, applied)

	// One map per tasklet, with the same range and schedule.
	entries := mapEntries(s)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "outer_fission", entry.Map.Label)
		assert.Equal(t, []string{"i"}, entry.Map.Params)
		assert.Equal(t, "0:N", entry.Map.Range.String())
		assert.Equal(t, sdfg.ScheduleCPUMultiCore, entry.Map.Schedule)
	}

	// The border transient gets one value per iteration.
	tmp := g.Array("tmp")
	assert.Equal(t, []string{"N", "1"}, exprStrings(tmp.Shape))
	assert.Equal(t, []string{"1", "1"}, exprStrings(tmp.Strides))
	assert.Equal(t, "N", tmp.TotalSize.String())
	assert.Equal(t, []string{"0", "0"}, exprStrings(tmp.Offset))
	for _, a := range s.DataNodes() {
		if a.Data != "tmp" {
			continue
		}
		for _, e := range s.AllEdges(a) {
			assert.Equal(t, "0:N, 0", e.Data.Subset.String())
		}
	}

	require.NoError(t, sdfg.Validate(g))
	assert.Equal(t, []float64{3, 5, 7, 9}, runTwoStages(t, g))

	// Each new map holds a single component: nothing left to split.
	assert.Empty(t, transformation.Enumerate(g, xf, false))
}

func TestMapFissionScalarPromotion(t *testing.T) {
	g, s := twoStageMap(t, true)
	assert.Equal(t, []float64{3, 5, 7, 9}, runTwoStages(t, g))

	d := transformation.NewDriver(nil)
	count, err := d.ApplyRepeated(g, &MapFission{}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, mapEntries(s), 2)

	// The code-to-code edge goes through a new transient indexed by the map parameter.
	require.True(t, g.Arrays.Has("__tmp0"))
	assert.False(t, g.Arrays.Has("tmp"))
	assert.NotContains(t, g.Arrays.Names(), "tmp")
	promoted := g.Array("__tmp0")
	assert.True(t, promoted.Transient)
	assert.Equal(t, []string{"N"}, exprStrings(promoted.Shape))
	accesses := 0
	for _, a := range s.DataNodes() {
		if a.Data == "__tmp0" {
			accesses++
			assert.Equal(t, 1, s.InDegree(a))
			assert.Equal(t, 1, s.OutDegree(a))
		}
	}
	assert.Equal(t, 1, accesses)

	require.NoError(t, sdfg.Validate(g))
	assert.Equal(t, []float64{3, 5, 7, 9}, runTwoStages(t, g))
}

func TestMapFissionNotApplicable(t *testing.T) {
	xf := &MapFission{}

	t.Run("single component", func(t *testing.T) {
		g := sdfg.New("single")
		g.AddSymbol("N", dtypes.Int64)
		g.AddArray("A", data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
		g.AddArray("B", data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
		g.AddState("main").AddMappedTasklet("copy", []sdfg.MapParam{{Name: "i", Range: "0:N"}},
			[]sdfg.Connection{{Conn: "a", Memlet: memlet.Simple("A", "i")}}, "b = a",
			[]sdfg.Connection{{Conn: "b", Memlet: memlet.Simple("B", "i")}}, true)
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})

	t.Run("dynamic map inputs", func(t *testing.T) {
		g, s := twoStageMap(t, false)
		g.AddArray("bound", data.NewScalar(dtypes.Int64))
		entry := mapEntries(s)[0]
		entry.AddInConnector("n")
		s.AddEdge(s.AddRead("bound"), "", entry, "n", memlet.Simple("bound", "0"))
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})

	t.Run("border array used in another state", func(t *testing.T) {
		g, s := twoStageMap(t, false)
		next := g.AddStateAfter(s, "next")
		next.AddEdge(next.AddRead("tmp"), "", next.AddWrite("C"), "", memlet.Simple("tmp", "0"))
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})

	t.Run("border array used elsewhere in the state", func(t *testing.T) {
		g, s := twoStageMap(t, false)
		g.AddTransient("D", data.NewScalar(dtypes.Float32))
		s.AddEdge(s.AddRead("tmp"), "", s.AddWrite("D"), "", memlet.Simple("tmp", "0"))
		require.NoError(t, sdfg.Validate(g))
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})

	t.Run("non-transient border array", func(t *testing.T) {
		g, _ := twoStageMap(t, false)
		g.Array("tmp").Transient = false
		assert.Empty(t, transformation.Enumerate(g, xf, false))
	})
}

// nestedRows builds B[i, :] = A[i, :]^2 + 1, with the body of the map over rows in a nested SDFG that
// computes the square into a transient row, and then adds one.
func nestedRows(t *testing.T) (*sdfg.SDFG, *sdfg.State, *sdfg.NestedSDFG) {
	inner := sdfg.New("row")
	inner.AddSymbol("M", dtypes.Int64)
	inner.AddArray("x", data.NewArray(dtypes.Float64, symbolic.Symbol("M")))
	inner.AddArray("y", data.NewArray(dtypes.Float64, symbolic.Symbol("M")))
	inner.AddTransient("t", data.NewArray(dtypes.Float64, symbolic.Symbol("M")))
	body := inner.AddState("body")
	_, sqEntry, sqExit := body.AddMappedTasklet("square", []sdfg.MapParam{{Name: "j", Range: "0:M"}},
		[]sdfg.Connection{{Conn: "v", Memlet: memlet.Simple("x", "j")}}, "w = v * v",
		[]sdfg.Connection{{Conn: "w", Memlet: memlet.Simple("t", "j")}}, false)
	_, incEntry, incExit := body.AddMappedTasklet("inc", []sdfg.MapParam{{Name: "j", Range: "0:M"}},
		[]sdfg.Connection{{Conn: "v", Memlet: memlet.Simple("t", "j")}}, "w = v + 1",
		[]sdfg.Connection{{Conn: "w", Memlet: memlet.Simple("y", "j")}}, false)
	row := body.AddAccess("t")
	body.AddEdge(body.AddRead("x"), "", sqEntry, "", memlet.Simple("x", "0:M"))
	body.AddEdge(sqExit, "", row, "", memlet.Simple("t", "0:M"))
	body.AddEdge(row, "", incEntry, "", memlet.Simple("t", "0:M"))
	body.AddEdge(incExit, "", body.AddWrite("y"), "", memlet.Simple("y", "0:M"))
	body.FillScopeConnectors()

	g := sdfg.New("rows")
	g.AddSymbol("N", dtypes.Int64)
	g.AddSymbol("M", dtypes.Int64)
	g.AddArray("A", data.NewArray(dtypes.Float64, symbolic.Symbol("N"), symbolic.Symbol("M")))
	g.AddArray("B", data.NewArray(dtypes.Float64, symbolic.Symbol("N"), symbolic.Symbol("M")))
	s := g.AddState("main")
	entry, exit := s.AddMap("rows", []string{"i"}, []string{"0:N"}, sdfg.ScheduleDefault)
	nested := s.AddNestedSDFG(inner, []string{"x"}, []string{"y"}, map[string]string{"M": "M"})
	s.AddEdge(s.AddRead("A"), "", entry, "", memlet.Simple("A", "0:N, 0:M"))
	s.AddEdge(entry, "", nested, "x", memlet.Simple("A", "i, 0:M"))
	s.AddEdge(nested, "y", exit, "", memlet.Simple("B", "i, 0:M"))
	s.AddEdge(exit, "", s.AddWrite("B"), "", memlet.Simple("B", "0:N, 0:M"))
	s.FillScopeConnectors()
	require.NoError(t, sdfg.Validate(g))
	return g, s, nested
}

func runRows(t *testing.T, g *sdfg.SDFG) []float64 {
	a := interp.FromValues(dtypes.Float64, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b := interp.NewBuffer(dtypes.Float64, 2, 3)
	require.NoError(t, interp.Run(g, map[string]*interp.Buffer{"A": a, "B": b}, map[string]int64{"N": 2, "M": 3}))
	return b.Values()
}

func TestMapFissionNestedSDFG(t *testing.T) {
	g, s, nested := nestedRows(t)
	want := []float64{2, 5, 10, 17, 26, 37}
	assert.Equal(t, want, runRows(t, g))

	xf := &MapFission{}
	matches := transformation.Enumerate(g, xf, false)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].ExprIndex)

	d := transformation.NewDriver(nil)
	applied, err := d.ApplyFirst(g, xf)
	require.NoError(t, err)
	require.True(t, applied)

	// The outer map is gone, the nested SDFG reads and writes the full arrays.
	assert.Empty(t, mapEntries(s))
	for _, e := range s.AllEdges(nested) {
		assert.Equal(t, "0:N, 0:M", e.Data.Subset.String())
	}

	// Inside, each component has its own copy of the map, the connector arrays take the outer shape and
	// the border transient gets the map dimension.
	inner := nested.SDFG
	body := inner.StartState()
	fissionMaps := 0
	for _, entry := range mapEntries(body) {
		if entry.Map.Label == "rows_fission" {
			fissionMaps++
		}
	}
	assert.Equal(t, 2, fissionMaps)
	assert.Equal(t, []string{"N", "M"}, exprStrings(inner.Array("x").Shape))
	assert.Equal(t, []string{"N", "M"}, exprStrings(inner.Array("y").Shape))
	assert.Equal(t, []string{"N", "M"}, exprStrings(inner.Array("t").Shape))
	assert.Equal(t, []string{"M", "1"}, exprStrings(inner.Array("t").Strides))
	assert.Contains(t, inner.Symbols, "N")
	assert.Equal(t, "N", nested.SymbolMapping["N"].String())

	// The innermost memlets are indexed by both the row and the column.
	for _, e := range body.Edges() {
		if tasklet, ok := body.Dst(e).(*sdfg.Tasklet); ok && tasklet.Name == "square" {
			assert.Equal(t, "x[i, j]", e.Data.String())
		}
		if tasklet, ok := body.Src(e).(*sdfg.Tasklet); ok && tasklet.Name == "square" {
			assert.Equal(t, "t[i, j]", e.Data.String())
		}
	}

	require.NoError(t, sdfg.Validate(g))
	assert.Equal(t, want, runRows(t, g))
}

func TestMapFissionRegistered(t *testing.T) {
	g, _ := twoStageMap(t, false)
	d := transformation.NewDriver(config.New())
	total, err := d.ApplyAll(g, MapFissionName)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, map[string]int{MapFissionName: 1}, d.Counts())
}
