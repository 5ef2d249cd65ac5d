// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transformation

import (
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testEntry   = NewPatternNode[*sdfg.MapEntry]("map_entry")
	testTasklet = NewPatternNode[*sdfg.Tasklet]("tasklet")
	testExit    = NewPatternNode[*sdfg.MapExit]("map_exit")
)

// markTasklets appends "_seen" to the name of tasklets directly inside a map.
type markTasklets struct {
	exprs []*Pattern
}

func (x *markTasklets) Name() string { return "MarkTasklets" }
func (x *markTasklets) Expressions() []*Pattern {
	if x.exprs != nil {
		return x.exprs
	}
	return []*Pattern{PathGraph(testEntry, testTasklet)}
}
func (x *markTasklets) CanBeApplied(m *Match, strict bool) bool {
	return !strings.HasSuffix(Get[*sdfg.Tasklet](m, testTasklet).Name, "_seen")
}
func (x *markTasklets) Apply(m *Match) {
	Get[*sdfg.Tasklet](m, testTasklet).Name += "_seen"
}
func (x *markTasklets) AnnotatesMemlets() bool { return true }

// countGraphs counts whole-graph applications without changing anything.
type countGraphs struct{ applied int }

func (x *countGraphs) Name() string                            { return "CountGraphs" }
func (x *countGraphs) Expressions() []*Pattern                 { return []*Pattern{{}} }
func (x *countGraphs) CanBeApplied(m *Match, strict bool) bool { return true }
func (x *countGraphs) Apply(m *Match)                          { x.applied++ }
func (x *countGraphs) AnnotatesMemlets() bool                  { return true }

func init() {
	Register("MarkTasklets", func(*config.Options) Transformation { return &markTasklets{} })
}

// twoStates builds two states, each with a mapped tasklet, and a nested SDFG with a third one.
func twoStates(t *testing.T) *sdfg.SDFG {
	g := sdfg.New("program")
	g.AddSymbol("N", dtypes.Int64)
	for _, name := range []string{"A", "B", "C", "D"} {
		g.AddArray(name, data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
	}
	s0 := g.AddState("s0")
	s0.AddMappedTasklet("first", []sdfg.MapParam{{"i", "0:N"}},
		[]sdfg.Connection{{"a", memlet.Simple("A", "i")}}, "b = a + 1",
		[]sdfg.Connection{{"b", memlet.Simple("B", "i")}}, true)
	s1 := g.AddStateAfter(s0, "s1")
	s1.AddMappedTasklet("second", []sdfg.MapParam{{"i", "0:N"}},
		[]sdfg.Connection{{"b", memlet.Simple("B", "i")}}, "c = b * 2",
		[]sdfg.Connection{{"c", memlet.Simple("C", "i")}}, true)

	inner := sdfg.New("inner")
	inner.AddSymbol("N", dtypes.Int64)
	inner.AddArray("x", data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
	inner.AddArray("y", data.NewArray(dtypes.Float32, symbolic.Symbol("N")))
	inner.AddState("body").AddMappedTasklet("third", []sdfg.MapParam{{"j", "0:N"}},
		[]sdfg.Connection{{"x", memlet.Simple("x", "j")}}, "y = -x",
		[]sdfg.Connection{{"y", memlet.Simple("y", "j")}}, true)
	nested := s1.AddNestedSDFG(inner, []string{"x"}, []string{"y"}, map[string]string{"N": "N"})
	s1.AddEdge(s1.AddRead("C"), "", nested, "x", memlet.Simple("C", "0:N"))
	s1.AddEdge(nested, "y", s1.AddWrite("D"), "", memlet.Simple("D", "0:N"))
	require.NoError(t, sdfg.Validate(g))
	return g
}

func TestEnumerate(t *testing.T) {
	g := twoStates(t)
	xf := &markTasklets{}
	matches := Enumerate(g, xf, false)
	require.Len(t, matches, 3)
	names := make([]string, len(matches))
	for ii, m := range matches {
		names[ii] = Get[*sdfg.Tasklet](m, testTasklet).Name
		assert.Same(t, g, m.Root)
		assert.Equal(t, 0, m.ExprIndex)
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
	assert.False(t, matches[0].Nested)
	assert.False(t, matches[1].Nested)
	assert.True(t, matches[2].Nested)
	assert.Equal(t, "inner", matches[2].SDFG.Name)
	assert.Equal(t, "s1", matches[1].State.Label)

	// Enumeration is read-only and deterministic.
	again := Enumerate(g, xf, false)
	require.Len(t, again, 3)
	for ii := range matches {
		assert.Equal(t, matches[ii].String(), again[ii].String())
	}

	// Placeholders not in the matched expression.
	assert.True(t, matches[0].Has(testEntry))
	assert.False(t, matches[0].Has(testExit))
	assert.Panics(t, func() { matches[0].Node(testExit) })
}

func TestPatternEdges(t *testing.T) {
	g := twoStates(t)

	// entry -> tasklet -> exit, with the extra (non-path) edge entry -> exit that doesn't exist.
	xf := &markTasklets{exprs: []*Pattern{
		PathGraph(testEntry, testTasklet, testExit),
		{Nodes: []*PatternNode{testEntry, testTasklet, testExit}, Edges: [][2]int{{0, 1}, {1, 2}, {0, 2}}},
	}}
	matches := Enumerate(g, xf, false)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Equal(t, 0, m.ExprIndex)
		entry := Get[*sdfg.MapEntry](m, testEntry)
		exit := Get[*sdfg.MapExit](m, testExit)
		assert.Same(t, entry.Map, exit.Map)
	}
	assert.Equal(t, "map_entry->tasklet, tasklet->map_exit", xf.exprs[0].String())

	// Reversed edge: no occurrence.
	xf = &markTasklets{exprs: []*Pattern{PathGraph(testTasklet, testEntry)}}
	assert.Empty(t, Enumerate(g, xf, false))
}

func TestWholeGraphPattern(t *testing.T) {
	g := twoStates(t)
	xf := &countGraphs{}
	matches := Enumerate(g, xf, false)
	require.Len(t, matches, 2)
	assert.Nil(t, matches[0].State)
	assert.False(t, matches[0].Nested)
	assert.True(t, matches[1].Nested)
	assert.Equal(t, "SDFG(program)", matches[0].String())
	assert.Empty(t, matches[0].Nodes())
}

func TestDriver(t *testing.T) {
	g := twoStates(t)
	d := NewDriver(nil)
	xf := &markTasklets{}

	applied, err := d.ApplyFirst(g, xf)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Len(t, Enumerate(g, xf, false), 2)

	count, err := d.ApplyRepeated(g, xf, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = d.ApplyRepeated(g, xf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, Enumerate(g, xf, false))

	applied, err = d.ApplyFirst(g, xf)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, map[string]int{"MarkTasklets": 3}, d.Counts())
}

func TestApplyAll(t *testing.T) {
	g := twoStates(t)
	opts := config.New()
	opts.Params.Set("/MarkTasklets", config.ParamMaxApplications, 2)
	d := NewDriver(opts)
	total, err := d.ApplyAll(g, "MarkTasklets")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, err = d.ApplyAll(g, "NoSuchTransformation")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchTransformation")
}

func TestRegistry(t *testing.T) {
	assert.True(t, IsRegistered("MarkTasklets"))
	assert.Contains(t, Names(), "MarkTasklets")
	assert.Equal(t, "MarkTasklets", New("MarkTasklets", config.New()).Name())
	assert.Panics(t, func() {
		Register("MarkTasklets", func(*config.Options) Transformation { return &markTasklets{} })
	})
	assert.Panics(t, func() { New("NoSuchTransformation", nil) })
}
