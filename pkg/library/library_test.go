// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package library

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const copyKindName = "TestCopy"

var copyKind = RegisterKind(&Kind{
	Name:    copyKindName,
	Inputs:  []string{"_in"},
	Outputs: []string{"_out"},
	Validate: func(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) error {
		if state.InDegree(node) != 1 {
			return sdfg.Validationf("%s: expected one input, got %d", node, state.InDegree(node))
		}
		return nil
	},
})

func copyTasklet(code string, language sdfg.Language) ExpandFn {
	return func(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) (sdfg.Node, error) {
		return sdfg.NewTasklet(node.Name, node.InConnectors(), node.OutConnectors(), code, language), nil
	}
}

func init() {
	RegisterEnvironment(&Environment{Name: "FastCopy"})
	copyKind.
		AddImplementation(&Implementation{Name: Pure, Expand: copyTasklet("_out = _in", sdfg.LanguagePython)}).
		AddImplementation(&Implementation{Name: "fast", Environments: []string{"FastCopy"},
			Expand: copyTasklet("fast_copy(_in, &_out);", sdfg.LanguageCPP)}).
		AddImplementation(&Implementation{Name: "twice", Expand: copyTasklet("_out = 2 * _in", sdfg.LanguagePython)}).
		AddImplementation(&Implementation{Name: "broken",
			Expand: func(*sdfg.SDFG, *sdfg.State, *sdfg.LibraryNode) (sdfg.Node, error) {
				return nil, sdfg.Unsupportedf("always fails")
			}})
}

// copyProgram builds B = copy(A), with the library node between two access nodes.
func copyProgram(t *testing.T) (*sdfg.SDFG, *sdfg.State, *sdfg.LibraryNode) {
	g := sdfg.New("copy")
	g.AddArray("A", data.NewScalar(dtypes.Float32))
	g.AddArray("B", data.NewScalar(dtypes.Float32))
	s := g.AddState("main")
	node := s.AddLibraryNode(copyKind.NewNode("cp"))
	s.AddEdge(s.AddRead("A"), "", node, "_in", memlet.Simple("A", "0"))
	s.AddEdge(node, "_out", s.AddWrite("B"), "", memlet.Simple("B", "0"))
	require.NoError(t, sdfg.Validate(g))
	return g, s, node
}

func TestRegistry(t *testing.T) {
	k, found := LookupKind(copyKindName)
	require.True(t, found)
	assert.Equal(t, []string{Pure, "fast", "twice", "broken"}, k.Implementations())
	assert.Contains(t, Kinds(), copyKindName)
	_, found = LookupEnvironment("FastCopy")
	assert.True(t, found)

	require.Panics(t, func() { copyKind.AddImplementation(&Implementation{Name: "fast", Expand: copyTasklet("", sdfg.LanguageCPP)}) })
	require.Panics(t, func() { RegisterKind(&Kind{Name: copyKindName}) })
	require.Panics(t, func() { RegisterEnvironment(&Environment{Name: "FastCopy"}) })
	require.Len(t, k.Implementations(), 4)
}

func TestCandidates(t *testing.T) {
	names := func(impls []*Implementation) (out []string) {
		for _, impl := range impls {
			out = append(out, impl.Name)
		}
		return
	}
	opts := config.New()
	assert.Equal(t, []string{Pure, "twice", "broken"}, names(Candidates(copyKind, opts)))
	assert.Equal(t, []string{Pure, "twice", "broken"}, names(Candidates(copyKind, nil)))
	opts.WithEnvironment("FastCopy", true)
	assert.Equal(t, []string{Pure, "fast", "twice", "broken"}, names(Candidates(copyKind, opts)))
}

func TestSelect(t *testing.T) {
	opts := config.New()
	node := copyKind.NewNode("cp")

	// Fallback to pure.
	_, impl, err := Select(node, opts)
	require.NoError(t, err)
	assert.Equal(t, Pure, impl.Name)

	// Kind default.
	copyKind.DefaultImplementation = "twice"
	defer func() { copyKind.DefaultImplementation = "" }()
	_, impl, err = Select(node, opts)
	require.NoError(t, err)
	assert.Equal(t, "twice", impl.Name)

	// Configured default.
	opts.WithDefaultImplementation(copyKindName, "broken")
	_, impl, err = Select(node, opts)
	require.NoError(t, err)
	assert.Equal(t, "broken", impl.Name)

	// Explicit.
	node.Implementation = "fast"
	_, _, err = Select(node, opts)
	require.ErrorIs(t, err, sdfg.ErrEnvironmentUnavailable)
	opts.WithEnvironment("FastCopy", true)
	_, impl, err = Select(node, opts)
	require.NoError(t, err)
	assert.Equal(t, "fast", impl.Name)

	node.Implementation = "missing"
	_, _, err = Select(node, opts)
	require.ErrorIs(t, err, sdfg.ErrUnsupportedConfiguration)

	unknown := sdfg.NewLibraryNode("x", "NoSuchKind", nil, nil)
	_, _, err = Select(unknown, opts)
	require.ErrorIs(t, err, sdfg.ErrUnsupportedConfiguration)
}

func TestExpand(t *testing.T) {
	g, s, node := copyProgram(t)
	id := node.ID()
	inEdges, outEdges := s.InEdges(node), s.OutEdges(node)

	replacement, err := Expand(g, s, node, nil)
	require.NoError(t, err)
	tasklet, ok := replacement.(*sdfg.Tasklet)
	require.True(t, ok)
	assert.Equal(t, "_out = _in", tasklet.Code)
	assert.Equal(t, id, tasklet.ID())
	assert.Same(t, tasklet, s.Node(id))
	assert.Equal(t, inEdges, s.InEdges(tasklet))
	assert.Equal(t, outEdges, s.OutEdges(tasklet))
	assert.Equal(t, []string{"_in"}, tasklet.InConnectors())
	assert.Equal(t, []string{"_out"}, tasklet.OutConnectors())
	assert.False(t, s.Has(node))
	require.NoError(t, sdfg.Validate(g))
	require.NoError(t, sdfg.CheckExpanded(g))
}

func TestExpandFailuresLeaveGraphUntouched(t *testing.T) {
	g, s, node := copyProgram(t)

	node.Implementation = "fast"
	_, err := Expand(g, s, node, config.New())
	require.ErrorIs(t, err, sdfg.ErrEnvironmentUnavailable)
	assert.True(t, s.Has(node))

	node.Implementation = "broken"
	_, err = Expand(g, s, node, config.New())
	require.ErrorIs(t, err, sdfg.ErrUnsupportedConfiguration)
	assert.True(t, s.Has(node))

	// Validation fails: a second input edge.
	node.Implementation = ""
	s.AddEdge(s.AddRead("A"), "", node, "_in", memlet.Simple("A", "0"))
	_, err = Expand(g, s, node, config.New())
	require.ErrorIs(t, err, sdfg.ErrValidation)
	assert.True(t, s.Has(node))
	require.Error(t, sdfg.CheckExpanded(g))
}

func TestExpandAll(t *testing.T) {
	g, s, good := copyProgram(t)
	bad := s.AddLibraryNode(copyKind.NewNode("bad"))
	bad.Implementation = "broken"
	s.AddEdge(s.AddRead("B"), "", bad, "_in", memlet.Simple("B", "0"))
	g.AddTransient("C", data.NewScalar(dtypes.Float32))
	s.AddEdge(bad, "_out", s.AddWrite("C"), "", memlet.Simple("C", "0"))

	// A library node in a nested SDFG.
	inner := sdfg.New("inner")
	inner.AddArray("x", data.NewScalar(dtypes.Float32))
	inner.AddArray("y", data.NewScalar(dtypes.Float32))
	is := inner.AddState("inner_main")
	nestedNode := is.AddLibraryNode(copyKind.NewNode("nested_cp"))
	is.AddEdge(is.AddRead("x"), "", nestedNode, "_in", memlet.Simple("x", "0"))
	is.AddEdge(nestedNode, "_out", is.AddWrite("y"), "", memlet.Simple("y", "0"))
	s2 := g.AddStateAfter(s, "second")
	g.AddArray("D", data.NewScalar(dtypes.Float32))
	nested := s2.AddNestedSDFG(inner, []string{"x"}, []string{"y"}, nil)
	s2.AddEdge(s2.AddRead("A"), "", nested, "x", memlet.Simple("A", "0"))
	s2.AddEdge(nested, "y", s2.AddWrite("D"), "", memlet.Simple("D", "0"))

	expanded, failures := ExpandAll(g, config.New().WithDebugPrint(true))
	assert.Equal(t, 2, expanded)
	require.Len(t, failures, 1)
	assert.Same(t, bad, failures[0].Node)
	assert.Same(t, s, failures[0].State)
	assert.True(t, errors.Is(failures[0], sdfg.ErrUnsupportedConfiguration))
	assert.Contains(t, failures[0].Error(), "always fails")

	assert.False(t, s.Has(good))
	assert.True(t, s.Has(bad))
	assert.False(t, is.Has(nestedNode))
}
