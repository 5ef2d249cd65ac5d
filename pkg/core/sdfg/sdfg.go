// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sdfg implements the Stateful DataFlow multiGraph (SDFG) intermediate representation.
//
// An SDFG is a control-flow graph of States. Each State is a dataflow multigraph of nodes (access nodes,
// map scopes, tasklets, nested SDFGs and library nodes) connected by edges carrying memlets.
// Nodes and edges live in per-state arenas and are addressed by stable handles (NodeID, EdgeID).
//
// Nested SDFGs are owned by their NestedSDFG node: recursive algorithms descend into them explicitly,
// there are no parent pointers from a nested SDFG to the outer one.
package sdfg

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/support/sets"
	"github.com/google/uuid"
)

// SDFG is the top-level (or nested) graph: a control-flow graph of states, with a registry of data
// descriptors and the declared free symbols.
type SDFG struct {
	Name string
	ID   uuid.UUID

	// Arrays holds the data descriptors declared by this SDFG.
	Arrays *data.Registry

	// Symbols declared by the SDFG (sizes, map parameters passed from outside), with their type.
	Symbols map[string]dtypes.DType

	// Constants are compile-time known symbol values.
	Constants map[string]int64

	states     []*State
	edges      []*InterstateEdge
	startState StateID
}

// InterstateEdge is a control-flow transition between states, with an optional guard condition and
// symbol assignments. Their contents are opaque to the transformations in this module.
type InterstateEdge struct {
	Src, Dst    StateID
	Condition   string
	Assignments map[string]string
}

// New creates an empty SDFG.
func New(name string) *SDFG {
	return &SDFG{
		Name:       name,
		ID:         uuid.New(),
		Arrays:     data.NewRegistry(),
		Symbols:    make(map[string]dtypes.DType),
		Constants:  make(map[string]int64),
		startState: -1,
	}
}

// String implements fmt.Stringer.
func (g *SDFG) String() string { return fmt.Sprintf("SDFG(%s)", g.Name) }

// AddState adds an empty state. The first state added is the start state.
func (g *SDFG) AddState(label string) *State {
	s := &State{Label: label, id: StateID(len(g.states)), sdfg: g}
	g.states = append(g.states, s)
	if g.startState < 0 {
		g.startState = s.id
	}
	return s
}

// AddStateAfter adds a state and an unconditional transition from prev to it.
func (g *SDFG) AddStateAfter(prev *State, label string) *State {
	s := g.AddState(label)
	g.AddInterstateEdge(prev, s, "", nil)
	return s
}

// States returns the states in handle order.
func (g *SDFG) States() []*State {
	return slices.DeleteFunc(slices.Clone(g.states), func(s *State) bool { return s == nil })
}

// State returns the state with the given handle. It panics if it doesn't exist.
func (g *SDFG) State(id StateID) *State {
	if id < 0 || int(id) >= len(g.states) || g.states[id] == nil {
		exceptions.Panicf("state #%d not found in %s", id, g)
	}
	return g.states[id]
}

// StartState returns the initial state, or nil for an empty SDFG.
func (g *SDFG) StartState() *State {
	if g.startState < 0 {
		return nil
	}
	return g.states[g.startState]
}

// SetStartState changes the initial state.
func (g *SDFG) SetStartState(s *State) {
	if s.sdfg != g {
		exceptions.Panicf("%s doesn't belong to %s", s, g)
	}
	g.startState = s.id
}

// RemoveState removes the state and its transitions.
func (g *SDFG) RemoveState(s *State) {
	if s.sdfg != g || g.states[s.id] != s {
		exceptions.Panicf("%s doesn't belong to %s", s, g)
	}
	g.states[s.id] = nil
	g.edges = slices.DeleteFunc(g.edges, func(e *InterstateEdge) bool { return e.Src == s.id || e.Dst == s.id })
	if g.startState == s.id {
		g.startState = -1
		if states := g.States(); len(states) > 0 {
			g.startState = states[0].id
		}
	}
}

// AddInterstateEdge adds a control-flow transition.
func (g *SDFG) AddInterstateEdge(src, dst *State, condition string, assignments map[string]string) *InterstateEdge {
	e := &InterstateEdge{Src: src.id, Dst: dst.id, Condition: condition, Assignments: maps.Clone(assignments)}
	g.edges = append(g.edges, e)
	return e
}

// InterstateEdges returns the control-flow transitions, in insertion order.
func (g *SDFG) InterstateEdges() []*InterstateEdge {
	return slices.Clone(g.edges)
}

// StatesInOrder returns the states reachable from the start state, in breadth-first order
// following transitions in insertion order, followed by any unreachable states in handle order.
func (g *SDFG) StatesInOrder() []*State {
	var order []*State
	visited := sets.Make[StateID]()
	if start := g.StartState(); start != nil {
		queue := []StateID{start.id}
		visited.Insert(start.id)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			order = append(order, g.states[id])
			for _, e := range g.edges {
				if e.Src == id && !visited.Has(e.Dst) {
					visited.Insert(e.Dst)
					queue = append(queue, e.Dst)
				}
			}
		}
	}
	for _, s := range g.States() {
		if !visited.Has(s.id) {
			order = append(order, s)
		}
	}
	return order
}

// AddArray registers an array descriptor. It panics if the name is invalid or already used.
func (g *SDFG) AddArray(name string, desc *data.Descriptor) *data.Descriptor {
	if err := g.Arrays.Add(name, desc); err != nil {
		panic(err)
	}
	return desc
}

// AddTransient registers a transient array descriptor. It panics if the name is invalid or already used.
func (g *SDFG) AddTransient(name string, desc *data.Descriptor) *data.Descriptor {
	desc.Transient = true
	return g.AddArray(name, desc)
}

// AddSymbol declares a free symbol.
func (g *SDFG) AddSymbol(name string, dtype dtypes.DType) {
	g.Symbols[name] = dtype
}

// Array returns the descriptor of name. It panics if it doesn't exist.
func (g *SDFG) Array(name string) *data.Descriptor {
	desc, found := g.Arrays.Get(name)
	if !found {
		exceptions.Panicf("array %q not declared in %s", name, g)
	}
	return desc
}

// NodeInContext is a node with the state and SDFG that contain it.
type NodeInContext struct {
	Node  Node
	State *State
	SDFG  *SDFG
}

// AllNodesRecursive returns all nodes of g and of its nested SDFGs, in document order: states in handle
// order, nodes in handle order, and the contents of a nested SDFG right after its node.
func (g *SDFG) AllNodesRecursive() []NodeInContext {
	var all []NodeInContext
	for _, s := range g.States() {
		for _, n := range s.Nodes() {
			all = append(all, NodeInContext{Node: n, State: s, SDFG: g})
			if nested, ok := n.(*NestedSDFG); ok {
				all = append(all, nested.SDFG.AllNodesRecursive()...)
			}
		}
	}
	return all
}

// AllSDFGsRecursive returns g followed by all its nested SDFGs, in document order.
func (g *SDFG) AllSDFGsRecursive() []*SDFG {
	all := []*SDFG{g}
	for _, nc := range g.AllNodesRecursive() {
		if nested, ok := nc.Node.(*NestedSDFG); ok {
			all = append(all, nested.SDFG)
		}
	}
	return all
}

// ArrayInContext is an array descriptor with the SDFG that declares it.
type ArrayInContext struct {
	Name string
	Desc *data.Descriptor
	SDFG *SDFG
}

// ArraysRecursive returns the arrays declared by g and by its nested SDFGs, in document order.
func (g *SDFG) ArraysRecursive() []ArrayInContext {
	var all []ArrayInContext
	for _, sdfg := range g.AllSDFGsRecursive() {
		for _, name := range sdfg.Arrays.Names() {
			desc, _ := sdfg.Arrays.Get(name)
			all = append(all, ArrayInContext{Name: name, Desc: desc, SDFG: sdfg})
		}
	}
	return all
}

var reIdentifier = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// SharedTransients returns the transients of g that are used in more than one state, or referenced by
// interstate edges. The result is sorted.
func (g *SDFG) SharedTransients() []string {
	shared := sets.Make[string]()
	isTransient := func(name string) bool {
		desc, found := g.Arrays.Get(name)
		return found && desc.Transient
	}
	for _, e := range g.edges {
		texts := []string{e.Condition}
		for _, v := range e.Assignments {
			texts = append(texts, v)
		}
		for _, text := range texts {
			for _, name := range reIdentifier.FindAllString(text, -1) {
				if isTransient(name) {
					shared.Insert(name)
				}
			}
		}
	}
	seen := make(map[string]StateID)
	for _, s := range g.States() {
		for _, a := range s.DataNodes() {
			if !isTransient(a.Data) {
				continue
			}
			if first, found := seen[a.Data]; found && first != s.id {
				shared.Insert(a.Data)
			}
			seen[a.Data] = s.id
		}
	}
	return sets.Sorted(shared)
}

// UsedArrays returns the names of the arrays accessed in any state of g (not including nested SDFGs).
func (g *SDFG) UsedArrays() sets.Set[string] {
	used := sets.Make[string]()
	for _, s := range g.States() {
		for _, a := range s.DataNodes() {
			used.Insert(a.Data)
		}
		for _, e := range s.Edges() {
			if !e.Data.IsEmpty() {
				used.Insert(e.Data.Data)
			}
		}
	}
	return used
}
