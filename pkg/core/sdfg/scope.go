// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/support/sets"
)

// View is a read-only view of (part of) a dataflow graph: either a whole *State or a *SubgraphView.
// Edges of a view only include edges between nodes of the view.
type View interface {
	// State is the underlying state.
	State() *State
	Nodes() []Node
	Has(n Node) bool
	InEdges(n Node) []*Edge
	OutEdges(n Node) []*Edge
	SourceNodes() []Node
	SinkNodes() []Node
}

var (
	_ View = (*State)(nil)
	_ View = (*SubgraphView)(nil)
)

// SubgraphView is a subset of the nodes of a State.
type SubgraphView struct {
	state *State
	ids   sets.Set[NodeID]
}

// NewSubgraphView creates a view of the given nodes of state.
func NewSubgraphView(state *State, nodes []Node) *SubgraphView {
	v := &SubgraphView{state: state, ids: sets.Make[NodeID](len(nodes))}
	for _, n := range nodes {
		if !state.Has(n) {
			exceptions.Panicf("NewSubgraphView: %s is not part of %s", n, state)
		}
		v.ids.Insert(n.ID())
	}
	return v
}

// State implements View.
func (v *SubgraphView) State() *State { return v.state }

// Has implements View.
func (v *SubgraphView) Has(n Node) bool {
	return v.ids.Has(n.ID()) && v.state.Has(n)
}

// Nodes implements View. Nodes are returned in handle order.
func (v *SubgraphView) Nodes() []Node {
	var nodes []Node
	for _, id := range sets.Sorted(v.ids) {
		if n, found := v.state.Lookup(id); found {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// InEdges implements View: only edges coming from nodes in the view are returned.
func (v *SubgraphView) InEdges(n Node) []*Edge {
	return slices.DeleteFunc(v.state.InEdges(n), func(e *Edge) bool { return !v.ids.Has(e.Src) })
}

// OutEdges implements View: only edges going to nodes in the view are returned.
func (v *SubgraphView) OutEdges(n Node) []*Edge {
	return slices.DeleteFunc(v.state.OutEdges(n), func(e *Edge) bool { return !v.ids.Has(e.Dst) })
}

// SourceNodes implements View.
func (v *SubgraphView) SourceNodes() []Node {
	return slices.DeleteFunc(v.Nodes(), func(n Node) bool { return len(v.InEdges(n)) > 0 })
}

// SinkNodes implements View.
func (v *SubgraphView) SinkNodes() []Node {
	return slices.DeleteFunc(v.Nodes(), func(n Node) bool { return len(v.OutEdges(n)) > 0 })
}

// ExitNode returns the exit of the map scope opened by entry.
// It panics if there is none.
func (s *State) ExitNode(entry *MapEntry) *MapExit {
	for _, n := range s.nodes {
		if exit, ok := n.(*MapExit); ok && exit.Map == entry.Map {
			return exit
		}
	}
	exceptions.Panicf("no exit node for %s in %s", entry, s)
	return nil
}

// EntryNode returns the entry of the map scope closed by exit.
// It panics if there is none.
func (s *State) EntryNode(exit *MapExit) *MapEntry {
	for _, n := range s.nodes {
		if entry, ok := n.(*MapEntry); ok && entry.Map == exit.Map {
			return entry
		}
	}
	exceptions.Panicf("no entry node for %s in %s", exit, s)
	return nil
}

// ScopeDict maps each node to the innermost MapEntry whose scope contains it, or nil for top-level nodes.
// A MapExit belongs to the same scope as its MapEntry.
//
// It is a derived index, computed on demand: recompute it after mutating the graph.
type ScopeDict map[NodeID]*MapEntry

// ScopeDictOf computes the scope of every node of the view.
// Only edges within the view are considered, so the scopes are relative to the view.
func ScopeDictOf(view View) ScopeDict {
	state := view.State()
	nodes := view.Nodes()
	order, ok := topologicalSort(view, nodes)
	if !ok {
		exceptions.Panicf("cannot compute scopes of %s: graph has a cycle", state)
	}
	entries := make(map[*Map]*MapEntry)
	for _, n := range nodes {
		if entry, ok := n.(*MapEntry); ok {
			entries[entry.Map] = entry
		}
	}
	scopes := make(ScopeDict, len(nodes))
	for _, n := range order {
		if exit, ok := n.(*MapExit); ok {
			if entry, found := entries[exit.Map]; found {
				scopes[n.ID()] = scopes[entry.ID()]
				continue
			}
		}
		inEdges := view.InEdges(n)
		if len(inEdges) == 0 {
			scopes[n.ID()] = nil
			continue
		}
		src := state.Node(inEdges[0].Src)
		if entry, ok := src.(*MapEntry); ok {
			scopes[n.ID()] = entry
		} else {
			scopes[n.ID()] = scopes[src.ID()]
		}
	}
	return scopes
}

// ScopeDict computes the scope of every node of the state.
func (s *State) ScopeDict() ScopeDict {
	return ScopeDictOf(s)
}

// Children returns the nodes directly in the scope of entry (nil for the top-level), in handle order.
// Exits of nested scopes are included, the exit of entry itself is not.
func (sd ScopeDict) Children(view View, entry *MapEntry) []Node {
	var children []Node
	for _, n := range view.Nodes() {
		if scope, found := sd[n.ID()]; found && scope == entry && n != Node(entry) {
			children = append(children, n)
		}
	}
	return children
}

// Parent returns the innermost scope containing n, or nil.
func (sd ScopeDict) Parent(n Node) *MapEntry {
	return sd[n.ID()]
}

// IsInScope returns whether n is (transitively) inside the scope of entry.
func (sd ScopeDict) IsInScope(n Node, entry *MapEntry) bool {
	for scope := sd[n.ID()]; scope != nil; scope = sd[scope.ID()] {
		if scope == entry {
			return true
		}
	}
	return false
}

// Depth returns the number of scopes containing n.
func (sd ScopeDict) Depth(n Node) int {
	depth := 0
	for scope := sd[n.ID()]; scope != nil; scope = sd[scope.ID()] {
		depth++
	}
	return depth
}

// ScopeSubgraph returns a view of all nodes (transitively) in the scope of entry, optionally including the
// entry and exit nodes themselves.
func (s *State) ScopeSubgraph(entry *MapEntry, includeEntry, includeExit bool) *SubgraphView {
	sd := s.ScopeDict()
	exit := s.ExitNode(entry)
	var nodes []Node
	for _, n := range s.Nodes() {
		switch {
		case n == Node(entry):
			if includeEntry {
				nodes = append(nodes, n)
			}
		case n == Node(exit):
			if includeExit {
				nodes = append(nodes, n)
			}
		case sd.IsInScope(n, entry):
			nodes = append(nodes, n)
		}
	}
	return NewSubgraphView(s, nodes)
}

// HasDynamicMapInputs returns whether the map's range depends on data: that is, whether the entry has
// non-empty input edges that are not scope connectors (IN_*).
func (s *State) HasDynamicMapInputs(entry *MapEntry) bool {
	for _, e := range s.InEdges(entry) {
		if !e.Data.IsEmpty() && !strings.HasPrefix(e.DstConn, InPrefix) {
			return true
		}
	}
	return false
}
