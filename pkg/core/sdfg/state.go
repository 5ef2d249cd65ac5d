// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
)

// Edge of a dataflow graph: it connects the output connector SrcConn of Src to the input connector DstConn
// of Dst. Connectors are empty when the endpoint is an AccessNode, or for empty memlets.
type Edge struct {
	id      EdgeID
	Src     NodeID
	SrcConn string
	Dst     NodeID
	DstConn string
	Data    *memlet.Memlet
}

// ID returns the handle of the edge in its State.
func (e *Edge) ID() EdgeID { return e.id }

// String implements fmt.Stringer.
func (e *Edge) String() string {
	return fmt.Sprintf("#%d:%s -> #%d:%s [%s]", e.Src, e.SrcConn, e.Dst, e.DstConn, e.Data)
}

// State is a dataflow multigraph, stored as an arena of nodes and edges.
//
// Removed nodes and edges leave an empty slot behind, so handles of the remaining ones never change.
// All enumerations are in handle order, which makes every algorithm on the graph deterministic.
type State struct {
	Label string

	id    StateID
	sdfg  *SDFG
	nodes []Node
	edges []*Edge
}

// State implements View: a State is a view of itself.
func (s *State) State() *State { return s }

// ID returns the handle of the state in its SDFG.
func (s *State) ID() StateID { return s.id }

// SDFG returns the SDFG owning the state.
func (s *State) SDFG() *SDFG { return s.sdfg }

// String implements fmt.Stringer.
func (s *State) String() string { return fmt.Sprintf("State(%s)", s.Label) }

// AddNode adds n to the state and assigns its ID.
// It panics if n already belongs to a state.
func (s *State) AddNode(n Node) NodeID {
	b := n.base()
	if b.id != InvalidNodeID {
		exceptions.Panicf("node %s already added to a state with id #%d", n, b.id)
	}
	b.id = NodeID(len(s.nodes))
	s.nodes = append(s.nodes, n)
	return b.id
}

// Lookup returns the node with the given handle, or false if it was removed or never existed.
func (s *State) Lookup(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(s.nodes) || s.nodes[id] == nil {
		return nil, false
	}
	return s.nodes[id], true
}

// Node returns the node with the given handle. It panics if it doesn't exist.
func (s *State) Node(id NodeID) Node {
	n, found := s.Lookup(id)
	if !found {
		exceptions.Panicf("node #%d not found in %s", id, s)
	}
	return n
}

// Has returns whether the node belongs to this state.
func (s *State) Has(n Node) bool {
	found, ok := s.Lookup(n.ID())
	return ok && found == n
}

// Nodes returns the nodes in handle order.
func (s *State) Nodes() []Node {
	nodes := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// NumNodes returns the number of (non-removed) nodes.
func (s *State) NumNodes() int {
	count := 0
	for _, n := range s.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// RemoveNode removes the node and all its edges.
func (s *State) RemoveNode(n Node) {
	if !s.Has(n) {
		exceptions.Panicf("cannot remove %s: not part of %s", n, s)
	}
	for _, e := range s.AllEdges(n) {
		s.RemoveEdge(e)
	}
	s.nodes[n.ID()] = nil
	n.base().id = InvalidNodeID
}

// RemoveNodes removes all given nodes and their edges.
func (s *State) RemoveNodes(nodes ...Node) {
	for _, n := range nodes {
		s.RemoveNode(n)
	}
}

// ReplaceNode puts replacement in the slot of old: the replacement takes over old's handle,
// and thus all its edges. old is detached from the state.
//
// It panics if an edge of old uses a connector that replacement doesn't have.
func (s *State) ReplaceNode(old, replacement Node) {
	if !s.Has(old) {
		exceptions.Panicf("cannot replace %s: not part of %s", old, s)
	}
	if replacement.ID() != InvalidNodeID {
		exceptions.Panicf("replacement %s already belongs to a state", replacement)
	}
	id := old.ID()
	for _, e := range s.InEdges(old) {
		if e.DstConn != "" && !replacement.HasInConnector(e.DstConn) {
			exceptions.Panicf("replacement %s has no input connector %q used by edge %s", replacement, e.DstConn, e)
		}
	}
	for _, e := range s.OutEdges(old) {
		if e.SrcConn != "" && !replacement.HasOutConnector(e.SrcConn) {
			exceptions.Panicf("replacement %s has no output connector %q used by edge %s", replacement, e.SrcConn, e)
		}
	}
	s.nodes[id] = replacement
	replacement.base().id = id
	old.base().id = InvalidNodeID
}

// AddEdge connects src.srcConn to dst.dstConn with the given memlet (nil is converted to an empty memlet).
func (s *State) AddEdge(src Node, srcConn string, dst Node, dstConn string, m *memlet.Memlet) *Edge {
	if !s.Has(src) || !s.Has(dst) {
		exceptions.Panicf("AddEdge(%s, %s): both nodes must belong to %s", src, dst, s)
	}
	if m == nil {
		m = memlet.Empty()
	}
	e := &Edge{id: EdgeID(len(s.edges)), Src: src.ID(), SrcConn: srcConn, Dst: dst.ID(), DstConn: dstConn, Data: m}
	s.edges = append(s.edges, e)
	return e
}

// RemoveEdge removes the edge from the state.
func (s *State) RemoveEdge(e *Edge) {
	if e.id < 0 || int(e.id) >= len(s.edges) || s.edges[e.id] != e {
		exceptions.Panicf("cannot remove edge %s: not part of %s", e, s)
	}
	s.edges[e.id] = nil
}

// LookupEdge returns the edge with the given handle, or false if it was removed or never existed.
func (s *State) LookupEdge(id EdgeID) (*Edge, bool) {
	if id < 0 || int(id) >= len(s.edges) || s.edges[id] == nil {
		return nil, false
	}
	return s.edges[id], true
}

// HasEdge returns whether the edge is part of the state.
func (s *State) HasEdge(e *Edge) bool {
	found, ok := s.LookupEdge(e.id)
	return ok && found == e
}

// Edges returns all edges in handle order.
func (s *State) Edges() []*Edge {
	edges := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		if e != nil {
			edges = append(edges, e)
		}
	}
	return edges
}

// Src returns the source node of the edge.
func (s *State) Src(e *Edge) Node { return s.Node(e.Src) }

// Dst returns the destination node of the edge.
func (s *State) Dst(e *Edge) Node { return s.Node(e.Dst) }

// InEdges returns the edges arriving at n, in handle order.
func (s *State) InEdges(n Node) []*Edge {
	var edges []*Edge
	for _, e := range s.edges {
		if e != nil && e.Dst == n.ID() {
			edges = append(edges, e)
		}
	}
	return edges
}

// OutEdges returns the edges leaving n, in handle order.
func (s *State) OutEdges(n Node) []*Edge {
	var edges []*Edge
	for _, e := range s.edges {
		if e != nil && e.Src == n.ID() {
			edges = append(edges, e)
		}
	}
	return edges
}

// AllEdges returns the in-edges followed by the out-edges of n.
func (s *State) AllEdges(n Node) []*Edge {
	return append(s.InEdges(n), s.OutEdges(n)...)
}

// InDegree returns the number of edges arriving at n.
func (s *State) InDegree(n Node) int { return len(s.InEdges(n)) }

// OutDegree returns the number of edges leaving n.
func (s *State) OutDegree(n Node) int { return len(s.OutEdges(n)) }

// SourceNodes returns the nodes without in-edges.
func (s *State) SourceNodes() []Node {
	return slices.DeleteFunc(s.Nodes(), func(n Node) bool { return s.InDegree(n) > 0 })
}

// SinkNodes returns the nodes without out-edges.
func (s *State) SinkNodes() []Node {
	return slices.DeleteFunc(s.Nodes(), func(n Node) bool { return s.OutDegree(n) > 0 })
}

// DataNodes returns the access nodes of the state.
func (s *State) DataNodes() []*AccessNode {
	var access []*AccessNode
	for _, n := range s.Nodes() {
		if a, ok := n.(*AccessNode); ok {
			access = append(access, a)
		}
	}
	return access
}

// TopologicalSort returns the nodes in a topological order. Ties are broken by handle order.
// It panics if the state has a cycle: use Validate to check for cycles gracefully.
func (s *State) TopologicalSort() []Node {
	order, ok := topologicalSort(s, s.Nodes())
	if !ok {
		exceptions.Panicf("%s has a cycle", s)
	}
	return order
}

// topologicalSort of the given nodes, considering only the edges between them.
func topologicalSort(view View, nodes []Node) (order []Node, ok bool) {
	inDegree := make(map[NodeID]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID()] = len(view.InEdges(n))
	}
	var ready []Node
	for _, n := range nodes {
		if inDegree[n.ID()] == 0 {
			ready = append(ready, n)
		}
	}
	state := view.State()
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, e := range view.OutEdges(n) {
			inDegree[e.Dst]--
			if inDegree[e.Dst] == 0 {
				ready = append(ready, state.Node(e.Dst))
			}
		}
	}
	return order, len(order) == len(nodes)
}

// AddAccess adds an access node to data.
func (s *State) AddAccess(data string) *AccessNode {
	n := NewAccessNode(data)
	s.AddNode(n)
	return n
}

// AddRead is an alias to AddAccess, for readability when building graphs.
func (s *State) AddRead(data string) *AccessNode { return s.AddAccess(data) }

// AddWrite is an alias to AddAccess, for readability when building graphs.
func (s *State) AddWrite(data string) *AccessNode { return s.AddAccess(data) }

// AddTasklet adds a tasklet node.
func (s *State) AddTasklet(name string, inputs, outputs []string, code string, language Language) *Tasklet {
	t := NewTasklet(name, inputs, outputs, code, language)
	s.AddNode(t)
	return t
}

// AddMap adds a map scope with the given parameters and ranges, returning its entry and exit.
func (s *State) AddMap(label string, params []string, ranges []string, schedule ScheduleType) (*MapEntry, *MapExit) {
	if len(params) != len(ranges) {
		exceptions.Panicf("AddMap(%q): %d params given for %d ranges", label, len(params), len(ranges))
	}
	m := &Map{Label: label, Params: slices.Clone(params), Schedule: schedule}
	for _, r := range ranges {
		parsed := subsets.MustParse(r)
		if parsed.Dims() != 1 {
			exceptions.Panicf("AddMap(%q): range %q must have exactly one dimension", label, r)
		}
		m.Range = append(m.Range, parsed[0])
	}
	return s.AddMapScope(m)
}

// AddMapScope adds the entry and exit nodes of the map.
func (s *State) AddMapScope(m *Map) (*MapEntry, *MapExit) {
	entry := &MapEntry{nodeBase: newNodeBase(nil, nil), Map: m}
	exit := &MapExit{nodeBase: newNodeBase(nil, nil), Map: m}
	s.AddNode(entry)
	s.AddNode(exit)
	return entry, exit
}

// AddNestedSDFG adds a nested SDFG node.
func (s *State) AddNestedSDFG(nested *SDFG, inputs, outputs []string, symbolMapping map[string]string) *NestedSDFG {
	mapping := make(map[string]symbolic.Expr, len(symbolMapping))
	for k, v := range symbolMapping {
		mapping[k] = symbolic.MustParse(v)
	}
	n := NewNestedSDFG(nested.Name, nested, inputs, outputs, mapping)
	s.AddNode(n)
	return n
}

// AddLibraryNode adds a library node. Use the library package to create nodes of known kinds.
func (s *State) AddLibraryNode(n *LibraryNode) *LibraryNode {
	s.AddNode(n)
	return n
}
