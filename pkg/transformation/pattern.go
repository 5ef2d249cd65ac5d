// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transformation

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
)

// PatternNode is a placeholder of a pattern: it matches graph nodes of a given variant.
//
// Pattern nodes are usually package-level variables of the transformation, and used as keys to
// retrieve the matched graph nodes from a Match.
type PatternNode struct {
	Name    string
	matches func(n sdfg.Node) bool
}

// NewPatternNode returns a placeholder matching nodes of type T, e.g.:
//
//	var mapEntry = transformation.NewPatternNode[*sdfg.MapEntry]("map_entry")
func NewPatternNode[T sdfg.Node](name string) *PatternNode {
	return &PatternNode{
		Name: name,
		matches: func(n sdfg.Node) bool {
			_, ok := n.(T)
			return ok
		},
	}
}

// String implements fmt.Stringer.
func (p *PatternNode) String() string { return p.Name }

// Pattern is a small directed graph of placeholders. An occurrence of the pattern is an assignment of
// distinct graph nodes to the placeholders, such that each placeholder matches its node's variant and
// every pattern edge is backed by at least one dataflow edge.
//
// A Pattern without nodes matches once per SDFG: it is used by transformations that work on whole
// graphs.
type Pattern struct {
	Nodes []*PatternNode
	Edges [][2]int
}

// PathGraph returns the pattern of a path: nodes[0] -> nodes[1] -> ... -> nodes[n-1].
func PathGraph(nodes ...*PatternNode) *Pattern {
	p := &Pattern{Nodes: nodes}
	for ii := 1; ii < len(nodes); ii++ {
		p.Edges = append(p.Edges, [2]int{ii - 1, ii})
	}
	return p
}

// String implements fmt.Stringer.
func (p *Pattern) String() string {
	if len(p.Nodes) == 0 {
		return "<whole graph>"
	}
	parts := make([]string, 0, len(p.Edges))
	for _, e := range p.Edges {
		parts = append(parts, fmt.Sprintf("%s->%s", p.Nodes[e[0]], p.Nodes[e[1]]))
	}
	if len(parts) == 0 {
		return p.Nodes[0].Name
	}
	return strings.Join(parts, ", ")
}

// Match is an occurrence of one of the expressions (patterns) of a transformation.
type Match struct {
	// Root is the SDFG the enumeration started from.
	Root *sdfg.SDFG

	// SDFG and State where the pattern was found. State is nil for whole-graph patterns.
	SDFG  *sdfg.SDFG
	State *sdfg.State

	// ExprIndex is the index of the matched pattern in the transformation's Expressions.
	ExprIndex int

	// Nested is true if SDFG is not Root.
	Nested bool

	pattern *Pattern
	nodes   []sdfg.NodeID
}

// Node returns the graph node matched by the placeholder p.
// It panics if p is not part of the matched pattern.
func (m *Match) Node(p *PatternNode) sdfg.Node {
	for ii, pn := range m.pattern.Nodes {
		if pn == p {
			return m.State.Node(m.nodes[ii])
		}
	}
	exceptions.Panicf("pattern node %q is not part of the matched expression %s", p, m.pattern)
	return nil
}

// Has returns whether p is part of the matched pattern.
func (m *Match) Has(p *PatternNode) bool {
	for _, pn := range m.pattern.Nodes {
		if pn == p {
			return true
		}
	}
	return false
}

// Get returns the graph node matched by p, converted to T. It panics if the match doesn't hold p.
func Get[T sdfg.Node](m *Match, p *PatternNode) T {
	return m.Node(p).(T)
}

// Nodes returns the matched nodes, in the order of the pattern's placeholders.
func (m *Match) Nodes() []sdfg.Node {
	nodes := make([]sdfg.Node, len(m.nodes))
	for ii, id := range m.nodes {
		nodes[ii] = m.State.Node(id)
	}
	return nodes
}

// String implements fmt.Stringer.
func (m *Match) String() string {
	if m.State == nil {
		return m.SDFG.String()
	}
	parts := make([]string, len(m.nodes))
	for ii, n := range m.Nodes() {
		parts[ii] = n.String()
	}
	return fmt.Sprintf("%s/%s: %s", m.SDFG, m.State, strings.Join(parts, " -> "))
}
