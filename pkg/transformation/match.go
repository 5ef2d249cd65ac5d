// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transformation

import (
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/support/sets"
)

// Enumerate returns the applicable candidates of xf in root and its nested SDFGs.
//
// SDFGs are visited in document order (root first, nested SDFGs after their node), states in handle order,
// and for each state the expressions in order. Occurrences of a pattern are ordered by the handles of
// the nodes assigned to its placeholders. Enumerate doesn't modify the graph.
func Enumerate(root *sdfg.SDFG, xf Transformation, strict bool) []*Match {
	var matches []*Match
	for _, g := range root.AllSDFGsRecursive() {
		for exprIdx, pattern := range xf.Expressions() {
			for _, m := range matchPattern(g, pattern) {
				m.Root, m.ExprIndex, m.Nested = root, exprIdx, g != root
				if xf.CanBeApplied(m, strict) {
					matches = append(matches, m)
				}
			}
		}
	}
	return matches
}

// First returns the first applicable candidate of xf, or nil.
func First(root *sdfg.SDFG, xf Transformation, strict bool) *Match {
	for _, g := range root.AllSDFGsRecursive() {
		for exprIdx, pattern := range xf.Expressions() {
			for _, m := range matchPattern(g, pattern) {
				m.Root, m.ExprIndex, m.Nested = root, exprIdx, g != root
				if xf.CanBeApplied(m, strict) {
					return m
				}
			}
		}
	}
	return nil
}

// matchPattern returns the structural occurrences of pattern in g.
func matchPattern(g *sdfg.SDFG, pattern *Pattern) []*Match {
	if len(pattern.Nodes) == 0 {
		return []*Match{{SDFG: g, pattern: pattern}}
	}
	var matches []*Match
	for _, s := range g.States() {
		for _, assignment := range matchInState(s, pattern) {
			matches = append(matches, &Match{SDFG: g, State: s, pattern: pattern, nodes: assignment})
		}
	}
	return matches
}

// matchInState enumerates the assignments of distinct nodes to the pattern placeholders by backtracking.
// Placeholders are assigned in order; the candidates of a placeholder connected to an already assigned one
// are restricted to its neighbors.
func matchInState(s *sdfg.State, pattern *Pattern) [][]sdfg.NodeID {
	var results [][]sdfg.NodeID
	assignment := make([]sdfg.NodeID, 0, len(pattern.Nodes))
	used := sets.Make[sdfg.NodeID]()

	var assign func(idx int)
	assign = func(idx int) {
		if idx == len(pattern.Nodes) {
			results = append(results, append([]sdfg.NodeID(nil), assignment...))
			return
		}
		for _, n := range candidates(s, pattern, assignment, idx) {
			if used.Has(n.ID()) || !pattern.Nodes[idx].matches(n) {
				continue
			}
			if !edgesHold(s, pattern, append(assignment, n.ID()), idx) {
				continue
			}
			used.Insert(n.ID())
			assignment = append(assignment, n.ID())
			assign(idx + 1)
			assignment = assignment[:len(assignment)-1]
			used.Remove(n.ID())
		}
	}
	assign(0)
	return results
}

// candidates returns the nodes that may be assigned to placeholder idx, in handle order.
func candidates(s *sdfg.State, pattern *Pattern, assignment []sdfg.NodeID, idx int) []sdfg.Node {
	for _, e := range pattern.Edges {
		if e[1] == idx && e[0] < idx {
			return uniqueNeighbors(s, s.OutEdges(s.Node(assignment[e[0]])), true)
		}
		if e[0] == idx && e[1] < idx {
			return uniqueNeighbors(s, s.InEdges(s.Node(assignment[e[1]])), false)
		}
	}
	return s.Nodes()
}

func uniqueNeighbors(s *sdfg.State, edges []*sdfg.Edge, dst bool) []sdfg.Node {
	ids := sets.Make[sdfg.NodeID]()
	for _, e := range edges {
		if dst {
			ids.Insert(e.Dst)
		} else {
			ids.Insert(e.Src)
		}
	}
	nodes := make([]sdfg.Node, 0, len(ids))
	for _, id := range sets.Sorted(ids) {
		nodes = append(nodes, s.Node(id))
	}
	return nodes
}

// edgesHold checks the pattern edges between placeholder idx and the ones assigned before it.
func edgesHold(s *sdfg.State, pattern *Pattern, assignment []sdfg.NodeID, idx int) bool {
	for _, e := range pattern.Edges {
		if e[0] > idx || e[1] > idx || (e[0] != idx && e[1] != idx) {
			continue
		}
		src, dst := assignment[e[0]], assignment[e[1]]
		found := false
		for _, edge := range s.OutEdges(s.Node(src)) {
			if edge.Dst == dst {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
