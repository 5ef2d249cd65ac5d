// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"strings"
)

// MemletPath returns the chain of edges that a memlet travels through scopes, from the data source
// (an access or code node) to its destination: edges are followed from OUT_x back to IN_x at scope
// nodes on the source side, and from IN_x to OUT_x on the destination side.
//
// The returned path contains e. Empty memlets without connectors form a path of their own.
func (s *State) MemletPath(e *Edge) []*Edge {
	path := []*Edge{e}
	if e.SrcConn == "" && e.DstConn == "" && e.Data.IsEmpty() {
		return path
	}
	for cur := e; ; {
		src := s.Node(cur.Src)
		if !IsScopeNode(src) || !strings.HasPrefix(cur.SrcConn, OutPrefix) {
			break
		}
		next := s.findInEdge(src, InPrefix+strings.TrimPrefix(cur.SrcConn, OutPrefix))
		if next == nil {
			break
		}
		path = append([]*Edge{next}, path...)
		cur = next
	}
	for cur := e; ; {
		dst := s.Node(cur.Dst)
		if !IsScopeNode(dst) || !strings.HasPrefix(cur.DstConn, InPrefix) {
			break
		}
		next := s.findOutEdge(dst, OutPrefix+strings.TrimPrefix(cur.DstConn, InPrefix))
		if next == nil {
			break
		}
		path = append(path, next)
		cur = next
	}
	return path
}

func (s *State) findInEdge(n Node, conn string) *Edge {
	for _, e := range s.InEdges(n) {
		if e.DstConn == conn {
			return e
		}
	}
	return nil
}

func (s *State) findOutEdge(n Node, conn string) *Edge {
	for _, e := range s.OutEdges(n) {
		if e.SrcConn == conn {
			return e
		}
	}
	return nil
}

// MemletTree is the tree of edges a memlet is distributed through: a memlet entering a map scope
// branches to all inner edges leaving the matching OUT_ connector, and a memlet leaving a scope
// gathers all inner edges arriving at the matching IN_ connector of the exit.
type MemletTree struct {
	Edge     *Edge
	Parent   *MemletTree
	Children []*MemletTree
}

// MemletTree returns the tree that contains e, starting from its root (the outermost edge).
// Edges not crossing scopes form a degenerate tree of one node.
func (s *State) MemletTree(e *Edge) *MemletTree {
	forward := (isEntry(s.Node(e.Src)) && e.SrcConn != "") ||
		(isEntry(s.Node(e.Dst)) && strings.HasPrefix(e.DstConn, InPrefix))
	backward := (isExit(s.Node(e.Src)) && e.SrcConn != "") ||
		(isExit(s.Node(e.Dst)) && e.DstConn != "")
	if forward == backward {
		return &MemletTree{Edge: e}
	}

	// Find root.
	root := e
	if forward {
		for isEntry(s.Node(root.Src)) && strings.HasPrefix(root.SrcConn, OutPrefix) {
			next := s.findInEdge(s.Node(root.Src), InPrefix+strings.TrimPrefix(root.SrcConn, OutPrefix))
			if next == nil {
				break
			}
			root = next
		}
	} else {
		for isExit(s.Node(root.Dst)) && strings.HasPrefix(root.DstConn, InPrefix) {
			next := s.findOutEdge(s.Node(root.Dst), OutPrefix+strings.TrimPrefix(root.DstConn, InPrefix))
			if next == nil {
				break
			}
			root = next
		}
	}

	tree := &MemletTree{Edge: root}
	var addChildren func(t *MemletTree)
	addChildren = func(t *MemletTree) {
		if forward {
			dst := s.Node(t.Edge.Dst)
			if !isEntry(dst) || !strings.HasPrefix(t.Edge.DstConn, InPrefix) {
				return
			}
			conn := OutPrefix + strings.TrimPrefix(t.Edge.DstConn, InPrefix)
			for _, child := range s.OutEdges(dst) {
				if child.SrcConn == conn {
					t.Children = append(t.Children, &MemletTree{Edge: child, Parent: t})
				}
			}
		} else {
			src := s.Node(t.Edge.Src)
			if !isExit(src) || !strings.HasPrefix(t.Edge.SrcConn, OutPrefix) {
				return
			}
			conn := InPrefix + strings.TrimPrefix(t.Edge.SrcConn, OutPrefix)
			for _, child := range s.InEdges(src) {
				if child.DstConn == conn {
					t.Children = append(t.Children, &MemletTree{Edge: child, Parent: t})
				}
			}
		}
		for _, child := range t.Children {
			addChildren(child)
		}
	}
	addChildren(tree)
	return tree
}

// Edges returns all edges of the tree, in pre-order.
func (t *MemletTree) Edges() []*Edge {
	edges := []*Edge{t.Edge}
	for _, child := range t.Children {
		edges = append(edges, child.Edges()...)
	}
	return edges
}

// Leaves returns the edges at the leaves of the tree: the innermost (or outermost, for the root-only tree)
// edges of the memlet.
func (t *MemletTree) Leaves() []*Edge {
	if len(t.Children) == 0 {
		return []*Edge{t.Edge}
	}
	var leaves []*Edge
	for _, child := range t.Children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

func isEntry(n Node) bool {
	_, ok := n.(*MapEntry)
	return ok
}

func isExit(n Node) bool {
	_, ok := n.(*MapExit)
	return ok
}

// FindInputAccess returns the access node at the source of the memlet path of e, if there is one.
func (s *State) FindInputAccess(e *Edge) (*AccessNode, bool) {
	path := s.MemletPath(e)
	a, ok := s.Node(path[0].Src).(*AccessNode)
	return a, ok
}

// FindOutputAccess returns the access node at the destination of the memlet path of e, if there is one.
func (s *State) FindOutputAccess(e *Edge) (*AccessNode, bool) {
	path := s.MemletPath(e)
	a, ok := s.Node(path[len(path)-1].Dst).(*AccessNode)
	return a, ok
}
