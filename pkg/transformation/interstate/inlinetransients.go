// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interstate

import (
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/gomlx/sdfg/pkg/transformation"
)

// InlineTransientsName is the registered name of InlineTransients.
const InlineTransientsName = "InlineTransients"

func init() {
	transformation.Register(InlineTransientsName, func(*config.Options) transformation.Transformation {
		return &InlineTransients{}
	})
}

var inlineNested = transformation.NewPatternNode[*sdfg.NestedSDFG]("nested_sdfg")

// InlineTransients moves transient arrays that are only used by a nested SDFG into it: the array becomes a
// transient of the nested SDFG, and the outer array, access node and connector are removed.
//
// Only scope-lifetime transients, connected to the nested SDFG through a single connector and accessed
// nowhere else, are moved.
type InlineTransients struct{}

var _ transformation.Transformation = (*InlineTransients)(nil)

// Name implements transformation.Transformation.
func (x *InlineTransients) Name() string { return InlineTransientsName }

// AnnotatesMemlets implements transformation.Transformation.
func (x *InlineTransients) AnnotatesMemlets() bool { return true }

// Expressions implements transformation.Transformation.
func (x *InlineTransients) Expressions() []*transformation.Pattern {
	return []*transformation.Pattern{transformation.PathGraph(inlineNested)}
}

// CanBeApplied implements transformation.Transformation.
func (x *InlineTransients) CanBeApplied(m *transformation.Match, strict bool) bool {
	nested := transformation.Get[*sdfg.NestedSDFG](m, inlineNested)
	return len(inlineCandidates(m.SDFG, m.State, nested)) > 0
}

// inlineCandidates maps the outer arrays that can be moved into nested to the connector they are passed through.
func inlineCandidates(g *sdfg.SDFG, s *sdfg.State, nested *sdfg.NestedSDFG) map[string]string {
	candidates := make(map[string]string)
	rejected := make(map[string]bool)
	for _, e := range s.AllEdges(nested) {
		if e.Data.IsEmpty() {
			continue
		}
		conn := e.DstConn
		if e.Src == nested.ID() {
			conn = e.SrcConn
		}
		name := e.Data.Data
		desc, found := g.Arrays.Get(name)
		if !found || !desc.Transient || desc.Lifetime != data.LifetimeScope || rejected[name] {
			continue
		}
		if previous, found := candidates[name]; found && previous != conn {
			// Same array through different connectors.
			delete(candidates, name)
			rejected[name] = true
			continue
		}
		candidates[name] = conn
	}
	if len(candidates) == 0 {
		return candidates
	}

	// Used in other states.
	for _, other := range g.States() {
		if other == s {
			continue
		}
		for _, a := range other.DataNodes() {
			delete(candidates, a.Data)
		}
	}

	// All access nodes of the array in the state must only connect to the nested SDFG.
	for _, a := range s.DataNodes() {
		if _, found := candidates[a.Data]; !found {
			continue
		}
		if !onlyFeedsNested(s, a, nested) {
			delete(candidates, a.Data)
		}
	}
	return candidates
}

// onlyFeedsNested returns whether a is a source whose memlets all end at nested, or a sink whose memlets
// all start at nested.
func onlyFeedsNested(s *sdfg.State, a *sdfg.AccessNode, nested *sdfg.NestedSDFG) bool {
	in, out := s.InEdges(a), s.OutEdges(a)
	switch {
	case len(in) == 0 && len(out) > 0:
		for _, e := range out {
			path := s.MemletPath(e)
			if xslices.Last(path).Dst != nested.ID() {
				return false
			}
		}
		return true
	case len(out) == 0 && len(in) > 0:
		for _, e := range in {
			if s.MemletPath(e)[0].Src != nested.ID() {
				return false
			}
		}
		return true
	}
	return false
}

// Apply implements transformation.Transformation.
func (x *InlineTransients) Apply(m *transformation.Match) {
	g, s := m.SDFG, m.State
	nested := transformation.Get[*sdfg.NestedSDFG](m, inlineNested)
	candidates := inlineCandidates(g, s, nested)

	for _, e := range s.AllEdges(nested) {
		if e.Data.IsEmpty() || !s.HasEdge(e) {
			continue
		}
		if _, found := candidates[e.Data.Data]; !found {
			continue
		}
		tree := s.MemletTree(e)
		var access sdfg.Node
		if e.Dst == nested.ID() {
			access = s.Src(tree.Edge)
		} else {
			access = s.Dst(tree.Edge)
		}
		for _, te := range tree.Edges() {
			removeEdgeAndConnectors(s, te)
		}
		if s.Has(access) && len(s.AllEdges(access)) == 0 {
			s.RemoveNode(access)
		}
	}

	for _, name := range xslices.SortedKeys(candidates) {
		conn := candidates[name]
		nested.SDFG.Array(conn).Transient = true
		nested.RemoveInConnector(conn)
		nested.RemoveOutConnector(conn)
		g.Arrays.Remove(name)
	}
}

// removeEdgeAndConnectors removes e, and the connectors it used on scope nodes.
func removeEdgeAndConnectors(s *sdfg.State, e *sdfg.Edge) {
	if src := s.Src(e); sdfg.IsScopeNode(src) && e.SrcConn != "" {
		src.RemoveOutConnector(e.SrcConn)
	}
	if dst := s.Dst(e); sdfg.IsScopeNode(dst) && e.DstConn != "" {
		dst.RemoveInConnector(e.DstConn)
	}
	s.RemoveEdge(e)
}
