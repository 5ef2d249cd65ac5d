// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dataflow implements transformations that rewrite the dataflow graph of a single state.
package dataflow

import (
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/support/sets"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/gomlx/sdfg/pkg/transformation"
)

// MapFissionName is the registered name of MapFission.
const MapFissionName = "MapFission"

func init() {
	transformation.Register(MapFissionName, func(*config.Options) transformation.Transformation {
		return &MapFission{}
	})
}

var (
	fissionEntry  = transformation.NewPatternNode[*sdfg.MapEntry]("map_entry")
	fissionNested = transformation.NewPatternNode[*sdfg.NestedSDFG]("nested_sdfg")
)

// MapFission pushes a map scope into its body: each computational component of the body gets its own
// copy of the map, and the transient "border" arrays connecting the components get the map's dimensions
// prepended, so that every iteration keeps its own values.
//
// It matches two cases:
//
//  1. A map over a subgraph with more than one component (code nodes or nested map scopes at the
//     top-level of the body). The arrays connecting the components must be transients used only inside
//     the subgraph.
//  2. A map whose only body node is a nested SDFG, where every state of the nested SDFG satisfies the
//     conditions of case 1. The nested SDFG is then connected to the full outer arrays.
//
// Nested SDFGs that are components of case 1 are not split: apply MapFission again on the new map around
// them.
type MapFission struct{}

var _ transformation.Transformation = (*MapFission)(nil)

// Name implements transformation.Transformation.
func (x *MapFission) Name() string { return MapFissionName }

// AnnotatesMemlets implements transformation.Transformation: the outer memlets of the new maps are
// left to propagation.
func (x *MapFission) AnnotatesMemlets() bool { return false }

// Expressions implements transformation.Transformation.
func (x *MapFission) Expressions() []*transformation.Pattern {
	return []*transformation.Pattern{
		transformation.PathGraph(fissionEntry),
		transformation.PathGraph(fissionEntry, fissionNested),
	}
}

// MatchString implements transformation.MatchStringer.
func (x *MapFission) MatchString(m *transformation.Match) string {
	return MapFissionName + " of " + transformation.Get[*sdfg.MapEntry](m, fissionEntry).Map.Label
}

// component of the body of a map: a code node, or the entry and exit of a nested map scope.
type component struct {
	in, out sdfg.Node
}

// components returns the top-level components of the view, in handle order.
func components(view sdfg.View) []component {
	s := view.State()
	var comps []component
	for _, n := range sdfg.ScopeDictOf(view).Children(view, nil) {
		if entry, ok := n.(*sdfg.MapEntry); ok {
			comps = append(comps, component{in: entry, out: s.ExitNode(entry)})
		} else if sdfg.IsCodeNode(n) {
			comps = append(comps, component{in: n, out: n})
		}
	}
	return comps
}

func nodeIDs(nodes []sdfg.Node) sets.Set[sdfg.NodeID] {
	ids := sets.Make[sdfg.NodeID](len(nodes))
	for _, n := range nodes {
		ids.Insert(n.ID())
	}
	return ids
}

// borderArrays returns the arrays read or written by the components through access nodes of the view.
// Source and sink access nodes of the view are only included if includeSourcesSinks is set: in a
// subgraph of a state they are also internal to the map, while in a nested state they are its inputs
// and outputs.
func borderArrays(comps []component, view sdfg.View, includeSourcesSinks bool) sets.Set[string] {
	s := view.State()
	sources, sinks := nodeIDs(view.SourceNodes()), nodeIDs(view.SinkNodes())
	border := sets.Make[string]()
	for _, c := range comps {
		for _, e := range view.InEdges(c.in) {
			if a, ok := s.Src(e).(*sdfg.AccessNode); ok && (includeSourcesSinks || !sources.Has(a.ID())) {
				border.Insert(a.Data)
			}
		}
		for _, e := range view.OutEdges(c.out) {
			if a, ok := s.Dst(e).(*sdfg.AccessNode); ok && (includeSourcesSinks || !sinks.Has(a.ID())) {
				border.Insert(a.Data)
			}
		}
	}
	return border
}

// internalBorderArrays returns the arrays that are both written and read by components.
func internalBorderArrays(comps []component, view sdfg.View) sets.Set[string] {
	s := view.State()
	inputs, outputs := sets.Make[string](), sets.Make[string]()
	for _, c := range comps {
		for _, e := range view.InEdges(c.in) {
			if a, ok := s.Src(e).(*sdfg.AccessNode); ok {
				inputs.Insert(a.Data)
			}
		}
		for _, e := range view.OutEdges(c.out) {
			if a, ok := s.Dst(e).(*sdfg.AccessNode); ok {
				outputs.Insert(a.Data)
			}
		}
	}
	return inputs.Intersect(outputs)
}

// CanBeApplied implements transformation.Transformation.
func (x *MapFission) CanBeApplied(m *transformation.Match, strict bool) bool {
	s := m.State
	entry := transformation.Get[*sdfg.MapEntry](m, fissionEntry)

	// Border arrays of a dynamically ranged map would be dynamically sized.
	if s.HasDynamicMapInputs(entry) {
		return false
	}

	var (
		views []sdfg.View
		owner *sdfg.SDFG
	)
	if m.ExprIndex == 0 {
		views = []sdfg.View{s.ScopeSubgraph(entry, false, false)}
		owner = m.SDFG
	} else {
		nested := transformation.Get[*sdfg.NestedSDFG](m, fissionNested)
		exit := s.ExitNode(entry)
		for _, e := range s.OutEdges(entry) {
			if e.Dst != nested.ID() {
				return false
			}
		}
		for _, e := range s.InEdges(exit) {
			if e.Src != nested.ID() {
				return false
			}
		}
		if !nestedBoundaryIsConnected(s, nested) {
			return false
		}
		owner = nested.SDFG
		for _, ns := range owner.States() {
			views = append(views, ns)
		}
	}

	for _, view := range views {
		comps := components(view)
		if len(view.Nodes()) > 0 && len(comps) <= 1 {
			return false
		}

		// Arrays between components must be produced by a component.
		border := borderArrays(comps, view, m.ExprIndex == 0)
		if len(border.Sub(internalBorderArrays(comps, view))) > 0 {
			return false
		}
		for name := range border {
			desc, found := owner.Arrays.Get(name)
			if !found || !desc.Transient {
				return false
			}
		}
		if m.ExprIndex == 0 && writesArrayUsedOutside(m.SDFG, s, view, comps) {
			return false
		}
	}
	return true
}

// writesArrayUsedOutside returns whether a component writes to an array that is also accessed outside
// the view: elsewhere in the state or in another state.
func writesArrayUsedOutside(g *sdfg.SDFG, s *sdfg.State, view sdfg.View, comps []component) bool {
	outside := sets.Make[string]()
	for _, a := range s.DataNodes() {
		if !view.Has(a) {
			outside.Insert(a.Data)
		}
	}
	for _, other := range g.States() {
		if other == s {
			continue
		}
		for _, a := range other.DataNodes() {
			outside.Insert(a.Data)
		}
	}
	for _, c := range comps {
		for _, e := range view.OutEdges(c.out) {
			if a, ok := s.Dst(e).(*sdfg.AccessNode); ok && outside.Has(a.Data) {
				return true
			}
		}
	}
	return false
}

// nestedBoundaryIsConnected checks that the source (sink) access nodes of every state of the nested SDFG
// are fed by (feed) a connector of the nested node, and that the memlets of those connectors can be
// unsqueezed back to the rank of the outer arrays.
func nestedBoundaryIsConnected(s *sdfg.State, nested *sdfg.NestedSDFG) bool {
	for _, e := range s.AllEdges(nested) {
		if e.Data.IsEmpty() {
			continue
		}
		conn := e.DstConn
		if e.Src == nested.ID() {
			conn = e.SrcConn
		}
		desc, found := nested.SDFG.Arrays.Get(conn)
		if !found {
			return false
		}
		if desc.Rank() != e.Data.Subset.Dims() {
			if _, kept := e.Data.Subset.Squeeze(); len(kept) != desc.Rank() {
				return false
			}
		}
	}
	for _, ns := range nested.SDFG.States() {
		for _, a := range ns.DataNodes() {
			in, out := ns.InDegree(a), ns.OutDegree(a)
			if in == 0 && out > 0 && !nested.HasInConnector(a.Data) {
				return false
			}
			if out == 0 && in > 0 && !nested.HasOutConnector(a.Data) {
				return false
			}
		}
	}
	return true
}

// fission holds the context of one application of MapFission.
type fission struct {
	g        *sdfg.SDFG
	s        *sdfg.State
	entry    *sdfg.MapEntry
	exit     *sdfg.MapExit
	outerMap *sdfg.Map
	mapSize  []symbolic.Expr

	// nested is set when fission goes into a nested SDFG; parent owns the arrays of the split subgraphs.
	nested *sdfg.NestedSDFG
	parent *sdfg.SDFG

	// augmented and adopted track the descriptors already reshaped, across states of a nested SDFG.
	augmented sets.Set[string]
	adopted   sets.Set[string]
}

// Apply implements transformation.Transformation.
func (x *MapFission) Apply(m *transformation.Match) {
	entry := transformation.Get[*sdfg.MapEntry](m, fissionEntry)
	f := &fission{
		g:         m.SDFG,
		s:         m.State,
		entry:     entry,
		exit:      m.State.ExitNode(entry),
		outerMap:  entry.Map,
		mapSize:   entry.Map.Size(),
		parent:    m.SDFG,
		augmented: sets.Make[string](),
		adopted:   sets.Make[string](),
	}
	if m.ExprIndex == 0 {
		f.split(f.s, f.s.ScopeSubgraph(entry, false, false))
	} else {
		f.nested = transformation.Get[*sdfg.NestedSDFG](m, fissionNested)
		f.parent = f.nested.SDFG
		for _, ns := range f.parent.States() {
			f.split(ns, ns)
		}
		f.reconnectNested()
		f.updateSymbols()
	}
	f.s.RemoveNodes(f.entry, f.exit)
}

// pathNeighbor returns the edge before (delta=-1) or after (delta=1) e on its memlet path, or nil.
func pathNeighbor(s *sdfg.State, e *sdfg.Edge, delta int) *sdfg.Edge {
	path := s.MemletPath(e)
	idx := slices.Index(path, e) + delta
	if idx < 0 || idx >= len(path) {
		return nil
	}
	return path[idx]
}

// split replicates the outer map around each component of view, a subgraph of state st.
func (f *fission) split(st *sdfg.State, view sdfg.View) {
	comps := components(view)
	sources, sinks := view.SourceNodes(), view.SinkNodes()

	// Edges crossing the outer map connect to the edge on the other side of the scope node.
	edgeToOuter := make(map[sdfg.EdgeID]*sdfg.Edge)
	if f.nested == nil {
		for _, n := range view.Nodes() {
			for _, e := range st.InEdges(n) {
				if !view.Has(st.Src(e)) {
					if outer := pathNeighbor(st, e, -1); outer != nil {
						edgeToOuter[e.ID()] = outer
					}
				}
			}
			for _, e := range st.OutEdges(n) {
				if !view.Has(st.Dst(e)) {
					if outer := pathNeighbor(st, e, 1); outer != nil {
						edgeToOuter[e.ID()] = outer
					}
				}
			}
		}
	}

	border := borderArrays(comps, view, f.nested == nil)
	f.promoteScalars(st, view, comps)

	for _, c := range comps {
		f.wrapComponent(st, c, edgeToOuter)
	}

	// Other sources and sinks (access nodes) connect directly to the outer nodes.
	for _, n := range sources {
		if _, ok := n.(*sdfg.AccessNode); !ok {
			continue
		}
		for _, e := range st.InEdges(n) {
			outer, found := edgeToOuter[e.ID()]
			if !found {
				continue
			}
			mem := e.Data.Clone()
			mem.Subset = mem.Subset.Prepend(f.outerMap.Range...)
			st.AddEdge(st.Src(outer), outer.SrcConn, n, e.DstConn, mem)
		}
	}
	for _, n := range sinks {
		if _, ok := n.(*sdfg.AccessNode); !ok {
			continue
		}
		for _, e := range st.OutEdges(n) {
			outer, found := edgeToOuter[e.ID()]
			if !found {
				continue
			}
			st.AddEdge(n, e.SrcConn, st.Dst(outer), outer.DstConn, outer.Data.Clone())
		}
	}

	f.augmentArrays(border)
	st.FillScopeConnectors()
	if f.nested != nil {
		f.offsetNestedMemlets(st)
	}
	f.prependMapDimensions(st, view, border)
}

// promoteScalars replaces direct code-to-code edges between components by accesses to new transients of
// the map's size, indexed by the map parameters. Transients left unused are removed.
func (f *fission) promoteScalars(st *sdfg.State, view sdfg.View, comps []component) {
	scalars := make(map[string][]*sdfg.Edge)
	for _, c := range comps {
		for _, e := range view.OutEdges(c.out) {
			if sdfg.IsCodeNode(st.Dst(e)) && !e.Data.IsEmpty() {
				scalars[e.Data.Data] = append(scalars[e.Data.Data], e)
			}
		}
	}
	for _, name := range xslices.SortedKeys(scalars) {
		desc, found := f.parent.Arrays.Get(name)
		if !found {
			exceptions.Panicf("MapFission: edge between components carries undeclared data %q", name)
		}
		promoted := data.NewArray(desc.DType, f.mapSize...)
		promoted.Storage = desc.Storage
		promoted.Lifetime = desc.Lifetime
		promoted.Transient = true
		tmpName := f.parent.Arrays.AddTemp(promoted)
		for _, e := range scalars[name] {
			a := st.AddAccess(tmpName)
			st.AddEdge(st.Src(e), e.SrcConn, a, "", memlet.New(tmpName, f.outerMap.ParamsSubset()))
			st.AddEdge(a, "", st.Dst(e), e.DstConn, memlet.New(tmpName, f.outerMap.ParamsSubset()))
			st.RemoveEdge(e)
		}
		if desc.Transient && !f.parent.UsedArrays().Has(name) && !slices.Contains(f.parent.SharedTransients(), name) {
			f.parent.Arrays.Remove(name)
		}
	}
}

// wrapComponent adds a copy of the outer map around the component, and routes its edges through it.
func (f *fission) wrapComponent(st *sdfg.State, c component, edgeToOuter map[sdfg.EdgeID]*sdfg.Edge) {
	newMap := f.outerMap.Clone()
	newMap.Label = f.outerMap.Label + "_fission"
	me, mx := st.AddMapScope(newMap)
	for _, conn := range f.entry.InConnectors() {
		if !strings.HasPrefix(conn, sdfg.InPrefix) {
			me.AddInConnector(conn)
		}
	}

	for _, e := range st.InEdges(c.in) {
		st.AddEdge(me, "", c.in, e.DstConn, e.Data.Clone())
		if outer, found := edgeToOuter[e.ID()]; found {
			st.AddEdge(st.Src(outer), outer.SrcConn, me, "", outer.Data.Clone())
		} else if !f.isOuterScopeNode(st.Src(e)) {
			st.AddEdge(st.Src(e), e.SrcConn, me, "", e.Data.Clone())
		}
		st.RemoveEdge(e)
	}
	if st.InDegree(c.in) == 0 {
		st.AddEdge(me, "", c.in, "", memlet.Empty())
	}

	for _, e := range st.OutEdges(c.out) {
		st.AddEdge(c.out, e.SrcConn, mx, "", e.Data.Clone())
		if outer, found := edgeToOuter[e.ID()]; found {
			st.AddEdge(mx, "", st.Dst(outer), outer.DstConn, outer.Data.Clone())
		} else if !f.isOuterScopeNode(st.Dst(e)) {
			st.AddEdge(mx, "", st.Dst(e), e.DstConn, e.Data.Clone())
		}
		st.RemoveEdge(e)
	}
	if st.OutDegree(c.out) == 0 {
		st.AddEdge(c.out, "", mx, "", memlet.Empty())
	}
}

// isOuterScopeNode returns whether n is the entry or exit of the map being split.
func (f *fission) isOuterScopeNode(n sdfg.Node) bool {
	return n == sdfg.Node(f.entry) || n == sdfg.Node(f.exit)
}

// augmentArrays prepends the map dimensions to the shape of the border arrays.
func (f *fission) augmentArrays(border sets.Set[string]) {
	for _, name := range sets.Sorted(border) {
		if f.augmented.Has(name) {
			continue
		}
		f.augmented.Insert(name)
		desc, _ := f.parent.Arrays.Get(name)
		for ii := len(f.mapSize) - 1; ii >= 0; ii-- {
			desc.Strides = append([]symbolic.Expr{desc.TotalSize}, desc.Strides...)
			desc.TotalSize = symbolic.Mul(desc.TotalSize, f.mapSize[ii])
		}
		desc.Shape = append(slices.Clone(f.mapSize), desc.Shape...)
		zeros := xslices.Map(f.mapSize, func(symbolic.Expr) symbolic.Expr { return symbolic.Int(0) })
		desc.Offset = append(zeros, desc.Offset...)
		desc.Scalar = false
	}
}

// outerEdgeOf returns the edge connecting the nested node's connector for array name, preferring inputs.
func (f *fission) outerEdgeOf(name string) *sdfg.Edge {
	for _, e := range f.s.InEdges(f.nested) {
		if e.DstConn == name && !e.Data.IsEmpty() {
			return e
		}
	}
	for _, e := range f.s.OutEdges(f.nested) {
		if e.SrcConn == name && !e.Data.IsEmpty() {
			return e
		}
	}
	return nil
}

// offsetNestedMemlets makes the arrays passed to the nested SDFG take the shape of the full outer arrays,
// and offsets their memlets by the subset that each iteration of the outer map used to pass.
func (f *fission) offsetNestedMemlets(st *sdfg.State) {
	visited := sets.Make[sdfg.EdgeID]()
	for _, a := range st.DataNodes() {
		outer := f.outerEdgeOf(a.Data)
		if outer == nil {
			continue
		}
		desc, _ := f.parent.Arrays.Get(a.Data)
		oldSubset := outer.Data.Subset
		if !f.adopted.Has(a.Data) {
			f.adopted.Insert(a.Data)
			outerDesc, found := f.g.Arrays.Get(outer.Data.Data)
			if !found {
				exceptions.Panicf("MapFission: outer array %q of %s is not declared", outer.Data.Data, f.nested)
			}
			desc.Shape = slices.Clone(outerDesc.Shape)
			desc.Strides = slices.Clone(outerDesc.Strides)
			desc.Offset = slices.Clone(outerDesc.Offset)
			desc.TotalSize = outerDesc.TotalSize
			desc.Scalar = outerDesc.Scalar
		}
		for _, e := range st.AllEdges(a) {
			for _, te := range st.MemletTree(e).Edges() {
				if visited.Has(te.ID()) || te.Data.IsEmpty() {
					continue
				}
				visited.Insert(te.ID())
				sub := te.Data.Subset
				if sub.Dims() < oldSubset.Dims() {
					_, kept := oldSubset.Squeeze()
					sub = sub.Unsqueeze(kept, oldSubset.Dims())
				}
				te.Data.Subset = sub.Offset(oldSubset, false)
			}
		}
	}
}

// prependMapDimensions indexes every memlet of the border arrays by the map parameters.
func (f *fission) prependMapDimensions(st *sdfg.State, view sdfg.View, border sets.Set[string]) {
	prefix := xslices.Map(f.outerMap.Params, func(p string) subsets.Range {
		return subsets.Index(symbolic.Symbol(p))
	})
	visited := sets.Make[sdfg.EdgeID]()
	for _, n := range view.Nodes() {
		a, ok := n.(*sdfg.AccessNode)
		if !ok || !border.Has(a.Data) {
			continue
		}
		for _, e := range st.AllEdges(a) {
			for _, te := range st.MemletTree(e).Edges() {
				if visited.Has(te.ID()) || te.Data.IsEmpty() {
					continue
				}
				visited.Insert(te.ID())
				te.Data.Subset = te.Data.Subset.Prepend(prefix...)
			}
		}
	}
}

// reconnectNested connects the nested SDFG directly to the full outer arrays, bypassing the outer map.
func (f *fission) reconnectNested() {
	for _, e := range f.s.InEdges(f.entry) {
		if e.Data.IsEmpty() || !strings.HasPrefix(e.DstConn, sdfg.InPrefix) {
			continue
		}
		f.widen(e.Data)
		conn := sdfg.OutPrefix + strings.TrimPrefix(e.DstConn, sdfg.InPrefix)
		for _, inner := range f.s.OutEdges(f.entry) {
			if inner.SrcConn == conn {
				f.s.AddEdge(f.s.Src(e), e.SrcConn, f.nested, inner.DstConn, e.Data.Clone())
			}
		}
	}
	for _, e := range f.s.OutEdges(f.exit) {
		if e.Data.IsEmpty() || !strings.HasPrefix(e.SrcConn, sdfg.OutPrefix) {
			continue
		}
		f.widen(e.Data)
		conn := sdfg.InPrefix + strings.TrimPrefix(e.SrcConn, sdfg.OutPrefix)
		for _, inner := range f.s.InEdges(f.exit) {
			if inner.DstConn == conn {
				f.s.AddEdge(f.nested, inner.SrcConn, f.s.Dst(e), e.DstConn, e.Data.Clone())
			}
		}
	}
}

// widen makes the memlet cover its entire array.
func (f *fission) widen(m *memlet.Memlet) {
	desc, found := f.g.Arrays.Get(m.Data)
	if !found {
		exceptions.Panicf("MapFission: array %q is not declared in %s", m.Data, f.g)
	}
	m.Subset = desc.FullSubset()
	m.Volume = nil
	m.Dynamic = false
}

// updateSymbols removes the map parameters from the symbols passed to the nested SDFG, since they are now
// defined by the maps inside it, and passes the symbols the new maps and reshaped arrays depend on.
func (f *fission) updateSymbols() {
	nestedSDFG := f.nested.SDFG
	for _, p := range f.outerMap.Params {
		delete(f.nested.SymbolMapping, p)
		delete(nestedSDFG.Symbols, p)
	}
	needed := sets.MakeWith(f.outerMap.Range.Symbols()...)
	for name := range f.adopted {
		desc, _ := nestedSDFG.Arrays.Get(name)
		needed.Insert(desc.Symbols()...)
	}
	needed.Remove(f.outerMap.Params...)
	for _, name := range sets.Sorted(needed) {
		if _, declared := nestedSDFG.Symbols[name]; !declared {
			dtype := dtypes.Int64
			if outerDType, found := f.g.Symbols[name]; found {
				dtype = outerDType
			}
			nestedSDFG.AddSymbol(name, dtype)
		}
		if _, mapped := f.nested.SymbolMapping[name]; !mapped {
			f.nested.SymbolMapping[name] = symbolic.Symbol(name)
		}
	}
}
