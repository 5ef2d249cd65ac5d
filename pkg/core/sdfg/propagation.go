// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"slices"
	"strings"

	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"k8s.io/klog/v2"
)

// PropagateMemlets recomputes the memlets on the outer side of every map scope of g and of its nested
// SDFGs, from the memlets inside the scopes.
func PropagateMemlets(g *SDFG) {
	for _, sdfg := range g.AllSDFGsRecursive() {
		for _, s := range sdfg.States() {
			s.Propagate()
		}
	}
}

// Propagate recomputes the outer memlets of all map scopes of the state, innermost scopes first.
func (s *State) Propagate() {
	sd := s.ScopeDict()
	var entries []*MapEntry
	for _, n := range s.Nodes() {
		if entry, ok := n.(*MapEntry); ok {
			entries = append(entries, entry)
		}
	}
	slices.SortStableFunc(entries, func(a, b *MapEntry) int {
		return sd.Depth(b) - sd.Depth(a)
	})
	for _, entry := range entries {
		s.PropagateScope(entry)
	}
}

// PropagateScope recomputes the memlets of the edges entering the entry and leaving the exit of the
// map scope, from the memlets of the edges inside the scope.
//
// Each inner subset is expanded over the map range: dimensions that are affine in the map parameters are
// bounded by substituting the parameters' extremes, other dimensions that depend on a parameter cover the
// whole array axis.
func (s *State) PropagateScope(entry *MapEntry) {
	exit := s.ExitNode(entry)
	for _, outer := range s.InEdges(entry) {
		if outer.Data.IsEmpty() || !strings.HasPrefix(outer.DstConn, InPrefix) {
			continue
		}
		conn := OutPrefix + strings.TrimPrefix(outer.DstConn, InPrefix)
		var inner []*memlet.Memlet
		for _, e := range s.OutEdges(entry) {
			if e.SrcConn == conn && !e.Data.IsEmpty() {
				inner = append(inner, e.Data)
			}
		}
		s.propagateInto(outer.Data, inner, entry.Map)
	}
	for _, outer := range s.OutEdges(exit) {
		if outer.Data.IsEmpty() || !strings.HasPrefix(outer.SrcConn, OutPrefix) {
			continue
		}
		conn := InPrefix + strings.TrimPrefix(outer.SrcConn, OutPrefix)
		var inner []*memlet.Memlet
		for _, e := range s.InEdges(exit) {
			if e.DstConn == conn && !e.Data.IsEmpty() {
				inner = append(inner, e.Data)
			}
		}
		s.propagateInto(outer.Data, inner, exit.Map)
	}
}

// propagateInto updates the outer memlet in place.
func (s *State) propagateInto(outer *memlet.Memlet, inner []*memlet.Memlet, m *Map) {
	if len(inner) == 0 {
		return
	}
	for _, in := range inner {
		if in.Data != outer.Data {
			klog.V(2).Infof("memlet propagation: scope %s mixes data %q and %q, keeping %s", m, outer.Data, in.Data, outer)
			return
		}
	}
	desc, _ := s.sdfg.Arrays.Get(outer.Data)
	var (
		result  subsets.Subset
		volume  symbolic.Expr = symbolic.Int(0)
		dynamic bool
	)
	iterations := data.Product(m.Size())
	for ii, in := range inner {
		propagated := PropagateSubset(in.Subset, m, desc)
		if ii == 0 {
			result = propagated
		} else {
			result = unionSubsets(result, propagated, desc)
		}
		volume = symbolic.Add(volume, symbolic.Mul(in.NumAccesses(), iterations))
		dynamic = dynamic || in.Dynamic
	}
	outer.Subset = result
	outer.Volume = volume
	outer.Dynamic = dynamic
	if inner[0].WCR != memlet.ReductionNone {
		outer.WCR = inner[0].WCR
		if outer.WCRIdentity == nil && inner[0].WCRIdentity != nil {
			identity := *inner[0].WCRIdentity
			outer.WCRIdentity = &identity
		}
	}
}

// PropagateSubset returns the subset accessed by all iterations of the map, given the subset accessed by
// one iteration. desc (optional) is used for dimensions that can't be bounded analytically.
func PropagateSubset(sub subsets.Subset, m *Map, desc *data.Descriptor) subsets.Subset {
	result := make(subsets.Subset, len(sub))
	for dim, r := range sub {
		propagated, ok := propagateRange(r, m)
		if !ok {
			propagated = fullAxis(r, dim, desc)
		}
		result[dim] = propagated
	}
	return result
}

func propagateRange(r subsets.Range, m *Map) (subsets.Range, bool) {
	start, end, step := r.Start, r.End, r.Step
	usedParams := 0
	for ii, p := range m.Params {
		inStart, inEnd := symbolic.HasSymbol(start, p), symbolic.HasSymbol(end, p)
		if !inStart && !inEnd {
			continue
		}
		if symbolic.HasSymbol(step, p) {
			return r, false
		}
		usedParams++
		coefStart, _, okStart := symbolic.Affine(start, p)
		coefEnd, _, okEnd := symbolic.Affine(end, p)
		if !okStart || !okEnd {
			return r, false
		}
		pr := m.Range[ii]
		low, high := pr.Start, pr.End
		if coefStart >= 0 {
			start = symbolic.Substitute(start, map[string]symbolic.Expr{p: low})
		} else {
			start = symbolic.Substitute(start, map[string]symbolic.Expr{p: high})
		}
		if coefEnd >= 0 {
			end = symbolic.Substitute(end, map[string]symbolic.Expr{p: high})
		} else {
			end = symbolic.Substitute(end, map[string]symbolic.Expr{p: low})
		}
		if r.IsIndex() && coefStart == coefEnd && coefStart > 0 {
			step = symbolic.Mul(symbolic.Int(coefStart), pr.Step)
		} else {
			step = symbolic.Int(1)
		}
	}
	if usedParams > 1 {
		step = symbolic.Int(1)
	}
	return subsets.NewRange(start, end, step), true
}

func fullAxis(r subsets.Range, dim int, desc *data.Descriptor) subsets.Range {
	if desc == nil || dim >= desc.Rank() {
		return r
	}
	return subsets.Span(desc.Shape[dim])
}

// unionSubsets returns a subset covering both a and b.
func unionSubsets(a, b subsets.Subset, desc *data.Descriptor) subsets.Subset {
	if a.Equal(b) {
		return a
	}
	if len(a) != len(b) {
		if desc != nil {
			return desc.FullSubset()
		}
		return a
	}
	result := make(subsets.Subset, len(a))
	for dim := range a {
		if a[dim].Equal(b[dim]) {
			result[dim] = a[dim]
			continue
		}
		result[dim] = subsets.NewRange(
			symbolic.Min(a[dim].Start, b[dim].Start),
			symbolic.Max(a[dim].End, b[dim].End),
			symbolic.Int(1))
	}
	return result
}
