// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"strings"

	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/support/sets"
	"github.com/pkg/errors"
)

// Validate checks the structural invariants of g and of its nested SDFGs.
// The returned error wraps ErrValidation.
//
// Validation is read-only: calling it twice on an unmodified graph yields the same result.
func Validate(g *SDFG) error {
	return validateSDFG(g, nil)
}

// registryChain is the list of SDFGs visible from a nested SDFG: the innermost first.
type registryChain []*SDFG

func (c registryChain) lookup(name string) (*data.Descriptor, bool) {
	for _, g := range c {
		if desc, found := g.Arrays.Get(name); found {
			return desc, true
		}
	}
	return nil, false
}

func validateSDFG(g *SDFG, outer registryChain) error {
	chain := append(registryChain{g}, outer...)
	for _, name := range g.Arrays.Names() {
		desc, _ := g.Arrays.Get(name)
		if err := desc.Check(); err != nil {
			return Validationf("%s: array %q: %v", g, name, err)
		}
	}
	if len(g.States()) > 0 && g.StartState() == nil {
		return Validationf("%s: no start state", g)
	}
	for _, e := range g.edges {
		if e.Src < 0 || int(e.Src) >= len(g.states) || g.states[e.Src] == nil ||
			e.Dst < 0 || int(e.Dst) >= len(g.states) || g.states[e.Dst] == nil {
			return Validationf("%s: interstate edge %d->%d references missing state", g, e.Src, e.Dst)
		}
	}
	for _, s := range g.States() {
		if err := validateState(s, chain); err != nil {
			return errors.WithMessagef(err, "%s, %s", g, s)
		}
	}
	return nil
}

func validateState(s *State, chain registryChain) error {
	// Edges reference live nodes and existing connectors.
	for _, e := range s.Edges() {
		src, okSrc := s.Lookup(e.Src)
		dst, okDst := s.Lookup(e.Dst)
		if !okSrc || !okDst {
			return Validationf("edge %s references a removed node", e)
		}
		if e.Data == nil {
			return Validationf("edge %s has no memlet", e)
		}
		if e.SrcConn != "" && !src.HasOutConnector(e.SrcConn) {
			return Validationf("edge %s: %s has no output connector %q", e, src, e.SrcConn)
		}
		if e.DstConn != "" && !dst.HasInConnector(e.DstConn) {
			return Validationf("edge %s: %s has no input connector %q", e, dst, e.DstConn)
		}
		if !e.Data.IsEmpty() {
			if err := validateMemlet(s, e, chain); err != nil {
				return err
			}
		}
	}
	if _, ok := topologicalSort(s, s.Nodes()); !ok {
		return Validationf("dataflow graph has a cycle")
	}

	// Scopes: each entry has exactly one exit and vice-versa.
	entries := make(map[*Map]*MapEntry)
	exits := make(map[*Map]*MapExit)
	for _, n := range s.Nodes() {
		switch v := n.(type) {
		case *MapEntry:
			if _, found := entries[v.Map]; found {
				return Validationf("map %s has more than one entry", v.Map)
			}
			entries[v.Map] = v
			if len(v.Map.Params) == 0 || len(v.Map.Params) != v.Map.Range.Dims() {
				return Validationf("map %s: %d parameters for %d ranges", v.Map, len(v.Map.Params), v.Map.Range.Dims())
			}
		case *MapExit:
			if _, found := exits[v.Map]; found {
				return Validationf("map %s has more than one exit", v.Map)
			}
			exits[v.Map] = v
		}
	}
	for m := range entries {
		if _, found := exits[m]; !found {
			return Validationf("map %s has no exit", m)
		}
	}
	for m := range exits {
		if _, found := entries[m]; !found {
			return Validationf("map %s has no entry", m)
		}
	}

	// Scopes nest: every edge stays within a scope, enters a scope through its entry, or leaves it through its exit.
	sd := s.ScopeDict()
	for _, e := range s.Edges() {
		src, dst := s.Node(e.Src), s.Node(e.Dst)
		expected := sd[src.ID()]
		if entry, ok := src.(*MapEntry); ok {
			expected = entry
		}
		if exit, ok := dst.(*MapExit); ok {
			if expected != entries[exit.Map] {
				return Validationf("edge %s enters the exit of map %s from outside its scope", e, exit.Map)
			}
			continue
		}
		if sd[dst.ID()] != expected {
			return Validationf("edge %s crosses a scope boundary of %s without going through its entry or exit", e, dst)
		}
	}

	for _, n := range s.Nodes() {
		if err := validateNode(s, n, chain); err != nil {
			return err
		}
	}
	return nil
}

func validateMemlet(s *State, e *Edge, chain registryChain) error {
	m := e.Data
	desc, found := chain.lookup(m.Data)
	if !found {
		return Validationf("edge %s: memlet references undeclared array %q", e, m.Data)
	}
	if m.Subset == nil {
		return Validationf("edge %s: memlet has no subset", e)
	}
	if m.Subset.Dims() != desc.Rank() {
		return Validationf("edge %s: subset %q has %d dimensions, array %q has rank %d",
			e, m.Subset, m.Subset.Dims(), m.Data, desc.Rank())
	}
	return nil
}

func validateNode(s *State, n Node, chain registryChain) error {
	switch v := n.(type) {
	case *AccessNode:
		if _, found := chain.lookup(v.Data); !found {
			return Validationf("%s: array %q is not declared", v, v.Data)
		}
		for _, e := range s.AllEdges(v) {
			if !e.Data.IsEmpty() && e.Data.Data != v.Data && e.Data.OtherSubset == nil {
				if _, isAccess := s.Node(e.Src).(*AccessNode); !isAccess {
					if _, isAccess := s.Node(e.Dst).(*AccessNode); !isAccess {
						return Validationf("%s: edge %s carries data %q", v, e, e.Data.Data)
					}
				}
			}
		}
	case *MapEntry:
		if err := validateScopeConnectors(n, v.InConnectors(), v.OutConnectors()); err != nil {
			return err
		}
	case *MapExit:
		if err := validateScopeConnectors(n, v.InConnectors(), v.OutConnectors()); err != nil {
			return err
		}
	case *Tasklet:
		if v.Language == LanguagePython {
			statements, err := symbolic.ParseCode(v.Code)
			if err != nil {
				return Validationf("%s: %v", v, err)
			}
			for _, st := range statements {
				if !v.HasOutConnector(st.Target) && !isLocal(st.Target, statements) {
					return Validationf("%s: assigns to unknown connector %q", v, st.Target)
				}
			}
		}
	case *NestedSDFG:
		if v.SDFG == nil {
			return Validationf("%s: no SDFG", v)
		}
		for _, conn := range append(v.InConnectors(), v.OutConnectors()...) {
			desc, found := v.SDFG.Arrays.Get(conn)
			if !found {
				return Validationf("%s: connector %q is not an array of the nested SDFG", v, conn)
			}
			if desc.Transient {
				return Validationf("%s: connector %q refers to a transient", v, conn)
			}
		}
		for _, e := range s.AllEdges(v) {
			if e.Data.IsEmpty() {
				continue
			}
			conn := e.DstConn
			if e.Src == v.ID() {
				conn = e.SrcConn
			}
			desc, found := v.SDFG.Arrays.Get(conn)
			if !found {
				continue
			}
			if _, kept := e.Data.Subset.Squeeze(); e.Data.Subset.Dims() != desc.Rank() && len(kept) != desc.Rank() {
				return Validationf("%s: memlet %s of connector %q has %d non-unit dimensions, nested array has rank %d",
					v, e.Data, conn, len(kept), desc.Rank())
			}
		}
		for name := range v.SymbolMapping {
			if _, found := v.SDFG.Symbols[name]; !found {
				return Validationf("%s: symbol mapping of %q, not declared in the nested SDFG", v, name)
			}
		}
		if err := validateSDFG(v.SDFG, chain); err != nil {
			return errors.WithMessagef(err, "in %s", v)
		}
	case *LibraryNode:
		for _, conn := range v.InConnectors() {
			count := 0
			for _, e := range s.InEdges(v) {
				if e.DstConn == conn {
					count++
				}
			}
			if count != 1 {
				return Validationf("%s: input connector %q has %d edges, expected 1", v, conn, count)
			}
		}
		for _, conn := range v.OutConnectors() {
			count := 0
			for _, e := range s.OutEdges(v) {
				if e.SrcConn == conn {
					count++
				}
			}
			if count == 0 {
				return Validationf("%s: output connector %q is not connected", v, conn)
			}
		}
	}
	return nil
}

// isLocal returns whether target is read by a later statement: tasklets may use local temporaries.
func isLocal(target string, statements []symbolic.Statement) bool {
	for _, st := range statements {
		if symbolic.HasSymbol(st.Value, target) {
			return true
		}
	}
	return false
}

func validateScopeConnectors(n Node, inConns, outConns []string) error {
	ins := sets.Make[string]()
	for _, c := range inConns {
		if strings.HasPrefix(c, InPrefix) {
			ins.Insert(strings.TrimPrefix(c, InPrefix))
		}
	}
	outs := sets.Make[string]()
	for _, c := range outConns {
		if !strings.HasPrefix(c, OutPrefix) {
			return Validationf("%s: output connector %q must start with %q", n, c, OutPrefix)
		}
		outs.Insert(strings.TrimPrefix(c, OutPrefix))
	}
	if !ins.Equal(outs) {
		return Validationf("%s: unmatched scope connectors IN_%v / OUT_%v", n, sets.Sorted(ins), sets.Sorted(outs))
	}
	return nil
}

// CheckExpanded verifies the input contract of code generation: every node of g (and of its nested SDFGs)
// is an access node, a map entry/exit, a tasklet or a nested SDFG. No library node may remain.
func CheckExpanded(g *SDFG) error {
	for _, nc := range g.AllNodesRecursive() {
		switch v := nc.Node.(type) {
		case *AccessNode, *MapEntry, *MapExit, *NestedSDFG:
		case *Tasklet:
			if !v.Language.IsALanguage() {
				return Validationf("%s in %s: unknown language %d", v, nc.SDFG, v.Language)
			}
		case *LibraryNode:
			return Validationf("%s in %s: library node not expanded", v, nc.SDFG)
		default:
			return Validationf("%s in %s: unknown node type %T", v, nc.SDFG, v)
		}
	}
	return nil
}
