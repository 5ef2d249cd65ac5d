// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"fmt"
	"strings"

	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/support/xslices"
)

// MapParam is a map parameter and its range in slice notation, e.g. {"i", "0:N"}.
type MapParam struct {
	Name, Range string
}

// Connection binds a tasklet connector to the memlet read from or written to it.
type Connection struct {
	Conn   string
	Memlet *memlet.Memlet
}

// AddMappedTasklet adds a tasklet inside a new map scope.
//
// Inputs and outputs are the memlets of the tasklet connectors, expressed in terms of the map parameters.
// If externalEdges is true, access nodes are created outside the map for every array used, and the
// outer memlets are computed by propagation. Otherwise the caller must connect the IN_/OUT_ connectors of
// the entry and exit.
func (s *State) AddMappedTasklet(name string, params []MapParam, inputs []Connection, code string,
	outputs []Connection, externalEdges bool) (*Tasklet, *MapEntry, *MapExit) {
	entry, exit := s.AddMap(name+"_map",
		xslices.Map(params, func(p MapParam) string { return p.Name }),
		xslices.Map(params, func(p MapParam) string { return p.Range }),
		ScheduleDefault)
	tasklet := s.AddTasklet(name,
		xslices.Map(inputs, func(c Connection) string { return c.Conn }),
		xslices.Map(outputs, func(c Connection) string { return c.Conn }),
		code, LanguagePython)

	// Inner edges.
	for _, in := range inputs {
		entry.AddOutConnector(OutPrefix + in.Memlet.Data)
		s.AddEdge(entry, OutPrefix+in.Memlet.Data, tasklet, in.Conn, in.Memlet)
	}
	if len(inputs) == 0 {
		s.AddEdge(entry, "", tasklet, "", memlet.Empty())
	}
	for _, out := range outputs {
		exit.AddInConnector(InPrefix + out.Memlet.Data)
		s.AddEdge(tasklet, out.Conn, exit, InPrefix+out.Memlet.Data, out.Memlet)
	}
	if len(outputs) == 0 {
		s.AddEdge(tasklet, "", exit, "", memlet.Empty())
	}
	if !externalEdges {
		return tasklet, entry, exit
	}

	// External access nodes, one per array.
	readers := make(map[string]bool)
	for _, in := range inputs {
		arrayName := in.Memlet.Data
		if readers[arrayName] {
			continue
		}
		readers[arrayName] = true
		entry.AddInConnector(InPrefix + arrayName)
		s.AddEdge(s.AddRead(arrayName), "", entry, InPrefix+arrayName, memlet.New(arrayName, nil))
	}
	writers := make(map[string]bool)
	for _, out := range outputs {
		arrayName := out.Memlet.Data
		if writers[arrayName] {
			continue
		}
		writers[arrayName] = true
		exit.AddOutConnector(OutPrefix + arrayName)
		s.AddEdge(exit, OutPrefix+arrayName, s.AddWrite(arrayName), "", memlet.New(arrayName, nil))
	}
	s.PropagateScope(entry)
	return tasklet, entry, exit
}

// FillScopeConnectors creates the IN_/OUT_ connectors of map entries and exits for edges that have
// non-empty memlets but no connector. Connectors are named after the data they carry: "IN_A"/"OUT_A",
// with a numeric suffix if the name is already taken by another edge.
func (s *State) FillScopeConnectors() {
	for _, n := range s.Nodes() {
		switch n.(type) {
		case *MapEntry:
			// Outer side is the input, inner side the output.
			s.fillConnectors(n, s.InEdges(n), s.OutEdges(n), true)
		case *MapExit:
			// Outer side is the output, inner side the input.
			s.fillConnectors(n, s.OutEdges(n), s.InEdges(n), false)
		}
	}
}

func (s *State) fillConnectors(n Node, outerEdges, innerEdges []*Edge, isEntry bool) {
	outerConn := func(e *Edge) *string {
		if isEntry {
			return &e.DstConn
		}
		return &e.SrcConn
	}
	innerConn := func(e *Edge) *string {
		if isEntry {
			return &e.SrcConn
		}
		return &e.DstConn
	}
	outerPrefix, innerPrefix := InPrefix, OutPrefix
	if !isEntry {
		outerPrefix, innerPrefix = OutPrefix, InPrefix
	}
	addConn := func(name string, outer bool) {
		if outer == isEntry {
			n.AddInConnector(name)
		} else {
			n.AddOutConnector(name)
		}
	}

	used := make(map[string]bool)
	for _, e := range outerEdges {
		if conn := *outerConn(e); conn != "" {
			used[strings.TrimPrefix(conn, outerPrefix)] = true
		}
	}
	dataToSuffix := make(map[string]string)
	for _, e := range outerEdges {
		conn := outerConn(e)
		if *conn != "" || e.Data.IsEmpty() {
			continue
		}
		suffix := e.Data.Data
		for ii := 1; used[suffix]; ii++ {
			suffix = fmt.Sprintf("%s_%d", e.Data.Data, ii)
		}
		used[suffix] = true
		if _, found := dataToSuffix[e.Data.Data]; !found {
			dataToSuffix[e.Data.Data] = suffix
		}
		*conn = outerPrefix + suffix
		addConn(*conn, true)
	}
	for _, e := range outerEdges {
		if conn := *outerConn(e); conn != "" && !e.Data.IsEmpty() {
			if _, found := dataToSuffix[e.Data.Data]; !found {
				dataToSuffix[e.Data.Data] = strings.TrimPrefix(conn, outerPrefix)
			}
		}
	}
	for _, e := range innerEdges {
		conn := innerConn(e)
		if *conn != "" || e.Data.IsEmpty() {
			continue
		}
		suffix, found := dataToSuffix[e.Data.Data]
		if !found {
			continue
		}
		*conn = innerPrefix + suffix
		addConn(*conn, false)
	}
}

// ParamsSubset returns the subset of a single iteration of the map, indexed by its parameters:
// "i, j" for a map over i and j.
func (m *Map) ParamsSubset() subsets.Subset {
	return subsets.MustParse(strings.Join(m.Params, ", "))
}
