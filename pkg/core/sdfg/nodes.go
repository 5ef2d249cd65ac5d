// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
)

// Scope connector prefixes: data enters a scope entry (or exit) through "IN_<name>" and leaves it
// through the matching "OUT_<name>".
const (
	InPrefix  = "IN_"
	OutPrefix = "OUT_"
)

// Node is one of the dataflow node variants: *AccessNode, *MapEntry, *MapExit, *Tasklet, *NestedSDFG or
// *LibraryNode.
//
// Nodes have ordered named input and output connectors, and a stable ID assigned when they are added to a State.
type Node interface {
	fmt.Stringer

	// ID of the node in its State, or InvalidNodeID if it was not added to a state yet.
	ID() NodeID

	// Label is a human-readable name of the node.
	Label() string

	InConnectors() []string
	OutConnectors() []string
	HasInConnector(name string) bool
	HasOutConnector(name string) bool

	// AddInConnector adds the connector if it doesn't exist yet, and returns whether it was added.
	AddInConnector(name string) bool

	// AddOutConnector adds the connector if it doesn't exist yet, and returns whether it was added.
	AddOutConnector(name string) bool

	RemoveInConnector(name string)
	RemoveOutConnector(name string)

	base() *nodeBase
}

// nodeBase implements the connector bookkeeping shared by all node variants.
type nodeBase struct {
	id       NodeID
	inConns  []string
	outConns []string
}

func newNodeBase(inConns, outConns []string) nodeBase {
	return nodeBase{id: InvalidNodeID, inConns: slices.Clone(inConns), outConns: slices.Clone(outConns)}
}

func (b *nodeBase) base() *nodeBase                  { return b }
func (b *nodeBase) ID() NodeID                       { return b.id }
func (b *nodeBase) InConnectors() []string           { return slices.Clone(b.inConns) }
func (b *nodeBase) OutConnectors() []string          { return slices.Clone(b.outConns) }
func (b *nodeBase) HasInConnector(name string) bool  { return slices.Contains(b.inConns, name) }
func (b *nodeBase) HasOutConnector(name string) bool { return slices.Contains(b.outConns, name) }

func (b *nodeBase) AddInConnector(name string) bool {
	if b.HasInConnector(name) {
		return false
	}
	b.inConns = append(b.inConns, name)
	return true
}

func (b *nodeBase) AddOutConnector(name string) bool {
	if b.HasOutConnector(name) {
		return false
	}
	b.outConns = append(b.outConns, name)
	return true
}

func (b *nodeBase) RemoveInConnector(name string) {
	b.inConns = slices.DeleteFunc(b.inConns, func(c string) bool { return c == name })
}

func (b *nodeBase) RemoveOutConnector(name string) {
	b.outConns = slices.DeleteFunc(b.outConns, func(c string) bool { return c == name })
}

// AccessNode is a read/write point of a named data container.
type AccessNode struct {
	nodeBase
	Data string
}

// NewAccessNode creates an access node to the container data.
func NewAccessNode(data string) *AccessNode {
	return &AccessNode{nodeBase: newNodeBase(nil, nil), Data: data}
}

func (n *AccessNode) Label() string  { return n.Data }
func (n *AccessNode) String() string { return fmt.Sprintf("AccessNode(%s)", n.Data) }

// Map is a parametrized iteration range. It is shared by the MapEntry and MapExit bounding its scope.
type Map struct {
	Label    string
	Params   []string
	Range    subsets.Subset
	Schedule ScheduleType
	Unroll   bool
}

// Clone returns a copy of the map.
func (m *Map) Clone() *Map {
	c := *m
	c.Params = slices.Clone(m.Params)
	c.Range = m.Range.Clone()
	return &c
}

// Size returns the number of iterations of each parameter.
func (m *Map) Size() []symbolic.Expr {
	return m.Range.Size()
}

// String returns the map in the form "label[i=0:N, j=0:M]".
func (m *Map) String() string {
	parts := make([]string, len(m.Params))
	for ii, p := range m.Params {
		rangeStr := "?"
		if ii < len(m.Range) {
			rangeStr = m.Range[ii].String()
			if m.Range[ii].IsIndex() {
				rangeStr += ":" + symbolic.Add(m.Range[ii].End, symbolic.Int(1)).String()
			}
		}
		parts[ii] = p + "=" + rangeStr
	}
	return fmt.Sprintf("%s[%s]", m.Label, strings.Join(parts, ", "))
}

// MapEntry opens the scope of a Map.
type MapEntry struct {
	nodeBase
	Map *Map
}

// MapExit closes the scope of a Map.
type MapExit struct {
	nodeBase
	Map *Map
}

func (n *MapEntry) Label() string  { return n.Map.Label }
func (n *MapEntry) String() string { return "MapEntry(" + n.Map.String() + ")" }
func (n *MapExit) Label() string   { return n.Map.Label }
func (n *MapExit) String() string  { return "MapExit(" + n.Map.String() + ")" }

// Tasklet is an atomic computation, reading from its input connectors and writing to its output connectors.
type Tasklet struct {
	nodeBase
	Name     string
	Code     string
	Language Language
}

// NewTasklet creates a tasklet with the given connectors.
func NewTasklet(name string, inputs, outputs []string, code string, language Language) *Tasklet {
	return &Tasklet{nodeBase: newNodeBase(inputs, outputs), Name: name, Code: code, Language: language}
}

func (n *Tasklet) Label() string  { return n.Name }
func (n *Tasklet) String() string { return fmt.Sprintf("Tasklet(%s)", n.Name) }

// NestedSDFG is a node holding an entire SDFG. Its connectors are names of (non-transient) arrays of the
// nested SDFG, and SymbolMapping gives the value of the nested SDFG's symbols in terms of the outer ones.
type NestedSDFG struct {
	nodeBase
	Name          string
	SDFG          *SDFG
	SymbolMapping map[string]symbolic.Expr
}

// NewNestedSDFG creates a nested SDFG node. The node owns sdfg.
func NewNestedSDFG(name string, sdfg *SDFG, inputs, outputs []string, symbolMapping map[string]symbolic.Expr) *NestedSDFG {
	if symbolMapping == nil {
		symbolMapping = make(map[string]symbolic.Expr)
	}
	return &NestedSDFG{
		nodeBase:      newNodeBase(inputs, outputs),
		Name:          name,
		SDFG:          sdfg,
		SymbolMapping: maps.Clone(symbolMapping),
	}
}

func (n *NestedSDFG) Label() string  { return n.Name }
func (n *NestedSDFG) String() string { return fmt.Sprintf("NestedSDFG(%s)", n.Name) }

// LibraryNode is an abstract operator, expanded later into a concrete implementation.
//
// Kind names the operator kind (e.g. "MatMul"); its connectors are fixed per kind. Implementation,
// if set, selects the expansion explicitly. Location carries placement hints (e.g. "gpu": "1").
type LibraryNode struct {
	nodeBase
	Name           string
	Kind           string
	Implementation string
	Location       map[string]string
	DType          dtypes.DType
}

// NewLibraryNode creates a library node with fixed connectors.
func NewLibraryNode(name, kind string, inputs, outputs []string) *LibraryNode {
	return &LibraryNode{
		nodeBase: newNodeBase(inputs, outputs),
		Name:     name,
		Kind:     kind,
		Location: make(map[string]string),
	}
}

func (n *LibraryNode) Label() string { return n.Name }
func (n *LibraryNode) String() string {
	return fmt.Sprintf("LibraryNode(%s: %s)", n.Name, n.Kind)
}

// IsCodeNode returns whether n is a computation: a Tasklet, a NestedSDFG or a LibraryNode.
func IsCodeNode(n Node) bool {
	switch n.(type) {
	case *Tasklet, *NestedSDFG, *LibraryNode:
		return true
	}
	return false
}

// IsScopeNode returns whether n is a MapEntry or a MapExit.
func IsScopeNode(n Node) bool {
	switch n.(type) {
	case *MapEntry, *MapExit:
		return true
	}
	return false
}
