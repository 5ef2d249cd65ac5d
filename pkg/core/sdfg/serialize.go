// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import (
	"encoding/json"
	"maps"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// The serialized form mirrors the arenas: removed nodes and edges are stored as null, so that handles
// survive a round trip. Map entries and exits refer to a shared map by its index in the state's map list.

type sdfgJSON struct {
	Name        string            `json:"name"`
	ID          uuid.UUID         `json:"id"`
	Arrays      []arrayJSON       `json:"arrays"`
	Symbols     map[string]string `json:"symbols,omitempty"`
	Constants   map[string]int64  `json:"constants,omitempty"`
	States      []*stateJSON      `json:"states"`
	Transitions []*InterstateEdge `json:"transitions,omitempty"`
	StartState  StateID           `json:"start_state"`
}

type arrayJSON struct {
	Name      string           `json:"name"`
	DType     string           `json:"dtype"`
	Shape     []string         `json:"shape"`
	Strides   []string         `json:"strides"`
	Offset    []string         `json:"offset"`
	TotalSize string           `json:"total_size"`
	Storage   data.StorageType `json:"storage"`
	Lifetime  data.Lifetime    `json:"lifetime"`
	Transient bool             `json:"transient,omitempty"`
	Scalar    bool             `json:"scalar,omitempty"`
}

type stateJSON struct {
	Label string      `json:"label"`
	Maps  []mapJSON   `json:"maps,omitempty"`
	Nodes []*nodeJSON `json:"nodes"`
	Edges []*edgeJSON `json:"edges"`
}

type mapJSON struct {
	Label    string       `json:"label"`
	Params   []string     `json:"params"`
	Range    string       `json:"range"`
	Schedule ScheduleType `json:"schedule"`
	Unroll   bool         `json:"unroll,omitempty"`
}

type nodeJSON struct {
	Type     string   `json:"type"`
	In       []string `json:"in,omitempty"`
	Out      []string `json:"out,omitempty"`
	Data     string   `json:"data,omitempty"`
	Map      int      `json:"map,omitempty"`
	Name     string   `json:"name,omitempty"`
	Code     string   `json:"code,omitempty"`
	Language Language `json:"language,omitempty"`

	SDFG          *sdfgJSON         `json:"sdfg,omitempty"`
	SymbolMapping map[string]string `json:"symbol_mapping,omitempty"`

	Kind           string            `json:"kind,omitempty"`
	Implementation string            `json:"implementation,omitempty"`
	Location       map[string]string `json:"location,omitempty"`
	DType          string            `json:"dtype,omitempty"`
}

type edgeJSON struct {
	Src     NodeID      `json:"src"`
	SrcConn string      `json:"src_conn,omitempty"`
	Dst     NodeID      `json:"dst"`
	DstConn string      `json:"dst_conn,omitempty"`
	Memlet  *memletJSON `json:"memlet,omitempty"`
}

type memletJSON struct {
	Data        string           `json:"data"`
	Subset      string           `json:"subset"`
	OtherSubset string           `json:"other_subset,omitempty"`
	Volume      string           `json:"volume,omitempty"`
	Dynamic     bool             `json:"dynamic,omitempty"`
	WCR         memlet.Reduction `json:"wcr,omitempty"`
	WCRIdentity *float64         `json:"wcr_identity,omitempty"`
}

const (
	nodeTypeAccess  = "AccessNode"
	nodeTypeEntry   = "MapEntry"
	nodeTypeExit    = "MapExit"
	nodeTypeTasklet = "Tasklet"
	nodeTypeNested  = "NestedSDFG"
	nodeTypeLibrary = "LibraryNode"
)

// MarshalJSON implements json.Marshaler.
func (g *SDFG) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.toJSON())
}

// UnmarshalJSON implements json.Unmarshaler. Node and edge handles are preserved.
func (g *SDFG) UnmarshalJSON(b []byte) error {
	var sj sdfgJSON
	if err := json.Unmarshal(b, &sj); err != nil {
		return errors.Wrap(err, "failed to decode SDFG")
	}
	decoded, err := sj.decode()
	if err != nil {
		return err
	}
	*g = *decoded
	for _, s := range g.states {
		if s != nil {
			s.sdfg = g
		}
	}
	return nil
}

func exprStrings(exprs []symbolic.Expr) []string {
	return xslices.Map(exprs, func(e symbolic.Expr) string { return e.String() })
}

func parseExprs(texts []string) ([]symbolic.Expr, error) {
	exprs := make([]symbolic.Expr, len(texts))
	for ii, text := range texts {
		e, err := symbolic.Parse(text)
		if err != nil {
			return nil, err
		}
		exprs[ii] = e
	}
	return exprs, nil
}

func (g *SDFG) toJSON() *sdfgJSON {
	sj := &sdfgJSON{
		Name:       g.Name,
		ID:         g.ID,
		Constants:  maps.Clone(g.Constants),
		StartState: g.startState,
	}
	if len(g.Symbols) > 0 {
		sj.Symbols = make(map[string]string, len(g.Symbols))
		for name, dtype := range g.Symbols {
			sj.Symbols[name] = dtype.String()
		}
	}
	for _, name := range g.Arrays.Names() {
		desc, _ := g.Arrays.Get(name)
		aj := arrayJSON{
			Name:      name,
			DType:     desc.DType.String(),
			Shape:     exprStrings(desc.Shape),
			Strides:   exprStrings(desc.Strides),
			Offset:    exprStrings(desc.Offset),
			Storage:   desc.Storage,
			Lifetime:  desc.Lifetime,
			Transient: desc.Transient,
			Scalar:    desc.Scalar,
		}
		if desc.TotalSize != nil {
			aj.TotalSize = desc.TotalSize.String()
		}
		sj.Arrays = append(sj.Arrays, aj)
	}
	for _, s := range g.states {
		if s == nil {
			sj.States = append(sj.States, nil)
			continue
		}
		sj.States = append(sj.States, s.toJSON())
	}
	sj.Transitions = g.edges
	return sj
}

func (s *State) toJSON() *stateJSON {
	stj := &stateJSON{Label: s.Label}
	mapIndex := make(map[*Map]int)
	indexOf := func(m *Map) int {
		if idx, found := mapIndex[m]; found {
			return idx
		}
		mapIndex[m] = len(stj.Maps)
		stj.Maps = append(stj.Maps, mapJSON{
			Label: m.Label, Params: m.Params, Range: m.Range.String(), Schedule: m.Schedule, Unroll: m.Unroll,
		})
		return mapIndex[m]
	}
	for _, n := range s.nodes {
		if n == nil {
			stj.Nodes = append(stj.Nodes, nil)
			continue
		}
		nj := &nodeJSON{In: n.InConnectors(), Out: n.OutConnectors()}
		switch v := n.(type) {
		case *AccessNode:
			nj.Type, nj.Data = nodeTypeAccess, v.Data
		case *MapEntry:
			nj.Type, nj.Map = nodeTypeEntry, indexOf(v.Map)
		case *MapExit:
			nj.Type, nj.Map = nodeTypeExit, indexOf(v.Map)
		case *Tasklet:
			nj.Type, nj.Name, nj.Code, nj.Language = nodeTypeTasklet, v.Name, v.Code, v.Language
		case *NestedSDFG:
			nj.Type, nj.Name, nj.SDFG = nodeTypeNested, v.Name, v.SDFG.toJSON()
			nj.SymbolMapping = make(map[string]string, len(v.SymbolMapping))
			for name, e := range v.SymbolMapping {
				nj.SymbolMapping[name] = e.String()
			}
		case *LibraryNode:
			nj.Type, nj.Name, nj.Kind, nj.Implementation = nodeTypeLibrary, v.Name, v.Kind, v.Implementation
			nj.Location = maps.Clone(v.Location)
			if v.DType != dtypes.InvalidDType {
				nj.DType = v.DType.String()
			}
		}
		stj.Nodes = append(stj.Nodes, nj)
	}
	for _, e := range s.edges {
		if e == nil {
			stj.Edges = append(stj.Edges, nil)
			continue
		}
		ej := &edgeJSON{Src: e.Src, SrcConn: e.SrcConn, Dst: e.Dst, DstConn: e.DstConn}
		if !e.Data.IsEmpty() {
			m := e.Data
			ej.Memlet = &memletJSON{
				Data:        m.Data,
				Subset:      m.Subset.String(),
				Dynamic:     m.Dynamic,
				WCR:         m.WCR,
				WCRIdentity: m.WCRIdentity,
			}
			if m.OtherSubset != nil {
				ej.Memlet.OtherSubset = m.OtherSubset.String()
			}
			if m.Volume != nil {
				ej.Memlet.Volume = m.Volume.String()
			}
		}
		stj.Edges = append(stj.Edges, ej)
	}
	return stj
}

func parseDType(name string) (dtypes.DType, error) {
	dtype, found := dtypes.MapOfNames[name]
	if !found {
		return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

func (sj *sdfgJSON) decode() (*SDFG, error) {
	g := New(sj.Name)
	g.ID = sj.ID
	maps.Copy(g.Constants, sj.Constants)
	for name, dtypeName := range sj.Symbols {
		dtype, err := parseDType(dtypeName)
		if err != nil {
			return nil, errors.WithMessagef(err, "symbol %q of %s", name, g)
		}
		g.Symbols[name] = dtype
	}
	for _, aj := range sj.Arrays {
		desc, err := aj.decode()
		if err != nil {
			return nil, errors.WithMessagef(err, "array %q of %s", aj.Name, g)
		}
		if err := g.Arrays.Add(aj.Name, desc); err != nil {
			return nil, err
		}
	}
	for ii, stj := range sj.States {
		if stj == nil {
			g.states = append(g.states, nil)
			continue
		}
		s := &State{Label: stj.Label, id: StateID(ii), sdfg: g}
		if err := stj.decodeInto(s); err != nil {
			return nil, errors.WithMessagef(err, "%s of %s", s, g)
		}
		g.states = append(g.states, s)
	}
	g.edges = sj.Transitions
	g.startState = sj.StartState
	return g, nil
}

func (aj arrayJSON) decode() (*data.Descriptor, error) {
	var err error
	desc := &data.Descriptor{Storage: aj.Storage, Lifetime: aj.Lifetime, Transient: aj.Transient, Scalar: aj.Scalar}
	if desc.DType, err = parseDType(aj.DType); err != nil {
		return nil, err
	}
	if desc.Shape, err = parseExprs(aj.Shape); err != nil {
		return nil, err
	}
	if desc.Strides, err = parseExprs(aj.Strides); err != nil {
		return nil, err
	}
	if desc.Offset, err = parseExprs(aj.Offset); err != nil {
		return nil, err
	}
	if aj.TotalSize != "" {
		if desc.TotalSize, err = symbolic.Parse(aj.TotalSize); err != nil {
			return nil, err
		}
	}
	return desc, nil
}

func (stj *stateJSON) decodeInto(s *State) error {
	stateMaps := make([]*Map, len(stj.Maps))
	for ii, mj := range stj.Maps {
		r, err := subsets.Parse(mj.Range)
		if err != nil {
			return err
		}
		stateMaps[ii] = &Map{Label: mj.Label, Params: mj.Params, Range: r, Schedule: mj.Schedule, Unroll: mj.Unroll}
	}
	mapAt := func(idx int) (*Map, error) {
		if idx < 0 || idx >= len(stateMaps) {
			return nil, errors.Errorf("invalid map index %d", idx)
		}
		return stateMaps[idx], nil
	}
	for ii, nj := range stj.Nodes {
		if nj == nil {
			s.nodes = append(s.nodes, nil)
			continue
		}
		var n Node
		switch nj.Type {
		case nodeTypeAccess:
			n = NewAccessNode(nj.Data)
		case nodeTypeEntry:
			m, err := mapAt(nj.Map)
			if err != nil {
				return err
			}
			n = &MapEntry{nodeBase: newNodeBase(nj.In, nj.Out), Map: m}
		case nodeTypeExit:
			m, err := mapAt(nj.Map)
			if err != nil {
				return err
			}
			n = &MapExit{nodeBase: newNodeBase(nj.In, nj.Out), Map: m}
		case nodeTypeTasklet:
			n = NewTasklet(nj.Name, nj.In, nj.Out, nj.Code, nj.Language)
		case nodeTypeNested:
			if nj.SDFG == nil {
				return errors.Errorf("nested SDFG node #%d has no SDFG", ii)
			}
			nested, err := nj.SDFG.decode()
			if err != nil {
				return err
			}
			mapping := make(map[string]symbolic.Expr, len(nj.SymbolMapping))
			for name, text := range nj.SymbolMapping {
				if mapping[name], err = symbolic.Parse(text); err != nil {
					return err
				}
			}
			n = NewNestedSDFG(nj.Name, nested, nj.In, nj.Out, mapping)
		case nodeTypeLibrary:
			lib := NewLibraryNode(nj.Name, nj.Kind, nj.In, nj.Out)
			lib.Implementation = nj.Implementation
			maps.Copy(lib.Location, nj.Location)
			if nj.DType != "" {
				var err error
				if lib.DType, err = parseDType(nj.DType); err != nil {
					return err
				}
			}
			n = lib
		default:
			return errors.Errorf("unknown node type %q", nj.Type)
		}
		n.base().id = NodeID(ii)
		s.nodes = append(s.nodes, n)
	}
	for ii, ej := range stj.Edges {
		if ej == nil {
			s.edges = append(s.edges, nil)
			continue
		}
		e := &Edge{id: EdgeID(ii), Src: ej.Src, SrcConn: ej.SrcConn, Dst: ej.Dst, DstConn: ej.DstConn, Data: memlet.Empty()}
		if ej.Memlet != nil {
			m, err := ej.Memlet.decode()
			if err != nil {
				return err
			}
			e.Data = m
		}
		s.edges = append(s.edges, e)
	}
	return nil
}

func (mj *memletJSON) decode() (*memlet.Memlet, error) {
	sub, err := subsets.Parse(mj.Subset)
	if err != nil {
		return nil, err
	}
	m := &memlet.Memlet{Data: mj.Data, Subset: sub, Dynamic: mj.Dynamic, WCR: mj.WCR, WCRIdentity: mj.WCRIdentity}
	if mj.OtherSubset != "" {
		if m.OtherSubset, err = subsets.Parse(mj.OtherSubset); err != nil {
			return nil, err
		}
	}
	if mj.Volume != "" {
		if m.Volume, err = symbolic.Parse(mj.Volume); err != nil {
			return nil, err
		}
	}
	return m, nil
}
