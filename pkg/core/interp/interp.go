// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package interp is a reference interpreter for expanded SDFGs.
//
// It executes states in order, iterates map scopes sequentially, evaluates tasklet code with the symbolic
// package and runs nested SDFGs on strided views of the outer arrays. It is slow, and meant as an oracle
// to check that transformations and library expansions preserve semantics.
//
// Library nodes and tasklets in native languages can't be interpreted: expand them first.
package interp

import (
	"maps"
	"slices"

	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Run executes g with the given (non-transient) arrays and symbol values.
// Results are written in place into the argument buffers.
func Run(g *sdfg.SDFG, args map[string]*Buffer, symbols map[string]int64) error {
	if err := sdfg.CheckExpanded(g); err != nil {
		return err
	}
	return runSDFG(g, args, symbols)
}

// frame is the execution context of one SDFG invocation.
type frame struct {
	g        *sdfg.SDFG
	buffers  map[string]*Buffer
	bindings map[string]int64

	// statements caches the parsed code of the tasklets.
	statements map[*sdfg.Tasklet][]symbolic.Statement
}

func runSDFG(g *sdfg.SDFG, args map[string]*Buffer, symbols map[string]int64) error {
	f := &frame{
		g:          g,
		buffers:    make(map[string]*Buffer, g.Arrays.Len()),
		bindings:   maps.Clone(symbols),
		statements: make(map[*sdfg.Tasklet][]symbolic.Statement),
	}
	if f.bindings == nil {
		f.bindings = make(map[string]int64)
	}
	maps.Copy(f.bindings, g.Constants)
	for _, name := range g.Arrays.Names() {
		desc, _ := g.Arrays.Get(name)
		if !isSupported(desc.DType) {
			return sdfg.Unsupportedf("interpreter: array %q of %s has dtype %s", name, g, desc.DType)
		}
		if !desc.Transient {
			b, found := args[name]
			if !found {
				return errors.Errorf("interpreter: missing argument %q for %s", name, g)
			}
			if err := f.checkArgument(name, desc, b); err != nil {
				return err
			}
			f.buffers[name] = b
			continue
		}
		dims, err := f.evalShape(desc)
		if err != nil {
			return errors.WithMessagef(err, "allocating transient %q of %s", name, g)
		}
		f.buffers[name] = NewBuffer(desc.DType, dims...)
	}
	for _, s := range g.StatesInOrder() {
		klog.V(3).Infof("interpreter: running %s of %s", s, g)
		if err := f.runState(s); err != nil {
			return errors.WithMessagef(err, "%s of %s", s, g)
		}
	}
	return nil
}

func (f *frame) evalShape(desc *data.Descriptor) ([]int, error) {
	dims := make([]int, len(desc.Shape))
	for axis, e := range desc.Shape {
		v, err := symbolic.EvalInt(e, f.bindings)
		if err != nil {
			return nil, err
		}
		dims[axis] = int(v)
	}
	return dims, nil
}

func (f *frame) checkArgument(name string, desc *data.Descriptor, b *Buffer) error {
	dims, err := f.evalShape(desc)
	if err != nil {
		return errors.WithMessagef(err, "checking argument %q", name)
	}
	if !slices.Equal(dims, b.Dims) {
		return errors.Errorf("interpreter: argument %q has dimensions %v, %s expects %v", name, b.Dims, f.g, dims)
	}
	return nil
}

func (f *frame) runState(s *sdfg.State) error {
	order := s.TopologicalSort()
	sd := s.ScopeDict()

	// Initialize the destinations of write-conflict resolved memlets.
	for _, e := range s.Edges() {
		m := e.Data
		if m.IsEmpty() || m.WCR == memlet.ReductionNone || m.WCRIdentity == nil {
			continue
		}
		dst, isAccess := s.Dst(e).(*sdfg.AccessNode)
		if !isAccess || sd.Parent(dst) != nil {
			continue
		}
		if err := f.fill(m.Data, m.Subset, *m.WCRIdentity); err != nil {
			return err
		}
	}
	return f.runScope(s, order, sd, nil, make(map[sdfg.EdgeID]float64))
}

// runScope executes the nodes directly in scope (nil for the top-level), in topological order.
func (f *frame) runScope(s *sdfg.State, order []sdfg.Node, sd sdfg.ScopeDict, scope *sdfg.MapEntry,
	values map[sdfg.EdgeID]float64) error {
	for _, n := range order {
		if sd.Parent(n) != scope {
			continue
		}
		var err error
		switch v := n.(type) {
		case *sdfg.MapEntry:
			err = f.runMap(s, order, sd, v, values)
		case *sdfg.Tasklet:
			err = f.runTasklet(s, v, values)
		case *sdfg.NestedSDFG:
			err = f.runNested(s, v)
		case *sdfg.AccessNode:
			err = f.runCopies(s, v)
		}
		if err != nil {
			return errors.WithMessagef(err, "executing %s", n)
		}
	}
	return nil
}

func (f *frame) runMap(s *sdfg.State, order []sdfg.Node, sd sdfg.ScopeDict, entry *sdfg.MapEntry,
	values map[sdfg.EdgeID]float64) error {
	m := entry.Map
	ranges, err := m.Range.Eval(f.bindings)
	if err != nil {
		return err
	}
	saved := make(map[string]int64, len(m.Params))
	for _, p := range m.Params {
		if v, found := f.bindings[p]; found {
			saved[p] = v
		}
	}
	defer func() {
		for _, p := range m.Params {
			delete(f.bindings, p)
		}
		maps.Copy(f.bindings, saved)
	}()

	var iterate func(dim int) error
	iterate = func(dim int) error {
		if dim == len(m.Params) {
			return f.runScope(s, order, sd, entry, values)
		}
		r := ranges[dim]
		for ii := int64(0); ii < r.Len(); ii++ {
			f.bindings[m.Params[dim]] = r.Start + ii*r.Step
			if err := iterate(dim + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return iterate(0)
}

// element resolves a memlet to a single element of its array.
func (f *frame) element(m *memlet.Memlet) (*Buffer, []int64, error) {
	b, found := f.buffers[m.Data]
	if !found {
		return nil, nil, errors.Errorf("unknown array %q", m.Data)
	}
	ranges, err := m.Subset.Eval(f.bindings)
	if err != nil {
		return nil, nil, err
	}
	indices := make([]int64, len(ranges))
	for axis, r := range ranges {
		if r.Len() != 1 {
			return nil, nil, errors.Errorf("memlet %s accesses more than one element: tasklet connectors must be scalars", m)
		}
		indices[axis] = r.Start
	}
	return b, indices, nil
}

func (f *frame) runTasklet(s *sdfg.State, t *sdfg.Tasklet, values map[sdfg.EdgeID]float64) error {
	if t.Language != sdfg.LanguagePython {
		return sdfg.Unsupportedf("interpreter can't run %s tasklet %s", t.Language, t)
	}
	statements, found := f.statements[t]
	if !found {
		var err error
		if statements, err = symbolic.ParseCode(t.Code); err != nil {
			return err
		}
		f.statements[t] = statements
	}

	env := make(map[string]float64, len(f.bindings)+len(t.InConnectors()))
	for name, v := range f.bindings {
		env[name] = float64(v)
	}
	for _, e := range s.InEdges(t) {
		if e.DstConn == "" || e.Data.IsEmpty() {
			continue
		}
		if sdfg.IsCodeNode(s.Src(e)) {
			env[e.DstConn] = values[e.ID()]
			continue
		}
		b, indices, err := f.element(e.Data)
		if err != nil {
			return err
		}
		if env[e.DstConn], err = b.At(indices...); err != nil {
			return err
		}
	}
	for _, st := range statements {
		v, err := symbolic.EvalFloat(st.Value, env)
		if err != nil {
			return errors.WithMessagef(err, "evaluating %q", st)
		}
		env[st.Target] = v
	}
	for _, e := range s.OutEdges(t) {
		if e.SrcConn == "" || e.Data.IsEmpty() {
			continue
		}
		v, found := env[e.SrcConn]
		if !found {
			return errors.Errorf("output connector %q is never assigned", e.SrcConn)
		}
		if sdfg.IsCodeNode(s.Dst(e)) {
			values[e.ID()] = v
			continue
		}
		b, indices, err := f.element(e.Data)
		if err != nil {
			return err
		}
		if e.Data.WCR != memlet.ReductionNone {
			current, err := b.At(indices...)
			if err != nil {
				return err
			}
			v = e.Data.WCR.Combine(current, v)
		}
		if err := b.Set(v, indices...); err != nil {
			return err
		}
	}
	return nil
}

// runNested executes a nested SDFG on views of the arrays connected to it.
func (f *frame) runNested(s *sdfg.State, n *sdfg.NestedSDFG) error {
	args := make(map[string]*Buffer)
	bind := func(conn string, m *memlet.Memlet) error {
		if _, found := args[conn]; found || m.IsEmpty() {
			return nil
		}
		b, found := f.buffers[m.Data]
		if !found {
			return errors.Errorf("unknown array %q", m.Data)
		}
		ranges, err := m.Subset.Eval(f.bindings)
		if err != nil {
			return err
		}
		view, err := b.View(ranges)
		if err != nil {
			return err
		}
		desc, found := n.SDFG.Arrays.Get(conn)
		if !found {
			return errors.Errorf("connector %q is not an array of %s", conn, n.SDFG)
		}
		if desc.Rank() < len(view.Dims) {
			_, kept := m.Subset.Squeeze()
			if len(kept) != desc.Rank() {
				return errors.Errorf("connector %q: memlet %s can't be squeezed to rank %d", conn, m, desc.Rank())
			}
			view = view.squeeze(kept)
		}
		args[conn] = view
		return nil
	}
	for _, e := range s.InEdges(n) {
		if err := bind(e.DstConn, e.Data); err != nil {
			return err
		}
	}
	for _, e := range s.OutEdges(n) {
		if err := bind(e.SrcConn, e.Data); err != nil {
			return err
		}
	}
	symbols := make(map[string]int64, len(n.SymbolMapping))
	for name, e := range n.SymbolMapping {
		v, err := symbolic.EvalInt(e, f.bindings)
		if err != nil {
			return errors.WithMessagef(err, "symbol %q of %s", name, n)
		}
		symbols[name] = v
	}
	return runSDFG(n.SDFG, args, symbols)
}

// runCopies executes the access-to-access copies arriving at a.
func (f *frame) runCopies(s *sdfg.State, a *sdfg.AccessNode) error {
	for _, e := range s.InEdges(a) {
		src, isAccess := s.Src(e).(*sdfg.AccessNode)
		if !isAccess || e.Data.IsEmpty() {
			continue
		}
		m := e.Data
		srcSubset, dstSubset := m.Subset, m.OtherSubset
		if m.Data != src.Data {
			srcSubset, dstSubset = m.OtherSubset, m.Subset
		}
		srcView, err := f.view(src.Data, srcSubset)
		if err != nil {
			return err
		}
		dstView, err := f.view(a.Data, dstSubset)
		if err != nil {
			return err
		}
		values := srcView.Values()
		if len(values) != dstView.Size() {
			return errors.Errorf("copy %s: %d elements copied into %d", e, len(values), dstView.Size())
		}
		ii := 0
		dstView.forEach(func(flatIdx int) {
			dstView.flat[flatIdx] = Round(dstView.DType, values[ii])
			ii++
		})
	}
	return nil
}

// view of the subset of an array. A nil subset is the whole array.
func (f *frame) view(name string, sub subsets.Subset) (*Buffer, error) {
	b, found := f.buffers[name]
	if !found {
		return nil, errors.Errorf("unknown array %q", name)
	}
	if sub == nil {
		return b, nil
	}
	ranges, err := sub.Eval(f.bindings)
	if err != nil {
		return nil, err
	}
	return b.View(ranges)
}

func (f *frame) fill(name string, sub subsets.Subset, value float64) error {
	view, err := f.view(name, sub)
	if err != nil {
		return err
	}
	view.forEach(func(flatIdx int) {
		view.flat[flatIdx] = Round(view.DType, value)
	})
	return nil
}
