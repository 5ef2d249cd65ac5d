// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package interstate implements transformations that work across states, or on whole SDFGs.
package interstate

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/transformation"
	"k8s.io/klog/v2"
)

// GlobalToLocalName is the registered name of GlobalToLocal.
const GlobalToLocalName = "GlobalToLocal"

// Parameters of GlobalToLocal, read from the "/GlobalToLocal" scope.
const (
	// ParamFrom is the storage class (string) of the arrays to reclassify. Default "FPGAGlobal".
	ParamFrom = "from"

	// ParamTo is the new storage class (string). Default "FPGALocal".
	ParamTo = "to"
)

func init() {
	transformation.Register(GlobalToLocalName, func(opts *config.Options) transformation.Transformation {
		return NewGlobalToLocal(opts)
	})
}

// GlobalToLocal moves transient arrays from a global storage class (off-chip memory) to a local one
// (on-chip memory), when they are not shared across states and their size is known at compile time.
//
// It matches whole SDFGs, and converts the arrays of the root SDFG and of all its nested SDFGs at once.
// Arrays of nested SDFGs aliasing a converted array are converted too.
type GlobalToLocal struct {
	From, To data.StorageType

	// Applied is the number of arrays converted so far.
	Applied int

	opts *config.Options
}

var _ transformation.Transformation = (*GlobalToLocal)(nil)

// NewGlobalToLocal creates the transformation configured by the "/GlobalToLocal" scope of opts.
// It panics if the configured storage classes are not valid.
func NewGlobalToLocal(opts *config.Options) *GlobalToLocal {
	scope := config.JoinScope(config.RootScope, GlobalToLocalName)
	parse := func(key, defaultValue string) data.StorageType {
		name := config.GetParamOr(opts, scope, key, defaultValue)
		storage, err := data.StorageTypeString(name)
		if err != nil {
			exceptions.Panicf("%s: invalid storage %q for parameter %q, valid values are %q",
				GlobalToLocalName, name, key, data.StorageTypeStrings())
		}
		return storage
	}
	return &GlobalToLocal{
		From: parse(ParamFrom, data.StorageFPGAGlobal.String()),
		To:   parse(ParamTo, data.StorageFPGALocal.String()),
		opts: opts,
	}
}

// Name implements transformation.Transformation.
func (x *GlobalToLocal) Name() string { return GlobalToLocalName }

// AnnotatesMemlets implements transformation.Transformation.
func (x *GlobalToLocal) AnnotatesMemlets() bool { return true }

// Expressions implements transformation.Transformation: it matches whole SDFGs.
func (x *GlobalToLocal) Expressions() []*transformation.Pattern {
	return []*transformation.Pattern{{}}
}

// MatchString implements transformation.MatchStringer.
func (x *GlobalToLocal) MatchString(m *transformation.Match) string {
	return GlobalToLocalName + " of " + m.SDFG.Name
}

// CanBeApplied implements transformation.Transformation. Matches on nested SDFGs are not applicable,
// since the match on the root covers them.
func (x *GlobalToLocal) CanBeApplied(m *transformation.Match, strict bool) bool {
	return !m.Nested && len(x.candidates(m.SDFG)) > 0
}

// candidates returns the arrays to convert, in document order.
func (x *GlobalToLocal) candidates(root *sdfg.SDFG) []sdfg.ArrayInContext {
	var found []sdfg.ArrayInContext
	shared := make(map[*sdfg.SDFG][]string)
	for _, array := range root.ArraysRecursive() {
		desc := array.Desc
		if !desc.Transient || desc.Storage != x.From {
			continue
		}
		if _, ok := shared[array.SDFG]; !ok {
			shared[array.SDFG] = array.SDFG.SharedTransients()
		}
		if slices.Contains(shared[array.SDFG], array.Name) {
			continue
		}
		constants := maps.Clone(root.Constants)
		maps.Copy(constants, array.SDFG.Constants)
		if _, ok := x.opts.ResolveToConstant(desc.TotalSize, constants); !ok {
			continue
		}
		found = append(found, array)
	}
	return found
}

// Apply implements transformation.Transformation.
func (x *GlobalToLocal) Apply(m *transformation.Match) {
	count := 0
	for _, array := range x.candidates(m.SDFG) {
		array.Desc.Storage = x.To
		count++
		convertAliases(array.SDFG, array.Name, x.To)
	}
	x.Applied += count
	if x.opts.DebugPrint() {
		klog.Infof("Applied %d GlobalToLocal.", count)
	}
}

// convertAliases sets the storage of the arrays of nested SDFGs of g connected to the array name.
func convertAliases(g *sdfg.SDFG, name string, storage data.StorageType) {
	for _, s := range g.States() {
		for _, n := range s.Nodes() {
			nested, ok := n.(*sdfg.NestedSDFG)
			if !ok {
				continue
			}
			for _, e := range s.InEdges(nested) {
				if a, found := s.FindInputAccess(e); found && a.Data == name {
					convertAlias(nested, e.DstConn, storage)
				}
			}
			for _, e := range s.OutEdges(nested) {
				if a, found := s.FindOutputAccess(e); found && a.Data == name {
					convertAlias(nested, e.SrcConn, storage)
				}
			}
		}
	}
}

func convertAlias(nested *sdfg.NestedSDFG, conn string, storage data.StorageType) {
	desc, found := nested.SDFG.Arrays.Get(conn)
	if !found || desc.Storage == storage {
		return
	}
	desc.Storage = storage
	convertAliases(nested.SDFG, conn, storage)
}
