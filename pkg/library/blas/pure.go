// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blas

import (
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/support/sets"
)

// Names used inside the nested SDFG of the pure expansion.
const (
	pureTasklet    = "_MatMult_"
	pureBatchParam = "__ib"
)

// ExpandPure expands a MatMul node into a nested SDFG computing the product with a map over the output and
// contracted indices (__i0, __i1, __i2), and a sum with identity 0 into _c. Batched multiplications get an
// extra leading map parameter over the batch.
//
// The nested arrays _a, _b and _c take their shapes from the (squeezed) subsets connected to the node, their
// element types from the outer arrays, and the storage of the inputs (Validate checks they agree).
func ExpandPure(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) (sdfg.Node, error) {
	a, b, c, err := operands(g, state, node)
	if err != nil {
		return nil, err
	}
	batch, err := BatchOptions(a.desc, b.desc, c.desc)
	if err != nil {
		return nil, err
	}
	storage := a.desc.Storage
	m, k, n := a.rows(), a.cols(), b.cols()

	nested := sdfg.New(node.Name + "_sdfg")
	s := nested.AddState(node.Name + "_state")
	params := []sdfg.MapParam{
		{Name: "__i0", Range: "0:" + m.String()},
		{Name: "__i1", Range: "0:" + n.String()},
		{Name: "__i2", Range: "0:" + k.String()},
	}
	if batch != nil {
		params = append([]sdfg.MapParam{{Name: pureBatchParam, Range: "0:" + batch.Count.String()}}, params...)
	}

	// addOperand declares the nested array of an operand and returns the indices it is accessed with.
	addOperand := func(name string, o operand, shape []symbolic.Expr, indices ...string) string {
		if batch != nil && len(o.size) == 3 {
			shape = append([]symbolic.Expr{batch.Count}, shape...)
			indices = append([]string{pureBatchParam}, indices...)
		}
		desc := data.NewArray(o.desc.DType, shape...)
		desc.Storage = storage
		nested.AddArray(name, desc)
		return strings.Join(indices, ", ")
	}
	indicesA := addOperand(ConnA, a, []symbolic.Expr{m, k}, "__i0", "__i2")
	indicesB := addOperand(ConnB, b, []symbolic.Expr{k, n}, "__i2", "__i1")
	indicesC := addOperand(ConnC, c, []symbolic.Expr{m, n}, "__i0", "__i1")

	s.AddMappedTasklet(pureTasklet, params,
		[]sdfg.Connection{
			{Conn: "__a", Memlet: memlet.Simple(ConnA, indicesA)},
			{Conn: "__b", Memlet: memlet.Simple(ConnB, indicesB)},
		},
		"__c = __a * __b",
		[]sdfg.Connection{
			{Conn: "__c", Memlet: memlet.Simple(ConnC, indicesC).WithWCR(memlet.ReductionSum, memlet.Float(0))},
		},
		true)

	// Sizes are passed through from the outer SDFG.
	symbols := sets.Make[string]()
	for _, name := range nested.Arrays.Names() {
		symbols.Insert(nested.Array(name).Symbols()...)
	}
	mapping := make(map[string]symbolic.Expr, len(symbols))
	for _, symbol := range sets.Sorted(symbols) {
		nested.AddSymbol(symbol, dtypes.Int64)
		mapping[symbol] = symbolic.Symbol(symbol)
	}
	return sdfg.NewNestedSDFG(node.Name, nested, node.InConnectors(), node.OutConnectors(), mapping), nil
}
