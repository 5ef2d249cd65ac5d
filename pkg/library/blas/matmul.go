// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package blas implements BLAS library nodes, currently the matrix multiplication MatMul.
//
// Importing the package registers the MatMul kind with three implementations:
//
//   - "pure": a nested SDFG computing the product with a map over (i, j, k) and a sum reduction.
//   - "MKL": a call to cblas_?gemm (or cblas_?gemm_batch_strided), requires the IntelMKL environment.
//   - "cuBLAS": a call to cublas?gemm (or cublas?gemmStridedBatched), requires the cuBLAS environment.
package blas

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/library"
	"github.com/gomlx/sdfg/pkg/support/xslices"
)

// MatMulKind is the library node kind of the matrix multiplication.
const MatMulKind = "MatMul"

// Connectors of a MatMul node: C = A·B.
const (
	ConnA = "_a"
	ConnB = "_b"
	ConnC = "_c"
)

// Implementation names of MatMul.
const (
	ImplPure   = library.Pure
	ImplMKL    = "MKL"
	ImplCuBLAS = "cuBLAS"
)

// MatMul is the registered library kind of the matrix multiplication.
var MatMul = library.RegisterKind(&library.Kind{
	Name:     MatMulKind,
	Inputs:   []string{ConnA, ConnB},
	Outputs:  []string{ConnC},
	Validate: Validate,
})

func init() {
	MatMul.
		AddImplementation(&library.Implementation{Name: ImplPure, Expand: ExpandPure}).
		AddImplementation(&library.Implementation{Name: ImplMKL, Environments: []string{IntelMKL.Name}, Expand: ExpandMKL}).
		AddImplementation(&library.Implementation{Name: ImplCuBLAS, Environments: []string{CuBLAS.Name}, Expand: ExpandCuBLAS})
}

// NewMatMul creates a MatMul library node. dtype may be dtypes.InvalidDType, in which case the element type
// is taken from the inputs at expansion time.
func NewMatMul(name string, dtype dtypes.DType) *sdfg.LibraryNode {
	node := MatMul.NewNode(name)
	node.DType = dtype
	return node
}

// AddMatMul creates a MatMul library node and adds it to state.
func AddMatMul(state *sdfg.State, name string, dtype dtypes.DType) *sdfg.LibraryNode {
	return state.AddLibraryNode(NewMatMul(name, dtype))
}

// operand of a MatMul node, as seen from the node.
type operand struct {
	edge *sdfg.Edge

	// desc of the data of the edge's memlet.
	desc *data.Descriptor

	// size of the memlet's subset, with the dimensions of size 1 removed.
	size []symbolic.Expr
}

func newOperand(g *sdfg.SDFG, node *sdfg.LibraryNode, e *sdfg.Edge) (operand, error) {
	if e.Data.IsEmpty() {
		return operand{}, sdfg.Validationf("%s: empty memlet on edge %s", node, e)
	}
	desc, found := g.Arrays.Get(e.Data.Data)
	if !found {
		return operand{}, sdfg.Validationf("%s: edge %s refers to unknown array %q", node, e, e.Data.Data)
	}
	squeezed, _ := e.Data.Subset.Squeeze()
	return operand{edge: e, desc: desc, size: squeezed.Size()}, nil
}

// rows returns the second to last dimension of the squeezed size, or nil for vectors.
func (o operand) rows() symbolic.Expr {
	if len(o.size) < 2 {
		return nil
	}
	return o.size[len(o.size)-2]
}

func (o operand) cols() symbolic.Expr {
	return xslices.Last(o.size)
}

// operands returns the a, b and c operands of the node. It checks the number of edges and connectors.
func operands(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) (a, b, c operand, err error) {
	inEdges := state.InEdges(node)
	if len(inEdges) != 2 {
		err = sdfg.Validationf("%s: expected exactly two inputs to matrix-matrix product, got %d", node, len(inEdges))
		return
	}
	outEdges := state.OutEdges(node)
	if len(outEdges) != 1 {
		err = sdfg.Validationf("%s: expected exactly one output from matrix-matrix product, got %d", node, len(outEdges))
		return
	}
	var foundA, foundB bool
	for _, e := range inEdges {
		switch e.DstConn {
		case ConnA:
			if a, err = newOperand(g, node, e); err != nil {
				return
			}
			foundA = true
		case ConnB:
			if b, err = newOperand(g, node, e); err != nil {
				return
			}
			foundB = true
		}
	}
	if !foundA || !foundB {
		err = sdfg.Validationf("%s: matrix multiplication input connectors %q and %q not found", node, ConnA, ConnB)
		return
	}
	if outEdges[0].SrcConn != ConnC {
		err = sdfg.Validationf("%s: matrix multiplication output connector %q not found", node, ConnC)
		return
	}
	c, err = newOperand(g, node, outEdges[0])
	return
}

// Validate checks the connectors and shapes of a MatMul node in state of g:
// exactly two inputs and one output; inputs of rank 2 after removing dimensions of size 1 (or 3, if a
// batch dimension is detected); inputs in the same storage; agreeing contracted dimension; output shape
// [batch?, rows of a, cols of b].
//
// It has no side effects.
func Validate(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) error {
	a, b, c, err := operands(g, state, node)
	if err != nil {
		return err
	}
	if a.desc.Storage != b.desc.Storage {
		return sdfg.Validationf("%s: input matrices must have same storage, got %s and %s",
			node, a.desc.Storage, b.desc.Storage)
	}
	batch, err := BatchOptions(a.desc, b.desc, c.desc)
	if err != nil {
		return err
	}
	for _, o := range []operand{a, b} {
		rank := len(o.size)
		if rank != 2 && (batch == nil || rank != 3) {
			return sdfg.Validationf("%s: matrix-matrix product only supported on matrices, %q is accessed with %d dimension(s)",
				node, o.edge.DstConn, rank)
		}
	}
	if !symbolic.Equal(a.cols(), b.rows()) {
		return sdfg.Validationf("%s: inputs to matrix-matrix product must agree in the k-dimension, got %s and %s",
			node, a.cols(), b.rows())
	}
	want := []symbolic.Expr{a.rows(), b.cols()}
	if batch != nil {
		want = append([]symbolic.Expr{batch.Count}, want...)
	}
	if len(c.size) != 2 && len(c.size) != 3 {
		return sdfg.Validationf("%s: matrix-matrix product only supported on matrices, output has %d dimension(s)",
			node, len(c.size))
	}
	if !equalExprs(c.size, want) {
		if batch != nil {
			return sdfg.Validationf("%s: output to batch matrix-matrix product must agree in the b, m and n dimensions: got %v, wanted %v",
				node, c.size, want)
		}
		return sdfg.Validationf("%s: output to matrix-matrix product must agree in the m and n dimensions: got %v, wanted %v",
			node, c.size, want)
	}
	return nil
}

func equalExprs(a, b []symbolic.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for ii := range a {
		if !symbolic.Equal(a[ii], b[ii]) {
			return false
		}
	}
	return true
}

// elementType returns the element type of the multiplication: the node's, or the inputs' if not set.
func elementType(node *sdfg.LibraryNode, a, b operand) (dtypes.DType, error) {
	if node.DType != dtypes.InvalidDType {
		return node.DType, nil
	}
	if a.desc.DType != b.desc.DType {
		return dtypes.InvalidDType, sdfg.Validationf("%s: data type must be set to expand inputs of types %s and %s",
			node, a.desc.DType, b.desc.DType)
	}
	return a.desc.DType, nil
}
