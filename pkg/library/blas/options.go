// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blas

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
)

// Batch holds the parameters of a batched matrix multiplication.
type Batch struct {
	// StrideA, StrideB and StrideC are the strides of the batch axis of each operand, 0 if the operand
	// is not batched (the same matrix is used for every batch element).
	StrideA, StrideB, StrideC symbolic.Expr

	// Count is the batch size.
	Count symbolic.Expr
}

// BatchOptions detects whether a matrix multiplication of arrays a and b into c is batched, that is, whether
// any of them has a leading batch axis. c is optional.
//
// It returns nil if both a and b (and c) have rank ≤ 2, or if no operand has rank 3.
// It returns an error wrapping sdfg.ErrUnsupportedConfiguration if an operand has rank > 3, or if the
// batch sizes of the operands disagree.
func BatchOptions(a, b, c *data.Descriptor) (*Batch, error) {
	for _, desc := range []*data.Descriptor{a, b, c} {
		if desc != nil && desc.Rank() > 3 {
			return nil, sdfg.Unsupportedf("tensor dimensions too large for (batched) matrix multiplication: rank %d",
				desc.Rank())
		}
	}
	if a.Rank() <= 2 && b.Rank() <= 2 {
		return nil, nil
	}

	batch := &Batch{StrideA: symbolic.Int(0), StrideB: symbolic.Int(0), StrideC: symbolic.Int(0)}
	for _, operand := range []struct {
		desc   *data.Descriptor
		stride *symbolic.Expr
	}{{a, &batch.StrideA}, {b, &batch.StrideB}, {c, &batch.StrideC}} {
		if operand.desc == nil || operand.desc.Rank() != 3 {
			continue
		}
		if batch.Count != nil && !symbolic.Equal(batch.Count, operand.desc.Shape[0]) {
			return nil, sdfg.Unsupportedf("batch size mismatch for matrix multiplication: %s and %s",
				batch.Count, operand.desc.Shape[0])
		}
		batch.Count = operand.desc.Shape[0]
		*operand.stride = operand.desc.Strides[0]
	}
	if batch.Count == nil {
		return nil, nil
	}
	return batch, nil
}

// Transposition flags of GEMM calls.
const (
	NoTranspose = "N"
	Transpose   = "T"
)

// Gemm holds the layout arguments of a column-major GEMM call computing C = A·B from the data descriptors.
//
// If Swap is true, C is row-major: the call must compute Cᵀ = Bᵀ·Aᵀ instead, swapping the operands (and the
// M and N dimensions). TransA, TransB, LDA and LDB always refer to A and B, before any swap.
type Gemm struct {
	Swap           bool
	TransA, TransB string
	LDA, LDB, LDC  symbolic.Expr
}

// matrixLayout returns whether the matrix formed by the last two axes of desc is stored in row-major order,
// and its leading dimension.
func matrixLayout(name string, desc *data.Descriptor) (rowMajor bool, ld symbolic.Expr, err error) {
	if desc.Rank() < 2 {
		return false, nil, sdfg.Unsupportedf("GEMM operand %s is not a matrix: rank %d", name, desc.Rank())
	}
	strides := desc.Strides[desc.Rank()-2:]
	one := symbolic.Int(1)
	switch {
	case symbolic.Equal(strides[1], one):
		return true, strides[0], nil
	case symbolic.Equal(strides[0], one):
		return false, strides[1], nil
	}
	return false, nil, sdfg.Unsupportedf("GEMM operand %s has no contiguous axis: strides %v", name, strides)
}

// GemmOptions returns the argument order, transposition flags and leading dimensions of a column-major GEMM
// call for the arrays a, b and c. Batched arrays are handled by using their last two axes.
//
// It returns an error wrapping sdfg.ErrUnsupportedConfiguration if one of the matrices has no unit stride.
func GemmOptions(a, b, c *data.Descriptor) (*Gemm, error) {
	aRowMajor, lda, err := matrixLayout("a", a)
	if err != nil {
		return nil, err
	}
	bRowMajor, ldb, err := matrixLayout("b", b)
	if err != nil {
		return nil, err
	}
	cRowMajor, ldc, err := matrixLayout("c", c)
	if err != nil {
		return nil, err
	}
	trans := func(sameLayoutAsC bool) string {
		if sameLayoutAsC {
			return NoTranspose
		}
		return Transpose
	}
	return &Gemm{
		Swap:   cRowMajor,
		TransA: trans(aRowMajor == cRowMajor),
		TransB: trans(bRowMajor == cRowMajor),
		LDA:    lda,
		LDB:    ldb,
		LDC:    ldc,
	}, nil
}

// blasType returns the BLAS prefix of the routines for dtype: "S", "D", "C", "Z" or "H".
func blasType(dtype dtypes.DType) (string, bool) {
	switch dtype {
	case dtypes.Float16:
		return "H", true
	case dtypes.Float32:
		return "S", true
	case dtypes.Float64:
		return "D", true
	case dtypes.Complex64:
		return "C", true
	case dtypes.Complex128:
		return "Z", true
	}
	return "", false
}
