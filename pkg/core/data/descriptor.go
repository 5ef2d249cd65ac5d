// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package data holds the data descriptors of an SDFG: the element type, symbolic shape and memory
// layout of each named array, and the registry that maps names to descriptors.
package data

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/support/sets"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Descriptor describes an array (or scalar) container.
//
// Strides are given in elements, not bytes. Offset is the index of the first element along each axis,
// used by views of larger allocations. TotalSize is the number of elements of the allocation, which may
// be larger than the product of Shape when strides are padded.
type Descriptor struct {
	DType     dtypes.DType
	Shape     []symbolic.Expr
	Strides   []symbolic.Expr
	Offset    []symbolic.Expr
	TotalSize symbolic.Expr
	Storage   StorageType
	Lifetime  Lifetime

	// Transient arrays are allocated by the SDFG itself, as opposed to being passed by the caller.
	Transient bool

	// Scalar descriptors have a Shape of [1] and are accessed without indices.
	Scalar bool
}

// NewArray returns a descriptor for a row-major array with the given shape.
func NewArray(dtype dtypes.DType, shape ...symbolic.Expr) *Descriptor {
	d := &Descriptor{
		DType: dtype,
		Shape: slices.Clone(shape),
	}
	d.Strides = RowMajorStrides(shape)
	d.Offset = xslices.Map(shape, func(symbolic.Expr) symbolic.Expr { return symbolic.Int(0) })
	d.TotalSize = Product(shape)
	return d
}

// NewArrayFromInts is like NewArray, but takes a concrete shape.
func NewArrayFromInts(dtype dtypes.DType, dims ...int) *Descriptor {
	return NewArray(dtype, xslices.Map(dims, func(dim int) symbolic.Expr { return symbolic.Int(int64(dim)) })...)
}

// NewScalar returns a descriptor of a scalar.
func NewScalar(dtype dtypes.DType) *Descriptor {
	d := NewArray(dtype, symbolic.Int(1))
	d.Scalar = true
	return d
}

// RowMajorStrides returns the strides (in elements) of a dense row-major array of the given shape.
func RowMajorStrides(shape []symbolic.Expr) []symbolic.Expr {
	strides := make([]symbolic.Expr, len(shape))
	var stride symbolic.Expr = symbolic.Int(1)
	for axis := len(shape) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride = symbolic.Mul(stride, shape[axis])
	}
	return strides
}

// Product returns the product of the expressions, 1 if empty.
func Product(exprs []symbolic.Expr) symbolic.Expr {
	var p symbolic.Expr = symbolic.Int(1)
	for _, e := range exprs {
		p = symbolic.Mul(p, e)
	}
	return p
}

// Rank returns the number of axes.
func (d *Descriptor) Rank() int {
	return len(d.Shape)
}

// Clone returns a copy of the descriptor. Expressions are immutable and shared.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.Shape = slices.Clone(d.Shape)
	c.Strides = slices.Clone(d.Strides)
	c.Offset = slices.Clone(d.Offset)
	return &c
}

// FullSubset returns the subset covering the whole array.
func (d *Descriptor) FullSubset() subsets.Subset {
	return subsets.FromShape(d.Shape)
}

// NumElements returns the product of the shape.
func (d *Descriptor) NumElements() symbolic.Expr {
	return Product(d.Shape)
}

// Symbols returns the sorted free symbols used by shape, strides, offsets and total size.
func (d *Descriptor) Symbols() []string {
	found := sets.Make[string]()
	for _, exprs := range [][]symbolic.Expr{d.Shape, d.Strides, d.Offset, {d.TotalSize}} {
		for _, e := range exprs {
			if e != nil {
				found.Insert(symbolic.Symbols(e)...)
			}
		}
	}
	return sets.Sorted(found)
}

// Check the internal consistency of the descriptor.
func (d *Descriptor) Check() error {
	if d.DType == dtypes.InvalidDType {
		return errors.New("invalid dtype")
	}
	if len(d.Shape) == 0 {
		return errors.New("descriptor has no axes (scalars have shape [1])")
	}
	if len(d.Strides) != len(d.Shape) {
		return errors.Errorf("%d strides given for %d axes", len(d.Strides), len(d.Shape))
	}
	if len(d.Offset) != len(d.Shape) {
		return errors.Errorf("%d offsets given for %d axes", len(d.Offset), len(d.Shape))
	}
	if d.TotalSize == nil {
		return errors.New("total size not set")
	}
	if d.Scalar && (len(d.Shape) != 1 || !symbolic.Equal(d.Shape[0], symbolic.Int(1))) {
		return errors.Errorf("scalar with shape %s", exprList(d.Shape))
	}
	return nil
}

// String implements fmt.Stringer.
func (d *Descriptor) String() string {
	var parts []string
	if d.Scalar {
		parts = append(parts, "Scalar", d.DType.String())
	} else {
		parts = append(parts, "Array", d.DType.String()+exprList(d.Shape))
	}
	if d.Storage != StorageDefault {
		parts = append(parts, d.Storage.String())
	}
	if d.Transient {
		parts = append(parts, "transient")
	}
	return strings.Join(parts, " ")
}

func exprList(exprs []symbolic.Expr) string {
	return fmt.Sprintf("[%s]", strings.Join(xslices.Map(exprs, symbolic.Expr.String), ", "))
}
