// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interp

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Buffer holds the values of an array: a strided view over a flat slice of float64.
//
// Values are stored as float64 and rounded to the precision of DType on every store, so float16 and
// float32 arrays behave as their native types would. Views created for nested SDFGs share the flat data
// of the buffer they were taken from.
type Buffer struct {
	DType   dtypes.DType
	Dims    []int
	Strides []int
	Offset  int

	flat []float64
}

// NewBuffer allocates a zero-filled row-major buffer.
func NewBuffer(dtype dtypes.DType, dims ...int) *Buffer {
	b := &Buffer{
		DType:   dtype,
		Dims:    slices.Clone(dims),
		Strides: make([]int, len(dims)),
		flat:    make([]float64, xslices.Product(dims)),
	}
	stride := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		b.Strides[axis] = stride
		stride *= dims[axis]
	}
	return b
}

// FromValues creates a buffer with the given values, in row-major order.
// It panics if the number of values doesn't match the dimensions.
func FromValues(dtype dtypes.DType, dims []int, values []float64) *Buffer {
	b := NewBuffer(dtype, dims...)
	if len(values) != len(b.flat) {
		exceptions.Panicf("FromValues: %d values given for dimensions %v (%d elements)", len(values), dims, len(b.flat))
	}
	for ii, v := range values {
		b.flat[ii] = Round(dtype, v)
	}
	return b
}

// Size returns the number of elements of the buffer.
func (b *Buffer) Size() int {
	return xslices.Product(b.Dims)
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%s%v)", b.DType, b.Dims)
}

// Values returns a copy of the values, in row-major order.
func (b *Buffer) Values() []float64 {
	values := make([]float64, 0, b.Size())
	b.forEach(func(flatIdx int) {
		values = append(values, b.flat[flatIdx])
	})
	return values
}

// forEach calls fn with the flat index of every element, in row-major order.
func (b *Buffer) forEach(fn func(flatIdx int)) {
	if b.Size() == 0 {
		return
	}
	indices := make([]int, len(b.Dims))
	for {
		flatIdx := b.Offset
		for axis, idx := range indices {
			flatIdx += idx * b.Strides[axis]
		}
		fn(flatIdx)
		axis := len(indices) - 1
		for ; axis >= 0; axis-- {
			indices[axis]++
			if indices[axis] < b.Dims[axis] {
				break
			}
			indices[axis] = 0
		}
		if axis < 0 {
			return
		}
	}
}

func (b *Buffer) flatIndex(indices []int64) (int, error) {
	if len(indices) != len(b.Dims) {
		return 0, errors.Errorf("%s indexed with %d indices", b, len(indices))
	}
	flatIdx := b.Offset
	for axis, idx := range indices {
		if idx < 0 || int(idx) >= b.Dims[axis] {
			return 0, errors.Errorf("index %v out of bounds for %s", indices, b)
		}
		flatIdx += int(idx) * b.Strides[axis]
	}
	return flatIdx, nil
}

// At returns the element at the given indices.
func (b *Buffer) At(indices ...int64) (float64, error) {
	flatIdx, err := b.flatIndex(indices)
	if err != nil {
		return 0, err
	}
	return b.flat[flatIdx], nil
}

// Set stores the element at the given indices, rounded to the buffer's dtype.
func (b *Buffer) Set(value float64, indices ...int64) error {
	flatIdx, err := b.flatIndex(indices)
	if err != nil {
		return err
	}
	b.flat[flatIdx] = Round(b.DType, value)
	return nil
}

// View returns a buffer sharing the data of b, restricted to the given concrete ranges.
func (b *Buffer) View(ranges []subsets.Concrete) (*Buffer, error) {
	if len(ranges) != len(b.Dims) {
		return nil, errors.Errorf("view of %s with %d ranges", b, len(ranges))
	}
	view := &Buffer{DType: b.DType, Offset: b.Offset, flat: b.flat}
	for axis, r := range ranges {
		if r.Len() > 0 && (r.Start < 0 || r.End >= int64(b.Dims[axis])) {
			return nil, errors.Errorf("range %d:%d of axis %d out of bounds for %s", r.Start, r.End+1, axis, b)
		}
		view.Offset += int(r.Start) * b.Strides[axis]
		view.Dims = append(view.Dims, int(r.Len()))
		view.Strides = append(view.Strides, int(r.Step)*b.Strides[axis])
	}
	return view, nil
}

// squeeze returns a view with only the kept axes: the others must have dimension 1.
func (b *Buffer) squeeze(keep []int) *Buffer {
	return &Buffer{
		DType:   b.DType,
		Dims:    xslices.Map(keep, func(axis int) int { return b.Dims[axis] }),
		Strides: xslices.Map(keep, func(axis int) int { return b.Strides[axis] }),
		Offset:  b.Offset,
		flat:    b.flat,
	}
}

// Round converts v to the precision of dtype.
func Round(dtype dtypes.DType, v float64) float64 {
	switch dtype {
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case dtypes.Float32:
		return float64(float32(v))
	case dtypes.Bool:
		if v != 0 {
			return 1
		}
		return 0
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		return math.Trunc(v)
	}
	return v
}

// isSupported returns whether the interpreter can represent values of dtype.
func isSupported(dtype dtypes.DType) bool {
	return dtype != dtypes.InvalidDType && !dtype.IsComplex()
}
