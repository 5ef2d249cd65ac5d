// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package memlet

import (
	"math"

	"github.com/gomlx/exceptions"
)

// Reduction is the write-conflict resolution of a memlet: how concurrent writes to the same
// element are combined.
type Reduction int

//go:generate go tool enumer -type=Reduction -trimprefix=Reduction -json -text -output=gen_reduction_enumer.go reduction.go

const (
	// ReductionNone means writes overwrite the destination.
	ReductionNone Reduction = iota
	ReductionSum
	ReductionProduct
	ReductionMin
	ReductionMax
)

// Combine the current value of the destination with the written value.
func (r Reduction) Combine(current, value float64) float64 {
	switch r {
	case ReductionNone:
		return value
	case ReductionSum:
		return current + value
	case ReductionProduct:
		return current * value
	case ReductionMin:
		return math.Min(current, value)
	case ReductionMax:
		return math.Max(current, value)
	}
	exceptions.Panicf("unknown reduction %s", r)
	return 0
}

// Identity returns the neutral element of the reduction.
// It panics for ReductionNone.
func (r Reduction) Identity() float64 {
	switch r {
	case ReductionSum:
		return 0
	case ReductionProduct:
		return 1
	case ReductionMin:
		return math.Inf(1)
	case ReductionMax:
		return math.Inf(-1)
	}
	exceptions.Panicf("reduction %s has no identity", r)
	return 0
}
