// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package memlet defines the data movement annotation carried by dataflow edges.
package memlet

import (
	"fmt"

	"github.com/gomlx/sdfg/pkg/core/subsets"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
)

// Memlet describes the data moved along a dataflow edge: which array (Data), which part of it
// (Subset), how many accesses (Volume) and how conflicting writes are resolved (WCR).
//
// A memlet with an empty Data is an "empty memlet": a pure ordering dependency that moves no data.
type Memlet struct {
	Data   string
	Subset subsets.Subset

	// OtherSubset is the subset on the other side of an access-to-access copy, if it differs.
	OtherSubset subsets.Subset

	// Volume is the number of elements accessed. If nil, it is the number of elements of Subset.
	Volume symbolic.Expr

	// Dynamic memlets may access fewer elements than Volume: the exact count is only known at runtime.
	Dynamic bool

	WCR Reduction

	// WCRIdentity, if set, is the value the destination is initialized with before the writes.
	WCRIdentity *float64
}

// New returns a memlet accessing the subset of data.
func New(data string, subset subsets.Subset) *Memlet {
	return &Memlet{Data: data, Subset: subset}
}

// Simple returns a memlet accessing data with the subset given in slice notation (e.g. "i, 0:N").
// It panics if subsetText can't be parsed.
func Simple(data, subsetText string) *Memlet {
	return New(data, subsets.MustParse(subsetText))
}

// Empty returns an empty memlet.
func Empty() *Memlet {
	return &Memlet{}
}

// IsEmpty returns whether the memlet moves no data.
func (m *Memlet) IsEmpty() bool {
	return m == nil || m.Data == ""
}

// NumAccesses returns Volume if set, or the number of elements of the subset.
func (m *Memlet) NumAccesses() symbolic.Expr {
	if m.Volume != nil {
		return m.Volume
	}
	return m.Subset.NumElements()
}

// WithWCR sets the write-conflict resolution and its optional identity. It returns m itself.
func (m *Memlet) WithWCR(wcr Reduction, identity *float64) *Memlet {
	m.WCR = wcr
	m.WCRIdentity = identity
	return m
}

// Clone returns a copy of the memlet.
func (m *Memlet) Clone() *Memlet {
	if m == nil {
		return nil
	}
	c := *m
	c.Subset = m.Subset.Clone()
	c.OtherSubset = m.OtherSubset.Clone()
	if m.WCRIdentity != nil {
		identity := *m.WCRIdentity
		c.WCRIdentity = &identity
	}
	return &c
}

// String implements fmt.Stringer, e.g. "A[0:N, i] (CR: Sum)".
func (m *Memlet) String() string {
	if m.IsEmpty() {
		return "{}"
	}
	s := fmt.Sprintf("%s[%s]", m.Data, m.Subset)
	if m.OtherSubset != nil {
		s += fmt.Sprintf(" -> [%s]", m.OtherSubset)
	}
	if m.Dynamic {
		s += " (dynamic)"
	}
	if m.WCR != ReductionNone {
		s += fmt.Sprintf(" (CR: %s)", m.WCR)
	}
	return s
}

// Float returns a pointer to v, for WCRIdentity.
func Float(v float64) *float64 {
	return &v
}
