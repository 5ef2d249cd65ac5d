// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package subsets implements multi-dimensional index ranges over arrays.
//
// A Subset is a list of Range, one per array axis. Ranges are inclusive on both ends, but
// their textual form follows the usual slice notation: "a:b" selects [a, b-1], and "a:b:s"
// adds a step. A single expression "i" selects one index.
package subsets

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Range over one axis: indices Start, Start+Step, ... up to End (inclusive).
type Range struct {
	Start, End, Step symbolic.Expr
}

// NewRange returns the range [start, end] with the given step.
func NewRange(start, end, step symbolic.Expr) Range {
	return Range{Start: start, End: end, Step: step}
}

// Index returns the range of a single index.
func Index(e symbolic.Expr) Range {
	return Range{Start: e, End: e, Step: symbolic.Int(1)}
}

// Span returns the range [0, size-1] with step 1.
func Span(size symbolic.Expr) Range {
	return Range{Start: symbolic.Int(0), End: symbolic.Sub(size, symbolic.Int(1)), Step: symbolic.Int(1)}
}

// Size returns the number of indices in the range: (End - Start + Step) // Step.
func (r Range) Size() symbolic.Expr {
	return symbolic.FloorDiv(symbolic.Add(symbolic.Sub(r.End, r.Start), r.Step), r.Step)
}

// IsIndex returns whether the range selects exactly one index.
func (r Range) IsIndex() bool {
	return symbolic.Equal(r.Start, r.End)
}

// Equal returns whether both ranges are symbolically the same.
func (r Range) Equal(other Range) bool {
	return symbolic.Equal(r.Start, other.Start) && symbolic.Equal(r.End, other.End) && symbolic.Equal(r.Step, other.Step)
}

// Offset shifts the range by other's start: added, or subtracted if negative is true.
func (r Range) Offset(other Range, negative bool) Range {
	shift := symbolic.Add
	if negative {
		shift = symbolic.Sub
	}
	return Range{Start: shift(r.Start, other.Start), End: shift(r.End, other.Start), Step: r.Step}
}

// String returns the slice notation of the range.
func (r Range) String() string {
	if r.IsIndex() {
		return r.Start.String()
	}
	s := r.Start.String() + ":" + symbolic.Add(r.End, symbolic.Int(1)).String()
	if c, ok := symbolic.Constant(r.Step); !ok || c != 1 {
		s += ":" + r.Step.String()
	}
	return s
}

// Concrete is a range with resolved integer bounds.
type Concrete struct {
	Start, End, Step int64
}

// Len returns the number of indices of a concrete range.
func (c Concrete) Len() int64 {
	if c.Step <= 0 || c.End < c.Start {
		return 0
	}
	return (c.End-c.Start)/c.Step + 1
}

// Eval resolves the range to concrete integer bounds.
func (r Range) Eval(bindings map[string]int64) (c Concrete, err error) {
	if c.Start, err = symbolic.EvalInt(r.Start, bindings); err != nil {
		return
	}
	if c.End, err = symbolic.EvalInt(r.End, bindings); err != nil {
		return
	}
	c.Step, err = symbolic.EvalInt(r.Step, bindings)
	return
}

// Subset is a list of ranges, one per array axis.
type Subset []Range

// FromShape returns the subset covering a full array of the given shape.
func FromShape(shape []symbolic.Expr) Subset {
	return xslices.Map(shape, Span)
}

// Indices returns the subset selecting a single element.
func Indices(indices ...symbolic.Expr) Subset {
	return xslices.Map(indices, Index)
}

// Dims returns the number of dimensions.
func (s Subset) Dims() int { return len(s) }

// Size returns the number of indices of each dimension.
func (s Subset) Size() []symbolic.Expr {
	return xslices.Map(s, func(r Range) symbolic.Expr { return r.Size() })
}

// NumElements returns the total number of elements: the product of Size.
func (s Subset) NumElements() symbolic.Expr {
	var total symbolic.Expr = symbolic.Int(1)
	for _, r := range s {
		total = symbolic.Mul(total, r.Size())
	}
	return total
}

// Clone returns a copy of the subset. Expressions are immutable and shared.
func (s Subset) Clone() Subset {
	if s == nil {
		return nil
	}
	return append(Subset{}, s...)
}

// Equal returns whether both subsets are symbolically the same.
func (s Subset) Equal(other Subset) bool {
	if len(s) != len(other) {
		return false
	}
	for ii := range s {
		if !s[ii].Equal(other[ii]) {
			return false
		}
	}
	return true
}

// Squeeze removes the dimensions of size 1, returning the remaining subset and the indices of the kept
// dimensions. If every dimension has size 1, the last one is kept.
func (s Subset) Squeeze() (squeezed Subset, kept []int) {
	for ii, r := range s {
		if c, ok := symbolic.Constant(r.Size()); ok && c == 1 {
			continue
		}
		squeezed = append(squeezed, r)
		kept = append(kept, ii)
	}
	if len(squeezed) == 0 && len(s) > 0 {
		last := len(s) - 1
		return Subset{s[last]}, []int{last}
	}
	return
}

// Offset shifts each range by the start of the corresponding range of other (subtracted if negative).
// If other has fewer dimensions, it applies to the trailing dimensions and the leading ones are kept.
// It panics if other has more dimensions than s.
func (s Subset) Offset(other Subset, negative bool) Subset {
	if len(other) > len(s) {
		exceptions.Panicf("cannot offset subset %q (%d dims) by subset %q (%d dims)", s, len(s), other, len(other))
	}
	lead := len(s) - len(other)
	result := s.Clone()
	for ii, r := range other {
		result[lead+ii] = s[lead+ii].Offset(r, negative)
	}
	return result
}

// Unsqueeze is the inverse of Squeeze: it returns a subset of the given rank with the ranges of s placed at
// the kept dimensions, and index 0 on the others.
func (s Subset) Unsqueeze(kept []int, rank int) Subset {
	if len(kept) != len(s) {
		exceptions.Panicf("cannot unsqueeze subset %q (%d dims) with %d kept dimensions", s, len(s), len(kept))
	}
	result := make(Subset, rank)
	for ii := range result {
		result[ii] = Index(symbolic.Int(0))
	}
	for ii, dim := range kept {
		result[dim] = s[ii]
	}
	return result
}

// Prepend returns a new subset with the given ranges as leading dimensions.
func (s Subset) Prepend(ranges ...Range) Subset {
	result := make(Subset, 0, len(ranges)+len(s))
	result = append(result, ranges...)
	return append(result, s...)
}

// Symbols returns the sorted free symbols used by the subset.
func (s Subset) Symbols() []string {
	names := make(map[string]struct{})
	for _, r := range s {
		for _, e := range []symbolic.Expr{r.Start, r.End, r.Step} {
			for _, name := range symbolic.Symbols(e) {
				names[name] = struct{}{}
			}
		}
	}
	return xslices.SortedKeys(names)
}

// Substitute replaces free symbols in all ranges.
func (s Subset) Substitute(replacements map[string]symbolic.Expr) Subset {
	return xslices.Map(s, func(r Range) Range {
		return Range{
			Start: symbolic.Substitute(r.Start, replacements),
			End:   symbolic.Substitute(r.End, replacements),
			Step:  symbolic.Substitute(r.Step, replacements),
		}
	})
}

// Eval resolves all ranges to concrete bounds.
func (s Subset) Eval(bindings map[string]int64) ([]Concrete, error) {
	concrete := make([]Concrete, len(s))
	for ii, r := range s {
		var err error
		if concrete[ii], err = r.Eval(bindings); err != nil {
			return nil, errors.WithMessagef(err, "evaluating dimension %d of subset %q", ii, s)
		}
	}
	return concrete, nil
}

// String returns the comma separated slice notation, parseable by Parse.
func (s Subset) String() string {
	return strings.Join(xslices.Map(s, Range.String), ", ")
}

type subsetGrammar struct {
	Dims []*dimGrammar `@@ { "," @@ }`
}

type dimGrammar struct {
	Start *symbolic.ExprGrammar `@@`
	End   *symbolic.ExprGrammar `[ ":" @@`
	Step  *symbolic.ExprGrammar `  [ ":" @@ ] ]`
}

var subsetParser = participle.MustBuild[subsetGrammar](
	participle.Lexer(symbolic.Lexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a subset in slice notation, e.g. "i, 0:N, 0:M:2".
// An empty string returns an empty subset.
func Parse(text string) (Subset, error) {
	if strings.TrimSpace(text) == "" {
		return Subset{}, nil
	}
	g, err := subsetParser.ParseString("", text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse subset %q", text)
	}
	s := make(Subset, 0, len(g.Dims))
	for _, dim := range g.Dims {
		start, err := dim.Start.Build()
		if err != nil {
			return nil, errors.WithMessagef(err, "in subset %q", text)
		}
		if dim.End == nil {
			s = append(s, Index(start))
			continue
		}
		end, err := dim.End.Build()
		if err != nil {
			return nil, errors.WithMessagef(err, "in subset %q", text)
		}
		var step symbolic.Expr = symbolic.Int(1)
		if dim.Step != nil {
			if step, err = dim.Step.Build(); err != nil {
				return nil, errors.WithMessagef(err, "in subset %q", text)
			}
		}
		s = append(s, NewRange(start, symbolic.Sub(end, symbolic.Int(1)), step))
	}
	return s, nil
}

// MustParse is like Parse, but panics on error.
func MustParse(text string) Subset {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}
