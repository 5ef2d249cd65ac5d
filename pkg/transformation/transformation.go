// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transformation implements the pattern-matching and rewrite engine of SDFGs.
//
// A Transformation declares one or more patterns (Expressions); the matcher enumerates their
// occurrences in an SDFG and its nested SDFGs, in a deterministic document order, and keeps those
// accepted by the transformation's CanBeApplied predicate. The Driver applies transformations repeatedly
// until no candidate remains or a configured limit is reached.
//
// Matching is read-only. Apply is only called on accepted candidates and is expected to succeed: a
// violated precondition found during Apply is a programming error and panics.
package transformation

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/support/xslices"
)

// Transformation is a graph rewrite.
type Transformation interface {
	// Name of the transformation, as used in the registry and configuration scopes.
	Name() string

	// Expressions are the alternative patterns of the transformation. The index of the matched pattern is
	// given in Match.ExprIndex.
	Expressions() []*Pattern

	// CanBeApplied checks the semantic conditions the structural match can't express.
	// With strict set, only transformations that are always beneficial should be accepted.
	// It must not modify the graph.
	CanBeApplied(m *Match, strict bool) bool

	// Apply rewrites the graph at the match.
	Apply(m *Match)

	// AnnotatesMemlets returns whether Apply leaves all memlets correct. If false, the driver runs memlet
	// propagation after applying the transformation.
	AnnotatesMemlets() bool
}

// MatchStringer is optionally implemented by transformations to describe a match in logs and reports.
type MatchStringer interface {
	MatchString(m *Match) string
}

// Constructor creates a transformation configured by the given options.
type Constructor func(opts *config.Options) Transformation

var registeredConstructors = make(map[string]Constructor)

// Register a transformation constructor under name.
// It panics if a transformation was already registered with the same name.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if _, found := registeredConstructors[name]; found {
		exceptions.Panicf("transformation %q registered twice", name)
	}
	registeredConstructors[name] = constructor
}

// New creates the registered transformation name.
// It panics if no such transformation was registered.
func New(name string, opts *config.Options) Transformation {
	constructor, found := registeredConstructors[name]
	if !found {
		exceptions.Panicf("unknown transformation %q, registered transformations are %q -- maybe import its package?",
			name, Names())
	}
	return constructor(opts)
}

// IsRegistered returns whether a transformation was registered under name.
func IsRegistered(name string) bool {
	_, found := registeredConstructors[name]
	return found
}

// Names returns the sorted names of the registered transformations.
func Names() []string {
	names := xslices.Keys(registeredConstructors)
	slices.Sort(names)
	return names
}

// MatchString describes the match, using the transformation's MatchStringer if implemented.
func MatchString(xf Transformation, m *Match) string {
	if ms, ok := xf.(MatchStringer); ok {
		return ms.MatchString(m)
	}
	return xf.Name() + " in " + m.String()
}
