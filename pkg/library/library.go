// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package library implements the expansion of library nodes: abstract operators (e.g. a matrix multiplication)
// that are replaced, before code generation, by one of the implementations registered for their kind.
//
// Each Kind has a fixed set of named Implementation strategies. An implementation may require environments
// (a vendor math library, an accelerator toolchain), and it is only a candidate if the embedding system
// reports them as available (see Availability). The portable "pure" implementation requires no environment
// and synthesizes a dataflow subgraph instead of a native call.
//
// Kinds and environments are registered during package initialization (see package blas).
package library

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/support/xslices"
)

// Pure is the name of the portable implementation, used when no other implementation is selected.
const Pure = "pure"

// Availability reports which environments can be used by the compilation. It is implemented by config.Options.
type Availability interface {
	IsAvailable(environment string) bool
}

// ExpandFn creates the replacement of node: a *sdfg.Tasklet or a *sdfg.NestedSDFG, not yet added to any state,
// with the same connectors as node.
//
// It is called after the kind's Validate succeeded, and it must not mutate the graph: Expand does the
// replacement.
type ExpandFn func(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) (sdfg.Node, error)

// ValidateFn checks the connectors and shapes of a library node of a kind.
// It must be free of side effects.
type ValidateFn func(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) error

// Implementation is a named expansion strategy of a Kind.
type Implementation struct {
	Name string

	// Environments required by the implementation.
	Environments []string

	Expand ExpandFn
}

// Kind of library node: its fixed connectors, validation and implementations.
type Kind struct {
	Name            string
	Inputs, Outputs []string
	Validate        ValidateFn

	// DefaultImplementation is used when neither the node nor the configuration select one.
	// If empty, Pure is used.
	DefaultImplementation string

	implementations map[string]*Implementation
	order           []string
}

// Environment is an external library or toolchain an implementation may depend on.
type Environment struct {
	Name string

	// HandleSetupCode, if set, returns the native code that must precede the calls generated for node,
	// e.g. the acquisition of a library handle on the node's device.
	HandleSetupCode func(node *sdfg.LibraryNode) (string, error)
}

var (
	registeredKinds        = make(map[string]*Kind)
	registeredEnvironments = make(map[string]*Environment)
)

// RegisterKind registers a library node kind. It panics if the name is already taken.
//
// To be safe, call RegisterKind during initialization of a package.
func RegisterKind(k *Kind) *Kind {
	if _, found := registeredKinds[k.Name]; found {
		exceptions.Panicf("library node kind %q registered twice", k.Name)
	}
	if k.implementations == nil {
		k.implementations = make(map[string]*Implementation)
	}
	registeredKinds[k.Name] = k
	return k
}

// LookupKind returns the registered kind with the given name.
func LookupKind(name string) (*Kind, bool) {
	k, found := registeredKinds[name]
	return k, found
}

// Kinds returns the names of the registered kinds, sorted.
func Kinds() []string {
	return xslices.SortedKeys(registeredKinds)
}

// AddImplementation registers an implementation of the kind.
// It panics if an implementation with the same name was already registered: names identify implementations.
func (k *Kind) AddImplementation(impl *Implementation) *Kind {
	if impl.Expand == nil {
		exceptions.Panicf("implementation %q of %s has no expansion", impl.Name, k.Name)
	}
	if _, found := k.implementations[impl.Name]; found {
		exceptions.Panicf("implementation %q of %s registered twice", impl.Name, k.Name)
	}
	if k.implementations == nil {
		k.implementations = make(map[string]*Implementation)
	}
	k.implementations[impl.Name] = impl
	k.order = append(k.order, impl.Name)
	return k
}

// Implementation returns the implementation of the kind with the given name.
func (k *Kind) Implementation(name string) (*Implementation, bool) {
	impl, found := k.implementations[name]
	return impl, found
}

// Implementations returns the names of the implementations of the kind, in registration order.
func (k *Kind) Implementations() []string {
	return slices.Clone(k.order)
}

// NewNode creates a library node of the kind, with its fixed connectors.
func (k *Kind) NewNode(name string) *sdfg.LibraryNode {
	return sdfg.NewLibraryNode(name, k.Name, k.Inputs, k.Outputs)
}

// RegisterEnvironment registers an environment. It panics if the name is already taken.
func RegisterEnvironment(env *Environment) *Environment {
	if _, found := registeredEnvironments[env.Name]; found {
		exceptions.Panicf("environment %q registered twice", env.Name)
	}
	registeredEnvironments[env.Name] = env
	return env
}

// LookupEnvironment returns the registered environment with the given name.
func LookupEnvironment(name string) (*Environment, bool) {
	env, found := registeredEnvironments[name]
	return env, found
}

// IsUsable returns whether all environments required by impl are available.
// A nil availability only allows implementations that don't require any environment.
func (impl *Implementation) IsUsable(availability Availability) bool {
	for _, env := range impl.Environments {
		if availability == nil || !availability.IsAvailable(env) {
			return false
		}
	}
	return true
}

// Candidates returns the implementations of kind whose environments are all available, in registration order.
func Candidates(k *Kind, availability Availability) []*Implementation {
	var candidates []*Implementation
	for _, name := range k.order {
		impl := k.implementations[name]
		if impl.IsUsable(availability) {
			candidates = append(candidates, impl)
		}
	}
	return candidates
}
