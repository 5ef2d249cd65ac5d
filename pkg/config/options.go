// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config holds the explicit configuration passed to transformations and library expansions.
//
// Options are organized as scoped parameters (see Params): global settings live in the root scope,
// transformations and library kinds read their own parameters from the scope named after them.
// Options can be loaded from HCL files (LoadFile) and overridden by "key=value;..." settings strings
// (ParseSettings), typically given in the command line.
//
// There is no global state: the same Options are passed explicitly to every component that needs them.
package config

import (
	"maps"

	"github.com/gomlx/sdfg/pkg/core/symbolic"
)

// Well known parameters of the root scope.
const (
	// ParamDebugPrint enables printing the number of changes applied by transformations and expansions.
	ParamDebugPrint = "debugprint"

	// ParamValidate enables validating the graph after every transformation applied by the driver.
	ParamValidate = "validate"

	// ParamMaxApplications limits the number of times the driver applies a transformation. 0 means no limit.
	ParamMaxApplications = "max_applications"
)

// Scopes of the parameters with an open set of keys.
const (
	// EnvironmentsScope holds the availability (bool) of each environment, by name.
	EnvironmentsScope = "/environments"

	// ImplementationsScope holds the default implementation (string) of each library node kind.
	ImplementationsScope = "/implementations"

	// SymbolsScope holds known values (int64) of symbols, used to resolve sizes at compile time.
	SymbolsScope = "/symbols"
)

// Options is the configuration of a compilation pipeline.
type Options struct {
	Params *Params

	// Resolver used to resolve symbolic sizes to constants.
	Resolver symbolic.Resolver
}

// New returns Options with the default values of the well known parameters.
func New() *Options {
	o := &Options{Params: NewParams(), Resolver: symbolic.DefaultResolver{}}
	o.Params.Set(RootScope, ParamDebugPrint, false)
	o.Params.Set(RootScope, ParamValidate, true)
	o.Params.Set(RootScope, ParamMaxApplications, 0)
	return o
}

// Clone returns a copy of the options.
func (o *Options) Clone() *Options {
	return &Options{Params: o.Params.Clone(), Resolver: o.Resolver}
}

// GetParamOr returns the parameter key in scope (or its parent scopes), converted to T.
// If not found, or if it has a different type, defaultValue is returned.
func GetParamOr[T any](o *Options, scope, key string, defaultValue T) T {
	if o == nil {
		return defaultValue
	}
	value, found := o.Params.Get(scope, key)
	if !found {
		return defaultValue
	}
	typed, ok := value.(T)
	if !ok {
		return defaultValue
	}
	return typed
}

// DebugPrint returns whether components should print the number of changes they applied.
func (o *Options) DebugPrint() bool {
	return GetParamOr(o, RootScope, ParamDebugPrint, false)
}

// WithDebugPrint sets the debug print flag and returns the options, for chaining.
func (o *Options) WithDebugPrint(debugPrint bool) *Options {
	o.Params.Set(RootScope, ParamDebugPrint, debugPrint)
	return o
}

// ValidateAfterApply returns whether the driver validates the graph after each transformation.
func (o *Options) ValidateAfterApply() bool {
	return GetParamOr(o, RootScope, ParamValidate, true)
}

// MaxApplications returns the limit of applications of the transformation name, 0 for no limit.
func (o *Options) MaxApplications(name string) int {
	return GetParamOr(o, JoinScope(RootScope, name), ParamMaxApplications, 0)
}

// IsAvailable implements library.Availability: it returns whether the environment was marked as available.
// Environments are unavailable by default.
func (o *Options) IsAvailable(environment string) bool {
	return GetParamOr(o, EnvironmentsScope, environment, false)
}

// WithEnvironment marks the environment as available (or not) and returns the options, for chaining.
func (o *Options) WithEnvironment(environment string, available bool) *Options {
	o.Params.Set(EnvironmentsScope, environment, available)
	return o
}

// DefaultImplementation returns the configured default implementation of the library node kind, or "".
func (o *Options) DefaultImplementation(kind string) string {
	if o == nil {
		return ""
	}
	value, _ := o.Params.GetLocal(ImplementationsScope, kind)
	impl, _ := value.(string)
	return impl
}

// WithDefaultImplementation configures the default implementation of a library node kind.
func (o *Options) WithDefaultImplementation(kind, implementation string) *Options {
	o.Params.Set(ImplementationsScope, kind, implementation)
	return o
}

// Symbols returns the known symbol values.
func (o *Options) Symbols() map[string]int64 {
	symbols := make(map[string]int64)
	if o == nil {
		return symbols
	}
	for _, name := range o.Params.Keys(SymbolsScope) {
		value, _ := o.Params.GetLocal(SymbolsScope, name)
		if v, ok := value.(int64); ok {
			symbols[name] = v
		}
	}
	return symbols
}

// WithSymbol sets a known symbol value.
func (o *Options) WithSymbol(name string, value int64) *Options {
	o.Params.Set(SymbolsScope, name, value)
	return o
}

// ResolveToConstant resolves expr with the configured resolver and known symbols.
// Extra constants (e.g. the constants of an SDFG) take precedence over the configured symbols.
func (o *Options) ResolveToConstant(expr symbolic.Expr, constants ...map[string]int64) (int64, bool) {
	resolver := symbolic.Resolver(symbolic.DefaultResolver{})
	if o != nil && o.Resolver != nil {
		resolver = o.Resolver
	}
	bindings := o.Symbols()
	for _, c := range constants {
		maps.Copy(bindings, c)
	}
	return resolver.ResolveToConstant(expr, bindings)
}
