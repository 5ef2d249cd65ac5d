// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"

	"github.com/gomlx/sdfg/pkg/support/xslices"
)

// ScopeSeparator separates the parts of a parameter scope. The root scope is "/".
const ScopeSeparator = "/"

// RootScope is the scope of the global parameters.
const RootScope = ScopeSeparator

// Params maps keys to values of any type, organized in scopes:
//
//   - Each scope holds its own map of key to value.
//   - Looking up a key searches from the given scope up to the root scope, and returns the first value found.
//
// Example: with
//
//	Scope "/": { "debugprint": false, "max_applications": 0 }
//	Scope "/MapFission": { "max_applications": 1 }
//
//	Params.Get("/MapFission", "max_applications") -> 1
//	Params.Get("/GlobalToLocal", "max_applications") -> 0
//	Params.Get("/MapFission", "debugprint") -> false
//
// Transformations and library kinds read their parameters from the scope with their name.
type Params struct {
	scopeToMap map[string]map[string]any
}

// NewParams creates an empty set of parameters.
func NewParams() *Params {
	return &Params{scopeToMap: make(map[string]map[string]any)}
}

// Clone returns a copy of the parameters. Values themselves are not deep-copied.
func (p *Params) Clone() *Params {
	c := NewParams()
	for scope, values := range p.scopeToMap {
		c.scopeToMap[scope] = make(map[string]any, len(values))
		for key, value := range values {
			c.scopeToMap[scope][key] = value
		}
	}
	return c
}

// Set the value of key in scope.
func (p *Params) Set(scope, key string, value any) {
	values, found := p.scopeToMap[scope]
	if !found {
		values = make(map[string]any)
		p.scopeToMap[scope] = values
	}
	values[key] = value
}

// Get returns the value of key in scope or in its closest parent scope that defines it.
// E.g.: Get("/a/b", "key") searches "/a/b", "/a" and "/", in this order.
func (p *Params) Get(scope, key string) (value any, found bool) {
	for {
		if values, ok := p.scopeToMap[scope]; ok {
			if value, found = values[key]; found {
				return
			}
		}
		if scope == RootScope || scope == "" {
			return nil, false
		}
		scope = ParentScope(scope)
	}
}

// GetLocal returns the value of key defined exactly in scope, without searching the parent scopes.
func (p *Params) GetLocal(scope, key string) (value any, found bool) {
	value, found = p.scopeToMap[scope][key]
	return
}

// Keys returns the sorted keys defined exactly in scope.
func (p *Params) Keys(scope string) []string {
	return xslices.SortedKeys(p.scopeToMap[scope])
}

// Enumerate calls fn for every parameter, sorted by scope and then by key.
func (p *Params) Enumerate(fn func(scope, key string, value any)) {
	for _, scope := range xslices.SortedKeys(p.scopeToMap) {
		values := p.scopeToMap[scope]
		for _, key := range xslices.SortedKeys(values) {
			fn(scope, key, values[key])
		}
	}
}

// ParentScope returns the scope containing scope: "/a/b" -> "/a", "/a" -> "/".
func ParentScope(scope string) string {
	idx := strings.LastIndex(scope, ScopeSeparator)
	if idx <= 0 {
		return RootScope
	}
	return scope[:idx]
}

// JoinScope returns the sub-scope name of scope.
func JoinScope(scope, name string) string {
	if scope == RootScope {
		return RootScope + name
	}
	return scope + ScopeSeparator + name
}

// SplitScope splits a parameter path like "/a/b/key" into its scope ("/a/b") and key ("key").
// A path without a separator is a key of the root scope.
func SplitScope(path string) (scope, key string) {
	idx := strings.LastIndex(path, ScopeSeparator)
	if idx == -1 {
		return RootScope, path
	}
	if idx == 0 {
		return RootScope, path[1:]
	}
	scope = path[:idx]
	if !strings.HasPrefix(scope, ScopeSeparator) {
		scope = ScopeSeparator + scope
	}
	return scope, path[idx+1:]
}
