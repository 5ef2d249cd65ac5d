// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package data

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/pkg/errors"
)

// TempPrefix is the name prefix of arrays created with Registry.AddTemp.
const TempPrefix = "__tmp"

var reValidName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Registry maps array names to descriptors, and remembers the insertion order, so enumeration
// is deterministic.
type Registry struct {
	names       []string
	descriptors map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Add registers a descriptor under name.
// It returns an error if the name is already used or is not a valid identifier.
func (r *Registry) Add(name string, desc *Descriptor) error {
	if !reValidName.MatchString(name) {
		return errors.Errorf("invalid array name %q", name)
	}
	if _, found := r.descriptors[name]; found {
		return errors.Errorf("array %q already registered", name)
	}
	if desc == nil {
		return errors.Errorf("nil descriptor for array %q", name)
	}
	r.names = append(r.names, name)
	r.descriptors[name] = desc
	return nil
}

// AddTemp registers desc under a fresh name "__tmp<N>" and returns that name.
func (r *Registry) AddTemp(desc *Descriptor) string {
	for ii := 0; ; ii++ {
		name := fmt.Sprintf("%s%d", TempPrefix, ii)
		if _, found := r.descriptors[name]; !found {
			r.names = append(r.names, name)
			r.descriptors[name] = desc
			return name
		}
	}
}

// Get returns the descriptor of name, if registered.
func (r *Registry) Get(name string) (desc *Descriptor, found bool) {
	desc, found = r.descriptors[name]
	return
}

// Has returns whether name is registered.
func (r *Registry) Has(name string) bool {
	_, found := r.descriptors[name]
	return found
}

// Set replaces (or adds) the descriptor for name, keeping its original position if it already exists.
func (r *Registry) Set(name string, desc *Descriptor) {
	if _, found := r.descriptors[name]; !found {
		r.names = append(r.names, name)
	}
	r.descriptors[name] = desc
}

// Remove unregisters name. It's a no-op if name is not registered.
func (r *Registry) Remove(name string) {
	if _, found := r.descriptors[name]; !found {
		return
	}
	delete(r.descriptors, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of registered arrays.
func (r *Registry) Len() int {
	return len(r.names)
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for _, name := range r.names {
		c.names = append(c.names, name)
		c.descriptors[name] = r.descriptors[name].Clone()
	}
	return c
}
