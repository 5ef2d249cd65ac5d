// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package library

import (
	"fmt"

	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Select returns the implementation used to expand node: the one set in the node, or else the default
// configured in opts for the kind, or else the kind's default, or else Pure.
//
// It returns an error wrapping sdfg.ErrEnvironmentUnavailable if the selected implementation requires an
// environment that is not available, and one wrapping sdfg.ErrUnsupportedConfiguration if the kind or the
// implementation are unknown.
func Select(node *sdfg.LibraryNode, opts *config.Options) (*Kind, *Implementation, error) {
	k, found := LookupKind(node.Kind)
	if !found {
		return nil, nil, sdfg.Unsupportedf("%s: unknown library node kind %q", node, node.Kind)
	}
	name := node.Implementation
	if name == "" {
		name = opts.DefaultImplementation(k.Name)
	}
	if name == "" {
		name = k.DefaultImplementation
	}
	if name == "" {
		name = Pure
	}
	impl, found := k.Implementation(name)
	if !found {
		return nil, nil, sdfg.Unsupportedf("%s: kind %s has no implementation %q (implementations: %v)",
			node, k.Name, name, k.order)
	}
	for _, env := range impl.Environments {
		if !opts.IsAvailable(env) {
			return nil, nil, errors.Wrapf(sdfg.ErrEnvironmentUnavailable,
				"%s: implementation %q requires environment %q", node, impl.Name, env)
		}
	}
	return k, impl, nil
}

// Expand replaces node, in state of g, by the expansion of its selected implementation (see Select).
//
// The node is validated before anything is changed, and a failed validation or expansion leaves the graph
// untouched. The replacement takes the place of node: it gets the same NodeID, and keeps its edges.
// It returns the replacement node.
func Expand(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode, opts *config.Options) (sdfg.Node, error) {
	if opts == nil {
		opts = config.New()
	}
	k, impl, err := Select(node, opts)
	if err != nil {
		return nil, err
	}
	if k.Validate != nil {
		if err := k.Validate(g, state, node); err != nil {
			return nil, err
		}
	}
	replacement, err := impl.Expand(g, state, node)
	if err != nil {
		return nil, errors.WithMessagef(err, "expanding %s with %q", node, impl.Name)
	}
	state.ReplaceNode(node, replacement)
	klog.V(1).Infof("expanded %s in %s with %q: %s", node, state, impl.Name, replacement)
	return replacement, nil
}

// Failure of the expansion of one library node by ExpandAll.
type Failure struct {
	Node  *sdfg.LibraryNode
	State *sdfg.State
	SDFG  *sdfg.SDFG
	Err   error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s in %s of %s: %v", f.Node, f.State, f.SDFG, f.Err)
}

// Unwrap returns the underlying error, so errors.Is can test for its kind.
func (f *Failure) Unwrap() error { return f.Err }

// ExpandAll expands every library node of root and of its nested SDFGs, in document order.
//
// Failures of individual nodes don't stop the expansion of the others: they are returned, and the failed
// nodes are left in place. Library nodes created by expansions are expanded as well.
func ExpandAll(root *sdfg.SDFG, opts *config.Options) (expanded int, failures []*Failure) {
	if opts == nil {
		opts = config.New()
	}
	failed := make(map[*sdfg.LibraryNode]bool)
	for {
		progress := false
		for _, nc := range root.AllNodesRecursive() {
			node, ok := nc.Node.(*sdfg.LibraryNode)
			if !ok || failed[node] || !nc.State.Has(node) {
				continue
			}
			if _, err := Expand(nc.SDFG, nc.State, node, opts); err != nil {
				failed[node] = true
				failures = append(failures, &Failure{Node: node, State: nc.State, SDFG: nc.SDFG, Err: err})
				klog.Warningf("library: failed to expand %s: %v", node, err)
				continue
			}
			expanded++
			progress = true
		}
		if !progress {
			break
		}
	}
	if opts.DebugPrint() {
		klog.Infof("Expanded %d library node(s), %d failure(s).", expanded, len(failures))
	}
	return
}
