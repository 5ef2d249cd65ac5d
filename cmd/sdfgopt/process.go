// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/library"
	"github.com/gomlx/sdfg/pkg/transformation"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// pipeline configures the processing of each input SDFG.
type pipeline struct {
	opts   *config.Options
	xforms []string
	expand bool
	strict bool
}

// graphStats summarizes the size of an SDFG, including its nested SDFGs.
type graphStats struct {
	SDFGs, States, Nodes, Edges, Arrays, LibraryNodes int

	// Bytes is the total memory of the arrays whose size resolves to a constant.
	Bytes uint64
}

// report of the processing of one input file.
type report struct {
	Input, Output     string
	BytesIn, BytesOut int
	Before, After     graphStats

	// Applied is the number of applications per transformation.
	Applied  map[string]int
	Expanded int
	Failures []*library.Failure
	Elapsed  time.Duration
	Err      error
}

// run processes input and writes the result to output. Errors, including panics of failed contract checks
// raised by transformations, are returned in the report.
func (p *pipeline) run(input, output string) (r *report) {
	r = &report{Input: input, Output: output}
	start := time.Now()
	exception := exceptions.TryCatch[error](func() { r.Err = p.process(r) })
	if exception != nil {
		r.Err = errors.WithMessage(exception, "internal error")
	}
	r.Elapsed = time.Since(start)
	if r.Err != nil {
		klog.V(1).Infof("%s: failed after %s: %+v", input, r.Elapsed, r.Err)
	}
	return r
}

func (p *pipeline) process(r *report) error {
	contents, err := os.ReadFile(r.Input)
	if err != nil {
		return errors.Wrapf(err, "failed to read %q", r.Input)
	}
	r.BytesIn = len(contents)
	g := &sdfg.SDFG{}
	if err := json.Unmarshal(contents, g); err != nil {
		return errors.WithMessagef(err, "failed to parse %q", r.Input)
	}
	if err := sdfg.Validate(g); err != nil {
		return errors.WithMessagef(err, "input %q", r.Input)
	}
	r.Before = p.stats(g)

	driver := transformation.NewDriver(p.opts)
	driver.Strict = p.strict
	_, err = driver.ApplyAll(g, p.xforms...)
	r.Applied = driver.Counts()
	if err != nil {
		return err
	}

	if p.expand {
		r.Expanded, r.Failures = library.ExpandAll(g, p.opts)
		if len(r.Failures) > 0 {
			return errors.WithMessagef(r.Failures[0], "%d library node(s) could not be expanded, first failure", len(r.Failures))
		}
		if err := sdfg.CheckExpanded(g); err != nil {
			return err
		}
	}
	r.After = p.stats(g)

	if r.Output == "" {
		return nil
	}
	result, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", g)
	}
	r.BytesOut = len(result)
	if dir := filepath.Dir(r.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create output directory %q", dir)
		}
	}
	if err := os.WriteFile(r.Output, result, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %q", r.Output)
	}
	return nil
}

// stats counts the elements of g and its nested SDFGs.
func (p *pipeline) stats(g *sdfg.SDFG) (s graphStats) {
	for _, nested := range g.AllSDFGsRecursive() {
		s.SDFGs++
		for _, state := range nested.States() {
			s.States++
			s.Nodes += state.NumNodes()
			s.Edges += len(state.Edges())
			for _, node := range state.Nodes() {
				if _, ok := node.(*sdfg.LibraryNode); ok {
					s.LibraryNodes++
				}
			}
		}
		for _, name := range nested.Arrays.Names() {
			s.Arrays++
			desc := nested.Array(name)
			if size, ok := p.opts.ResolveToConstant(desc.TotalSize); ok && size > 0 {
				s.Bytes += uint64(size) * uint64(desc.DType.Size())
			}
		}
	}
	return
}
