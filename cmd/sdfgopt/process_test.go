// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/data"
	"github.com/gomlx/sdfg/pkg/core/memlet"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/gomlx/sdfg/pkg/library/blas"
	"github.com/gomlx/sdfg/pkg/transformation/interstate"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMatMul writes a JSON SDFG computing C = A·B, with a transient FPGA global copy of C.
func writeMatMul(t *testing.T, dir string) string {
	g := sdfg.New("matmul")
	g.AddArray("A", data.NewArray(dtypes.Float32, symbolic.Int(3), symbolic.Int(2)))
	g.AddArray("B", data.NewArray(dtypes.Float32, symbolic.Int(2), symbolic.Int(4)))
	g.AddArray("C", data.NewArray(dtypes.Float32, symbolic.Int(3), symbolic.Int(4)))
	tmp := data.NewArray(dtypes.Float32, symbolic.Int(3), symbolic.Int(4))
	tmp.Storage = data.StorageFPGAGlobal
	g.AddTransient("T", tmp)

	s := g.AddState("main")
	node := blas.AddMatMul(s, "mm", dtypes.Float32)
	s.AddEdge(s.AddRead("A"), "", node, blas.ConnA, memlet.New("A", g.Array("A").FullSubset()))
	s.AddEdge(s.AddRead("B"), "", node, blas.ConnB, memlet.New("B", g.Array("B").FullSubset()))
	written := s.AddAccess("T")
	s.AddEdge(node, blas.ConnC, written, "", memlet.New("T", g.Array("T").FullSubset()))
	s.AddEdge(written, "", s.AddWrite("C"), "", memlet.New("T", g.Array("T").FullSubset()))
	require.NoError(t, sdfg.Validate(g))

	path := filepath.Join(dir, "matmul.json")
	require.NoError(t, os.WriteFile(path, must.M1(json.Marshal(g)), 0o644))
	return path
}

func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	input := writeMatMul(t, dir)
	output := filepath.Join(dir, "out", "matmul.opt.json")

	p := &pipeline{opts: config.New(), xforms: []string{interstate.GlobalToLocalName}, expand: true}
	r := p.run(input, output)
	require.NoError(t, r.Err)
	assert.Equal(t, map[string]int{interstate.GlobalToLocalName: 1}, r.Applied)
	assert.Equal(t, 1, r.Expanded)
	assert.Empty(t, r.Failures)
	assert.Equal(t, 1, r.Before.LibraryNodes)
	assert.Equal(t, 0, r.After.LibraryNodes)
	assert.Equal(t, 1, r.Before.SDFGs)
	assert.Equal(t, 2, r.After.SDFGs)
	assert.Equal(t, uint64(4*(6+8+12+12)), r.Before.Bytes)
	assert.Greater(t, r.BytesOut, 0)

	// The output is a valid expanded SDFG.
	g := &sdfg.SDFG{}
	require.NoError(t, json.Unmarshal(must.M1(os.ReadFile(output)), g))
	require.NoError(t, sdfg.Validate(g))
	require.NoError(t, sdfg.CheckExpanded(g))
	assert.Equal(t, data.StorageFPGALocal, g.Array("T").Storage)
}

func TestPipelineFailures(t *testing.T) {
	dir := t.TempDir()
	input := writeMatMul(t, dir)

	// Unknown transformation.
	p := &pipeline{opts: config.New(), xforms: []string{"NoSuchTransformation"}}
	r := p.run(input, "")
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "NoSuchTransformation")

	// MKL not available.
	opts := config.New().WithDefaultImplementation(blas.MatMulKind, blas.ImplMKL)
	p = &pipeline{opts: opts, expand: true}
	r = p.run(input, "")
	require.Error(t, r.Err)
	require.Len(t, r.Failures, 1)
	assert.ErrorIs(t, r.Err, sdfg.ErrEnvironmentUnavailable)

	// Not an SDFG.
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1, 2, 3]"), 0o644))
	r = (&pipeline{opts: config.New()}).run(bad, "")
	require.Error(t, r.Err)

	// Missing file.
	r = (&pipeline{opts: config.New()}).run(filepath.Join(dir, "missing.json"), "")
	require.Error(t, r.Err)
}

func TestTables(t *testing.T) {
	reports := []*report{
		{Input: "a.json", Applied: map[string]int{"MapFission": 2}, Before: graphStats{Nodes: 5}, After: graphStats{Nodes: 9}},
		{Input: "b.json", Applied: map[string]int{"MapFission": 1, "GlobalToLocal": 1}, Err: assert.AnError},
	}
	summary := summaryTable(reports)
	assert.Contains(t, summary, "a.json")
	assert.Contains(t, summary, "5 → 9")
	assert.Contains(t, summary, "failed")

	xforms := transformationsTable(reports)
	assert.Contains(t, xforms, "MapFission")
	assert.Contains(t, xforms, "3")

	registry := registryTable(config.New())
	assert.Contains(t, registry, blas.MatMulKind)
	assert.Contains(t, registry, blas.ImplCuBLAS)
	assert.Contains(t, registry, interstate.GlobalToLocalName)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"MapFission", "GlobalToLocal"}, splitList(" MapFission, ,GlobalToLocal,"))
	assert.Empty(t, splitList(""))
}
