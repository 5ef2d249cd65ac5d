// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	p := NewParams()
	p.Set("/", "x", 10)
	p.Set("/", "y", 20)
	p.Set("/", "z", 40)
	p.Set("/a", "y", 30)
	p.Set("/a/b", "x", 100)

	value, found := p.Get("/a/b", "x")
	require.True(t, found)
	assert.Equal(t, 100, value)
	value, found = p.Get("/a/b", "y")
	require.True(t, found)
	assert.Equal(t, 30, value)
	value, found = p.Get("/d/e/f", "z")
	require.True(t, found)
	assert.Equal(t, 40, value)
	_, found = p.Get("/a/b", "w")
	assert.False(t, found)
	_, found = p.GetLocal("/a/b", "y")
	assert.False(t, found)

	type entry struct {
		scope, key string
		value any
	}
	var got []entry
	p.Clone().Enumerate(func(scope, key string, value any) {
		got = append(got, entry{scope, key, value})
	})
	assert.Equal(t, []entry{
		{"/", "x", 10}, {"/", "y", 20}, {"/", "z", 40}, {"/a", "y", 30}, {"/a/b", "x", 100},
	}, got)
}

func TestSplitScope(t *testing.T) {
	for _, tc := range []struct{ path, scope, key string }{
		{"debugprint", "/", "debugprint"},
		{"/debugprint", "/", "debugprint"},
		{"MapFission/max_applications", "/MapFission", "max_applications"},
		{"/environments/MKL", "/environments", "MKL"},
	} {
		scope, key := SplitScope(tc.path)
		assert.Equal(t, tc.scope, scope, tc.path)
		assert.Equal(t, tc.key, key, tc.path)
	}
	assert.Equal(t, "/a", ParentScope("/a/b"))
	assert.Equal(t, "/", ParentScope("/a"))
	assert.Equal(t, "/a", JoinScope("/", "a"))
	assert.Equal(t, "/a/b", JoinScope("/a", "b"))
}

func TestParseSettings(t *testing.T) {
	o := New()
	paramsSet, err := ParseSettings(o, "debugprint=true;environments/MKL=true;implementations/MatMul=MKL;"+
		"symbols/N=1_024;MapFission/max_applications=2")
	require.NoError(t, err)
	assert.Len(t, paramsSet, 5)
	assert.True(t, o.DebugPrint())
	assert.True(t, o.IsAvailable("MKL"))
	assert.False(t, o.IsAvailable("cuBLAS"))
	assert.Equal(t, "MKL", o.DefaultImplementation("MatMul"))
	assert.Equal(t, map[string]int64{"N": 1024}, o.Symbols())
	assert.Equal(t, 2, o.MaxApplications("MapFission"))
	assert.Equal(t, 0, o.MaxApplications("GlobalToLocal"))

	_, err = ParseSettings(o, "unknown=1")
	require.Error(t, err)
	_, err = ParseSettings(o, "debugprint=maybe")
	require.Error(t, err)
	_, err = ParseSettings(o, "debugprint")
	require.Error(t, err)

	// Settings from a file.
	path := filepath.Join(t.TempDir(), "settings.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nvalidate=false\nsymbols/M=3;symbols/K=4\n"), 0o644))
	_, err = ParseSettings(o, "file:"+path)
	require.NoError(t, err)
	assert.False(t, o.ValidateAfterApply())
	assert.Equal(t, map[string]int64{"N": 1024, "M": 3, "K": 4}, o.Symbols())
	assert.Contains(t, SprintModifiedSettings(o, []string{"symbols/M"}), `"symbols/M": (int64) 3`)
}

func TestLoadHCL(t *testing.T) {
	src := `
debugprint = true
symbols    = { N = 128 }

environment "cuBLAS" {
  available = true
}

library "MatMul" {
  implementation = "cuBLAS"
}

transformation "GlobalToLocal" {
  params = { from = "GPUGlobal", max_applications = 3 }
}
`
	o := New()
	require.NoError(t, o.LoadHCL([]byte(src), "test.hcl"))
	assert.True(t, o.DebugPrint())
	assert.True(t, o.IsAvailable("cuBLAS"))
	assert.Equal(t, "cuBLAS", o.DefaultImplementation("MatMul"))
	assert.Equal(t, "GPUGlobal", GetParamOr(o, "/GlobalToLocal", "from", ""))
	assert.Equal(t, 3, o.MaxApplications("GlobalToLocal"))

	v, ok := o.ResolveToConstant(symbolic.MustParse("2*N + 1"))
	require.True(t, ok)
	assert.Equal(t, int64(257), v)
	_, ok = o.ResolveToConstant(symbolic.MustParse("M"))
	assert.False(t, ok)

	require.Error(t, New().LoadHCL([]byte(`unknown_attribute = 1`), "bad.hcl"))
	require.Error(t, New().LoadHCL([]byte(`transformation "X" { params = 3 }`), "bad.hcl"))

	path := filepath.Join(t.TempDir(), "opt.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	o = New()
	require.NoError(t, o.LoadFile(path))
	assert.True(t, o.IsAvailable("cuBLAS"))
}
