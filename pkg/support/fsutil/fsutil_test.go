// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	exists, err := FileExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = FileExists(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReplaceTilde(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)
	got, err := ReplaceTilde("~/sdfgs/prog.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(usr.HomeDir, "sdfgs/prog.json"), got)

	got, err = ReplaceTilde("relative/prog.json")
	require.NoError(t, err)
	assert.Equal(t, "relative/prog.json", got)

	_, err = ReplaceTilde("~no_such_user_for_sure_1234/prog.json")
	require.Error(t, err)
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))
	extra := filepath.Join(dir, "notes.txt")

	got, err := ExpandInputs([]string{dir, extra, filepath.Join(dir, "a.json")}, ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "notes.txt"),
	}, got)

	_, err = ExpandInputs([]string{filepath.Join(dir, "missing.json")}, ".json")
	require.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "in/prog.opt.json", OutputPath("in/prog.json", "", ".opt"))
	assert.Equal(t, "out/prog.opt.json", OutputPath("in/prog.json", "out", ".opt"))
	assert.Equal(t, "prog.json", OutputPath("prog.json", "", ""))
}
