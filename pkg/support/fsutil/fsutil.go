// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for locating input and output files.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %q", path)
}

// ReplaceTilde replaces a leading "~" or "~user" in path by the user's home directory.
// Returns path unchanged if it doesn't start with "~".
//
// It returns an error if path names an unknown user (e.g: `~unknown/...`).
func ReplaceTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	userName, rest, _ := strings.Cut(path[1:], "/")
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", path)
	}
	return filepath.Join(usr.HomeDir, rest), nil
}

// ExpandInputs resolves the given paths into a sorted list of files without duplicates.
//
// Directories are replaced by the regular files they contain (not recursively) whose name ends with ext.
// Files given explicitly are kept regardless of their extension, and must exist.
func ExpandInputs(paths []string, ext string) ([]string, error) {
	var files []string
	for _, p := range paths {
		p, err := ReplaceTilde(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "input %q", p)
		}
		if !info.IsDir() {
			files = append(files, filepath.Clean(p))
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list directory %q", p)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ext) {
				files = append(files, filepath.Join(p, entry.Name()))
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// OutputPath returns where to write the result of processing input: in outDir if not empty (otherwise next
// to input), with suffix inserted before the extension of the file name.
//
// E.g.: OutputPath("in/prog.json", "", ".opt") returns "in/prog.opt.json".
func OutputPath(input, outDir, suffix string) string {
	dir, base := filepath.Split(input)
	if outDir != "" {
		dir = outDir
	}
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+suffix+ext)
}
