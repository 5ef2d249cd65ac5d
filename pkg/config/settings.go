// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/sdfg/pkg/support/fsutil"
	"github.com/gomlx/sdfg/pkg/support/xslices"
	"github.com/pkg/errors"
)

// ParseSettings updates the options from settings, a list of "param=value" separated by ";":
// e.g. "debugprint=true;environments/MKL=true;implementations/MatMul=MKL".
//
// The type of each value is taken from the current value of the parameter (searched from its scope up to
// the root), so parameters must have a default. Parameters of the open scopes "environments" (bool),
// "implementations" (string) and "symbols" (int64) don't need one.
//
// A setting of the form "file:<path>" reads settings from a file, one or more per line. Lines starting
// with "#" are comments.
//
// For integer types "_" is removed, so large numbers can be written as 1_000_000.
//
// It returns the list of parameter paths set.
func ParseSettings(o *Options, settings string) (paramsSet []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		paramsSet, err = parseSetting(o, setting, paramsSet)
		if err != nil {
			return
		}
	}
	return
}

func parseSetting(o *Options, setting string, paramsSet []string) (newParamsSet []string, err error) {
	newParamsSet = paramsSet
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return
	}
	if strings.HasPrefix(setting, "file:") {
		var filePath string
		filePath, err = fsutil.ReplaceTilde(strings.TrimPrefix(setting, "file:"))
		if err != nil {
			return
		}
		var contents []byte
		contents, err = os.ReadFile(filePath)
		if err != nil {
			err = errors.Wrapf(err, "failed to read settings from file %q", filePath)
			return
		}
		for _, line := range strings.Split(string(contents), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, lineSetting := range strings.Split(line, ";") {
				newParamsSet, err = parseSetting(o, lineSetting, newParamsSet)
				if err != nil {
					return
				}
			}
		}
		return
	}

	parts := strings.SplitN(setting, "=", 2)
	if len(parts) != 2 {
		err = errors.Errorf("can't parse setting %q: each setting requires the format \"<param>=<value>\"", setting)
		return
	}
	paramPath, valueStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	scope, key := SplitScope(paramPath)
	current, found := o.Params.Get(scope, key)
	if !found {
		switch scope {
		case EnvironmentsScope:
			current = false
		case ImplementationsScope:
			current = ""
		case SymbolsScope:
			current = int64(0)
		default:
			err = errors.Errorf("can't set parameter %q (scope=%q): parameter %q has no default value",
				paramPath, scope, key)
			return
		}
	}
	var value any
	value, err = parseValue(current, valueStr)
	if err != nil {
		err = errors.WithMessagef(err, "failed to parse value %q for parameter %q (current value is %#v)",
			valueStr, paramPath, current)
		return
	}
	o.Params.Set(scope, key, value)
	newParamsSet = append(newParamsSet, paramPath)
	return
}

// parseValue parses valueStr into the same type as current.
func parseValue(current any, valueStr string) (value any, err error) {
	switch current.(type) {
	case int:
		var v int
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		value = v
	case int64:
		var v int64
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
		value = v
	case float64:
		var v float64
		err = json.Unmarshal([]byte(valueStr), &v)
		value = v
	case bool:
		var v bool
		err = json.Unmarshal([]byte(valueStr), &v)
		value = v
	case string:
		value = valueStr
	case []string:
		value = strings.Split(valueStr, ",")
	case []int:
		value = xslices.Map(strings.Split(valueStr, ","), func(str string) int {
			var asInt int
			if newErr := json.Unmarshal([]byte(strings.ReplaceAll(str, "_", "")), &asInt); newErr != nil {
				err = newErr
			}
			return asInt
		})
	default:
		err = errors.Errorf("don't know how to parse type %T", current)
	}
	return
}

// CreateSettingsFlag creates a string flag (named "set" if flagName is empty) whose usage lists the
// parameters currently defined in the root scope of o.
//
// Create the flag before calling flag.Parse, and pass its value to ParseSettings.
func CreateSettingsFlag(o *Options, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	parts := []string{fmt.Sprintf(
		`Set configuration parameters: a list of "param=value" separated by ";". `+
			`Scoped settings use %q to separate scopes, e.g. "MapFission/max_applications=1" or "environments/MKL=true". `+
			`An entry "file:settings.txt" reads settings from a file, one or more per line, "#" starts a comment. `+
			`Parameters that can be set:`, ScopeSeparator)}
	o.Params.Enumerate(func(scope, key string, value any) {
		if scope != RootScope {
			return
		}
		parts = append(parts, fmt.Sprintf("%q: default value is %v", key, value))
	})
	var settings string
	flag.StringVar(&settings, flagName, "", strings.Join(parts, "\n"))
	return &settings
}

// SprintSettings pretty-prints all parameters, one per line.
func SprintSettings(o *Options) string {
	var parts []string
	o.Params.Enumerate(func(scope, key string, value any) {
		if scope == RootScope {
			scope = ""
		}
		parts = append(parts, fmt.Sprintf("\t\"%s/%s\": (%T) %v", scope, key, value, value))
	})
	return strings.Join(parts, "\n")
}

// SprintModifiedSettings pretty-prints the parameters listed in paramsSet, as returned by ParseSettings.
func SprintModifiedSettings(o *Options, paramsSet []string) string {
	paramsSet = slices.Clone(paramsSet)
	slices.Sort(paramsSet)
	paramsSet = slices.Compact(paramsSet)
	var parts []string
	for _, paramPath := range paramsSet {
		scope, key := SplitScope(paramPath)
		value, found := o.Params.GetLocal(scope, key)
		if !found {
			continue
		}
		parts = append(parts, fmt.Sprintf("\t%q: (%T) %v", paramPath, value, value))
	}
	return strings.Join(parts, "\n")
}
