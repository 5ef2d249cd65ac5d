// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"github.com/gomlx/sdfg/pkg/support/fsutil"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclFile is the schema of a configuration file:
//
//	debugprint       = true
//	validate         = true
//	max_applications = 0
//	symbols          = { N = 128, M = 64 }
//
//	environment "MKL" {
//	  available = true
//	}
//
//	library "MatMul" {
//	  implementation = "MKL"
//	}
//
//	transformation "GlobalToLocal" {
//	  params = { from = "FPGAGlobal", to = "FPGALocal" }
//	}
type hclFile struct {
	DebugPrint      *bool             `hcl:"debugprint,optional"`
	Validate        *bool             `hcl:"validate,optional"`
	MaxApplications *int              `hcl:"max_applications,optional"`
	Symbols         map[string]int64  `hcl:"symbols,optional"`
	Environments    []*hclEnvironment `hcl:"environment,block"`
	Libraries       []*hclLibrary     `hcl:"library,block"`
	Transformations []*hclTransform   `hcl:"transformation,block"`
}

type hclEnvironment struct {
	Name      string `hcl:"name,label"`
	Available bool   `hcl:"available"`
}

type hclLibrary struct {
	Kind           string `hcl:"kind,label"`
	Implementation string `hcl:"implementation"`
}

type hclTransform struct {
	Name   string    `hcl:"name,label"`
	Params cty.Value `hcl:"params,optional"`
}

// LoadFile reads the HCL configuration file at path into o, overriding the values it sets.
// A leading "~" in path is replaced by the user's home directory.
func (o *Options) LoadFile(path string) error {
	path, err := fsutil.ReplaceTilde(path)
	if err != nil {
		return err
	}
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return errors.Wrapf(diags, "failed to parse configuration file %q", path)
	}
	return o.loadBody(f.Body, path)
}

// LoadHCL parses an in-memory HCL configuration into o. filename is only used in error messages.
func (o *Options) LoadHCL(src []byte, filename string) error {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return errors.Wrapf(diags, "failed to parse configuration %q", filename)
	}
	return o.loadBody(f.Body, filename)
}

func (o *Options) loadBody(body hcl.Body, filename string) error {
	var parsed hclFile
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return errors.Wrapf(diags, "failed to decode configuration %q", filename)
	}
	if parsed.DebugPrint != nil {
		o.Params.Set(RootScope, ParamDebugPrint, *parsed.DebugPrint)
	}
	if parsed.Validate != nil {
		o.Params.Set(RootScope, ParamValidate, *parsed.Validate)
	}
	if parsed.MaxApplications != nil {
		o.Params.Set(RootScope, ParamMaxApplications, *parsed.MaxApplications)
	}
	for name, value := range parsed.Symbols {
		o.WithSymbol(name, value)
	}
	for _, env := range parsed.Environments {
		o.WithEnvironment(env.Name, env.Available)
	}
	for _, lib := range parsed.Libraries {
		o.WithDefaultImplementation(lib.Kind, lib.Implementation)
	}
	for _, xf := range parsed.Transformations {
		if xf.Params.IsNull() {
			continue
		}
		ty := xf.Params.Type()
		if !ty.IsObjectType() && !ty.IsMapType() {
			return errors.Errorf("configuration %q: params of transformation %q must be an object, got %s",
				filename, xf.Name, ty.FriendlyName())
		}
		scope := JoinScope(RootScope, xf.Name)
		it := xf.Params.ElementIterator()
		for it.Next() {
			key, value := it.Element()
			native, err := ctyToNative(value)
			if err != nil {
				return errors.WithMessagef(err, "configuration %q: transformation %q parameter %q",
					filename, xf.Name, key.AsString())
			}
			o.Params.Set(scope, key.AsString(), native)
		}
	}
	return nil
}

// ctyToNative converts a primitive cty value: strings, bools and numbers (int if integral, float64 otherwise).
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, errors.New("value is null or unknown")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		var b bool
		err := gocty.FromCtyValue(v, &b)
		return b, err
	case cty.Number:
		if bf := v.AsBigFloat(); bf.IsInt() {
			var i int
			if err := gocty.FromCtyValue(v, &i); err == nil {
				return i, nil
			}
		}
		var f float64
		err := gocty.FromCtyValue(v, &f)
		return f, err
	}
	return nil, errors.Errorf("unsupported type %s", v.Type().FriendlyName())
}
