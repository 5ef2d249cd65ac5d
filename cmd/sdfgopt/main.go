// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// sdfgopt reads SDFGs in JSON format, applies transformations, expands library nodes and writes the results.
//
// Example:
//
//	sdfgopt -config=opt.hcl -set="debugprint=true;MapFission/max_applications=1" \
//		-xforms=MapFission,GlobalToLocal -expand -out_dir=/tmp/optimized program.json more_programs/
//
// Directories given as inputs are replaced by the ".json" files they contain.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/gomlx/sdfg/internal/workerspool"
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/support/fsutil"
	"github.com/janpfeifer/must"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	// Registered transformations and library node kinds.
	_ "github.com/gomlx/sdfg/pkg/library/blas"
	_ "github.com/gomlx/sdfg/pkg/transformation/dataflow"
	_ "github.com/gomlx/sdfg/pkg/transformation/interstate"
)

// EnvSettings is the environment variable with settings applied before the ones given by -set.
// It can be defined in the -env_file.
const EnvSettings = "SDFGOPT_SETTINGS"

var (
	flagConfig = flag.String("config", "", "HCL configuration file with symbols, environments, "+
		"default implementations and transformation parameters.")
	flagXForms = flag.String("xforms", "", "Comma-separated list of transformations to apply, in order. "+
		"Each one is applied repeatedly until no candidate is left (or its max_applications is reached). "+
		"See -list for the registered transformations.")
	flagExpand = flag.Bool("expand", false, "Expand all library nodes and check the result has none left.")
	flagStrict = flag.Bool("strict", false, "Apply transformations in strict mode.")
	flagOutput = flag.String("o", "", "Output file. Only valid with a single input file. "+
		"If not set, the output path is given by -out_dir and -suffix.")
	flagOutDir  = flag.String("out_dir", "", "Directory where to write the outputs. Defaults to the directory of each input.")
	flagSuffix  = flag.String("suffix", ".opt", "Suffix added to the input file name (before the extension) to form the output file name.")
	flagDryRun  = flag.Bool("dry_run", false, "Process the inputs but don't write any output.")
	flagEnvFile = flag.String("env_file", ".env", fmt.Sprintf("Environment file to load, if it exists. "+
		"Settings in $%s are applied before -set.", EnvSettings))
	flagParallelism = flag.Int("parallelism", 0, "Number of inputs processed in parallel. "+
		"0 uses the number of CPUs, -1 means unlimited.")
	flagProgress = flag.Bool("progress", true, "Display a progress bar when processing more than one input.")
	flagList     = flag.Bool("list", false, "List the registered transformations and library node implementations, and exit.")
)

func main() {
	klog.InitFlags(nil)
	opts := config.New()
	flagSettings := config.CreateSettingsFlag(opts, "set")
	flag.Parse()

	if err := loadEnvFile(*flagEnvFile); err != nil {
		fatalf("%+v", err)
	}
	if *flagConfig != "" {
		must.M(opts.LoadFile(*flagConfig))
	}
	settings := *flagSettings
	if envSettings := os.Getenv(EnvSettings); envSettings != "" {
		settings = envSettings + ";" + settings
	}
	paramsSet, err := config.ParseSettings(opts, settings)
	if err != nil {
		fatalf("%+v", err)
	}
	if len(paramsSet) > 0 {
		klog.V(1).Infof("Settings:\n%s", config.SprintModifiedSettings(opts, paramsSet))
	}

	if *flagList {
		fmt.Println(titleStyle.Render("Registry"))
		fmt.Println(registryTable(opts))
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fatalf("Missing input SDFG files or directories. See 'sdfgopt -help'.")
	}
	inputs := must.M1(fsutil.ExpandInputs(args, ".json"))
	if len(inputs) == 0 {
		fatalf("No \".json\" files found in %q.", args)
	}
	if *flagOutput != "" && len(inputs) > 1 {
		fatalf("-o can only be used with a single input, got %d inputs.", len(inputs))
	}
	if *flagOutput == "" && *flagOutDir == "" && *flagSuffix == "" && !*flagDryRun {
		fatalf("Refusing to overwrite the inputs: set -o, -out_dir or -suffix.")
	}

	p := &pipeline{
		opts:   opts,
		xforms: splitList(*flagXForms),
		expand: *flagExpand,
		strict: *flagStrict,
	}
	reports := make([]*report, len(inputs))
	var bar *progressbar.ProgressBar
	if *flagProgress && len(inputs) > 1 {
		bar = progressbar.Default(int64(len(inputs)), "Optimizing")
	}
	pool := workerspool.New(*flagParallelism)
	for ii, input := range inputs {
		pool.Go(func() {
			reports[ii] = p.run(input, outputPath(input))
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	}
	pool.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	numFailed := 0
	for _, r := range reports {
		if r.Err != nil {
			numFailed++
			color.Red("%s: %v", r.Input, r.Err)
			for _, failure := range r.Failures[min(1, len(r.Failures)):] {
				color.Red("\t%v", failure)
			}
		} else if r.Output != "" {
			color.Green("%s: written to %s (%s)", r.Input, r.Output, r.Elapsed)
		}
	}
	fmt.Println(titleStyle.Render("Summary"))
	fmt.Println(summaryTable(reports))
	if len(p.xforms) > 0 {
		fmt.Println(titleStyle.Render("Transformations"))
		fmt.Println(transformationsTable(reports))
	}
	if numFailed > 0 {
		fatalf("%d of %d input(s) failed.", numFailed, len(reports))
	}
}

// outputPath returns where to write the result for input, or "" if nothing is to be written.
func outputPath(input string) string {
	switch {
	case *flagDryRun:
		return ""
	case *flagOutput != "":
		return *flagOutput
	}
	return fsutil.OutputPath(input, *flagOutDir, *flagSuffix)
}

// loadEnvFile loads the environment variables defined in path, if it exists.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	path, err := fsutil.ReplaceTilde(path)
	if err != nil {
		return err
	}
	exists, err := fsutil.FileExists(path)
	if err != nil || !exists {
		return err
	}
	klog.V(1).Infof("Loading environment from %q", path)
	return godotenv.Load(path)
}

// splitList splits a comma-separated list, dropping empty elements.
func splitList(list string) []string {
	var parts []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func fatalf(format string, args ...any) {
	klog.Flush()
	_, _ = color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
