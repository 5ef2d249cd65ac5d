// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transformation

import (
	"github.com/gomlx/sdfg/pkg/config"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Driver applies transformations to SDFGs.
//
// It is not safe for concurrent use on the same SDFG: transformations mutate the graph in place.
type Driver struct {
	// Options configure the transformations created by name (ApplyAll), the application limits and
	// whether to validate after each application. If nil, config.New() is used.
	Options *config.Options

	// Strict is passed to CanBeApplied.
	Strict bool

	counts map[string]int
}

// NewDriver returns a driver configured by opts.
func NewDriver(opts *config.Options) *Driver {
	if opts == nil {
		opts = config.New()
	}
	return &Driver{Options: opts}
}

func (d *Driver) options() *config.Options {
	if d.Options == nil {
		d.Options = config.New()
	}
	return d.Options
}

// Counts returns the number of applications of each transformation name since the driver was created.
func (d *Driver) Counts() map[string]int {
	counts := make(map[string]int, len(d.counts))
	for name, count := range d.counts {
		counts[name] = count
	}
	return counts
}

// ApplyFirst applies xf at its first candidate in g, and returns whether there was one.
// If validation after application is enabled, a validation failure is returned as an error.
func (d *Driver) ApplyFirst(g *sdfg.SDFG, xf Transformation) (bool, error) {
	m := First(g, xf, d.Strict)
	if m == nil {
		return false, nil
	}
	return true, d.apply(g, xf, m)
}

// apply xf at m, followed by propagation and validation if configured.
func (d *Driver) apply(g *sdfg.SDFG, xf Transformation, m *Match) error {
	if klog.V(2).Enabled() {
		klog.Infof("applying %s", MatchString(xf, m))
	}
	xf.Apply(m)
	if !xf.AnnotatesMemlets() {
		sdfg.PropagateMemlets(g)
	}
	if d.counts == nil {
		d.counts = make(map[string]int)
	}
	d.counts[xf.Name()]++
	if d.options().ValidateAfterApply() {
		if err := sdfg.Validate(g); err != nil {
			return errors.WithMessagef(err, "after applying %s", xf.Name())
		}
	}
	return nil
}

// ApplyRepeated applies xf until no candidate remains, or maxApplications is reached (if > 0).
// It returns the number of applications.
//
// Each application re-enumerates the candidates, since the previous rewrite may have created or
// destroyed occurrences.
func (d *Driver) ApplyRepeated(g *sdfg.SDFG, xf Transformation, maxApplications int) (int, error) {
	count := 0
	for maxApplications <= 0 || count < maxApplications {
		m := First(g, xf, d.Strict)
		if m == nil {
			break
		}
		if err := d.apply(g, xf, m); err != nil {
			return count + 1, err
		}
		count++
	}
	if d.options().DebugPrint() && count > 0 {
		klog.Infof("%s: %d application(s)", xf.Name(), count)
	}
	return count, nil
}

// ApplyAll creates each named transformation from the registry and applies it repeatedly, in the given
// order. The limit of applications of each one is read from the "max_applications" parameter of its scope.
//
// It returns the total number of applications.
func (d *Driver) ApplyAll(g *sdfg.SDFG, names ...string) (int, error) {
	total := 0
	for _, name := range names {
		if !IsRegistered(name) {
			return total, errors.Errorf("unknown transformation %q, registered transformations are %q", name, Names())
		}
		xf := New(name, d.options())
		count, err := d.ApplyRepeated(g, xf, d.options().MaxApplications(name))
		total += count
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
