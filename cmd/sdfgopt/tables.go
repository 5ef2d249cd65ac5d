// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/sdfg/pkg/library"
	"github.com/gomlx/sdfg/pkg/transformation"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// TableWithReds is a table where some rows (failures) are highlighted in red.
type TableWithReds struct {
	Table *lgtable.Table
	Count int
	Reds  map[int]bool
}

// Row appends a row to the table.
func (t *TableWithReds) Row(isRed bool, row ...string) {
	if isRed {
		t.Reds[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

func newPlainTableWithReds(alignments ...lipgloss.Position) *TableWithReds {
	t := &TableWithReds{
		Reds: make(map[int]bool),
	}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			switch {
			case t.Reds[row]:
				s = redRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
	return t
}

// sizeChange formats a count before and after processing.
func sizeChange(before, after int) string {
	if before == after {
		return humanize.Comma(int64(after))
	}
	return fmt.Sprintf("%s → %s", humanize.Comma(int64(before)), humanize.Comma(int64(after)))
}

// summaryTable renders one row per processed file.
func summaryTable(reports []*report) string {
	t := newPlainTableWithReds(lipgloss.Left, lipgloss.Right)
	t.Table.Headers("Input", "States", "Nodes", "Library Nodes", "Arrays", "Memory", "Rewrites", "Expanded", "Time", "Status")
	for _, r := range reports {
		status := "ok"
		if r.Err != nil {
			status = "failed"
		}
		rewrites := 0
		for _, count := range r.Applied {
			rewrites += count
		}
		t.Row(r.Err != nil,
			r.Input,
			sizeChange(r.Before.States, r.After.States),
			sizeChange(r.Before.Nodes, r.After.Nodes),
			sizeChange(r.Before.LibraryNodes, r.After.LibraryNodes),
			sizeChange(r.Before.Arrays, r.After.Arrays),
			humanize.Bytes(r.After.Bytes),
			humanize.Comma(int64(rewrites)),
			humanize.Comma(int64(r.Expanded)),
			r.Elapsed.Round(time.Microsecond).String(),
			status)
	}
	return t.Table.Render()
}

// transformationsTable renders the number of applications of each transformation, added over all files.
func transformationsTable(reports []*report) string {
	totals := make(map[string]int)
	for _, r := range reports {
		for name, count := range r.Applied {
			totals[name] += count
		}
	}
	t := newPlainTableWithReds(lipgloss.Left, lipgloss.Right)
	t.Table.Headers("Transformation", "Applications")
	for _, name := range slices.Sorted(maps.Keys(totals)) {
		t.Row(false, name, humanize.Comma(int64(totals[name])))
	}
	return t.Table.Render()
}

// registryTable lists the registered transformations and library node kinds with their implementations
// and whether they are usable with the given availability.
func registryTable(availability library.Availability) string {
	t := newPlainTableWithReds(lipgloss.Left)
	t.Table.Headers("Type", "Name", "Implementation", "Environments")
	for _, name := range transformation.Names() {
		t.Row(false, "transformation", name, "", "")
	}
	for _, kindName := range library.Kinds() {
		kind, _ := library.LookupKind(kindName)
		for _, implName := range kind.Implementations() {
			impl, _ := kind.Implementation(implName)
			envs := fmt.Sprintf("%v", impl.Environments)
			if len(impl.Environments) == 0 {
				envs = "-"
			}
			if implName == kind.DefaultImplementation {
				implName += " (default)"
			}
			t.Row(!impl.IsUsable(availability), "library", kindName, implName, envs)
		}
	}
	return t.Table.Render()
}
