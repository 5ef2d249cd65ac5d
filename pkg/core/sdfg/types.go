// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

// NodeID is the stable handle of a node within its State.
// Removing nodes never changes the handles of the remaining ones.
type NodeID int

// EdgeID is the stable handle of a dataflow edge within its State.
type EdgeID int

// StateID is the stable handle of a State within its SDFG.
type StateID int

// InvalidNodeID is returned by queries that find no node.
const InvalidNodeID NodeID = -1

// ScheduleType determines how the iterations of a map are executed.
type ScheduleType int

//go:generate go tool enumer -type=ScheduleType -trimprefix=Schedule -json -text -output=gen_scheduletype_enumer.go types.go

const (
	// ScheduleDefault lets the code generator choose, based on the enclosing scope and storage.
	ScheduleDefault ScheduleType = iota
	ScheduleSequential
	ScheduleCPUMultiCore
	ScheduleGPUDevice
	ScheduleFPGADevice
	ScheduleUnrolled
)

// Language of the source code of a Tasklet.
type Language int

//go:generate go tool enumer -type=Language -trimprefix=Language -json -text -output=gen_language_enumer.go types.go

const (
	// LanguagePython tasklets hold assignments in the symbolic expression language, e.g. "__c = __a * __b".
	// They can be evaluated by the interpreter.
	LanguagePython Language = iota

	// LanguageCPP tasklets hold native C++ code, e.g. calls to vendor libraries.
	LanguageCPP
)
