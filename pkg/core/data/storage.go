// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package data

// StorageType is the memory class where an array is allocated.
type StorageType int

//go:generate go tool enumer -type=StorageType -trimprefix=Storage -json -text -output=gen_storagetype_enumer.go storage.go

const (
	// StorageDefault lets the code generator decide, based on the enclosing scope.
	StorageDefault StorageType = iota

	// StorageRegister is an on-chip local scalar (or tiny array).
	StorageRegister

	// StorageCPUHeap is host-global memory.
	StorageCPUHeap

	// StorageCPUThreadLocal is host-local memory.
	StorageCPUThreadLocal

	// StorageGPUGlobal is device-global memory.
	StorageGPUGlobal

	// StorageGPUShared is device-local (shared) memory.
	StorageGPUShared

	// StorageFPGAGlobal is off-chip memory of an FPGA (device-global).
	StorageFPGAGlobal

	// StorageFPGALocal is on-chip memory of an FPGA.
	StorageFPGALocal
)

// IsGPU returns whether the storage lives on a GPU device.
func (s StorageType) IsGPU() bool {
	return s == StorageGPUGlobal || s == StorageGPUShared
}

// IsFPGA returns whether the storage lives on an FPGA device.
func (s StorageType) IsFPGA() bool {
	return s == StorageFPGAGlobal || s == StorageFPGALocal
}

// IsHost returns whether the storage is accessible from the host CPU.
func (s StorageType) IsHost() bool {
	return s == StorageDefault || s == StorageCPUHeap || s == StorageCPUThreadLocal || s == StorageRegister
}

// Lifetime of a transient array allocation.
type Lifetime int

//go:generate go tool enumer -type=Lifetime -trimprefix=Lifetime -json -text -output=gen_lifetime_enumer.go storage.go

const (
	// LifetimeScope allocates the array in the innermost scope that uses it.
	LifetimeScope Lifetime = iota

	// LifetimeState allocates the array for the duration of a state.
	LifetimeState

	// LifetimeSDFG allocates the array for the duration of the SDFG call.
	LifetimeSDFG

	// LifetimeGlobal allocates the array once, across calls.
	LifetimeGlobal
)
