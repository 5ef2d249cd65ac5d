// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blas

import (
	"fmt"
	"strconv"

	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/library"
)

// LocationGPU is the key of LibraryNode.Location holding the GPU the node runs on (default "0").
const LocationGPU = "gpu"

var (
	// IntelMKL is the Intel Math Kernel Library environment, providing the CBLAS interface.
	IntelMKL = library.RegisterEnvironment(&library.Environment{Name: "IntelMKL"})

	// CuBLAS is the NVIDIA cuBLAS environment. Calls need a per-device handle, see cublasHandleSetup.
	CuBLAS = library.RegisterEnvironment(&library.Environment{Name: "cuBLAS", HandleSetupCode: cublasHandleSetup})
)

// cublasHandleSetup returns the code selecting the device of node, and its cuBLAS handle bound to the
// current stream.
func cublasHandleSetup(node *sdfg.LibraryNode) (string, error) {
	device := 0
	if location, found := node.Location[LocationGPU]; found && location != "" {
		var err error
		device, err = strconv.Atoi(location)
		if err != nil {
			return "", sdfg.Validationf("%s: invalid GPU identifier %q", node, location)
		}
	}
	return fmt.Sprintf(`const int __dace_cuda_device = %d;
cublasHandle_t &__dace_cublas_handle = __state->cublas_handle.Get(__dace_cuda_device);
cublasSetStream(__dace_cublas_handle, __dace_current_stream);
`, device), nil
}
