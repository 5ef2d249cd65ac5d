// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blas

import (
	"strings"
	"text/template"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sdfg/pkg/core/sdfg"
	"github.com/gomlx/sdfg/pkg/core/symbolic"
	"github.com/pkg/errors"
)

// gemmCall holds the arguments of a native GEMM call, after the operand swap for row-major outputs.
type gemmCall struct {
	Func, DType               string
	TransA, TransB            string
	M, N, K                   symbolic.Expr
	Alpha, Beta               string
	X, Y                      string
	LDA, LDB, LDC             symbolic.Expr
	Batched                   bool
	StrideA, StrideB, StrideC symbolic.Expr
	Batch                     symbolic.Expr
}

var (
	mklTemplate = template.Must(template.New("mkl").Parse(
		`cblas_{{.Func}}{{if .Batched}}_batch_strided{{end}}(CblasColMajor, {{.TransA}}, {{.TransB}}, ` +
			`{{.M}}, {{.N}}, {{.K}}, {{.Alpha}}, ` +
			`{{.X}}, {{.LDA}}{{if .Batched}}, {{.StrideA}}{{end}}, ` +
			`{{.Y}}, {{.LDB}}{{if .Batched}}, {{.StrideB}}{{end}}, ` +
			`{{.Beta}}, _c, {{.LDC}}{{if .Batched}}, {{.StrideC}}, {{.Batch}}{{end}});`))

	cublasTemplate = template.Must(template.New("cublas").Parse(
		`cublas{{.Func}}{{if .Batched}}StridedBatched{{end}}(__dace_cublas_handle,
    CUBLAS_OP_{{.TransA}}, CUBLAS_OP_{{.TransB}},
    {{.M}}, {{.N}}, {{.K}},
    {{.Alpha}},
    ({{.DType}}*){{.X}}, {{.LDA}}{{if .Batched}}, {{.StrideA}}{{end}},
    ({{.DType}}*){{.Y}}, {{.LDB}}{{if .Batched}}, {{.StrideB}}{{end}},
    {{.Beta}},
    ({{.DType}}*)_c, {{.LDC}}{{if .Batched}}, {{.StrideC}},
    {{.Batch}}{{end}});`))
)

// prepareGemm collects the dimensions, layout and batch arguments of the GEMM call implementing node.
// The arrays must be reachable through memlet paths from (or to) access nodes.
func prepareGemm(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) (*gemmCall, dtypes.DType, error) {
	a, b, c, err := operands(g, state, node)
	if err != nil {
		return nil, dtypes.InvalidDType, err
	}
	dtype, err := elementType(node, a, b)
	if err != nil {
		return nil, dtypes.InvalidDType, err
	}
	accessA, okA := state.FindInputAccess(a.edge)
	accessB, okB := state.FindInputAccess(b.edge)
	accessC, okC := state.FindOutputAccess(c.edge)
	if !okA || !okB || !okC {
		return nil, dtypes.InvalidDType, sdfg.Unsupportedf("%s: unsupported input/output arrays, operands must be connected to access nodes", node)
	}
	descA, descB, descC := g.Array(accessA.Data), g.Array(accessB.Data), g.Array(accessC.Data)
	gemm, err := GemmOptions(descA, descB, descC)
	if err != nil {
		return nil, dtypes.InvalidDType, errors.WithMessagef(err, "%s", node)
	}
	batch, err := BatchOptions(descA, descB, descC)
	if err != nil {
		return nil, dtypes.InvalidDType, errors.WithMessagef(err, "%s", node)
	}

	call := &gemmCall{
		TransA: gemm.TransA, TransB: gemm.TransB,
		M: a.rows(), N: b.cols(), K: a.cols(),
		X: ConnA, Y: ConnB,
		LDA: gemm.LDA, LDB: gemm.LDB, LDC: gemm.LDC,
	}
	if batch != nil {
		call.Batched = true
		call.StrideA, call.StrideB, call.StrideC = batch.StrideA, batch.StrideB, batch.StrideC
		call.Batch = batch.Count
	}
	if gemm.Swap {
		call.X, call.Y = call.Y, call.X
		call.TransA, call.TransB = call.TransB, call.TransA
		call.LDA, call.LDB = call.LDB, call.LDA
		call.M, call.N = call.N, call.M
		call.StrideA, call.StrideB = call.StrideB, call.StrideA
	}
	return call, dtype, nil
}

func render(tmpl *template.Template, call *gemmCall) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, call); err != nil {
		return "", errors.Wrapf(err, "rendering %s call", tmpl.Name())
	}
	return sb.String(), nil
}

// ExpandMKL expands a MatMul node into a tasklet calling cblas_?gemm (cblas_?gemm_batch_strided if batched)
// of the Intel MKL, in column-major mode.
func ExpandMKL(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) (sdfg.Node, error) {
	call, dtype, err := prepareGemm(g, state, node)
	if err != nil {
		return nil, err
	}
	switch dtype {
	case dtypes.Float32:
		call.Alpha, call.Beta = "1.0f", "0.0f"
	case dtypes.Float64:
		call.Alpha, call.Beta = "1.0", "0.0"
	case dtypes.Complex64:
		call.Alpha = "dace::blas::BlasConstants::Get().Complex64Pone()"
		call.Beta = "dace::blas::BlasConstants::Get().Complex64Zero()"
	case dtypes.Complex128:
		call.Alpha = "dace::blas::BlasConstants::Get().Complex128Pone()"
		call.Beta = "dace::blas::BlasConstants::Get().Complex128Zero()"
	default:
		return nil, sdfg.Unsupportedf("%s: unsupported type for MKL matrix multiplication: %s", node, dtype)
	}
	prefix, _ := blasType(dtype)
	call.Func = strings.ToLower(prefix) + "gemm"
	for _, trans := range []*string{&call.TransA, &call.TransB} {
		if *trans == Transpose {
			*trans = "CblasTrans"
		} else {
			*trans = "CblasNoTrans"
		}
	}
	code, err := render(mklTemplate, call)
	if err != nil {
		return nil, err
	}
	return sdfg.NewTasklet(node.Name, node.InConnectors(), node.OutConnectors(), code, sdfg.LanguageCPP), nil
}

// cublasTypes maps the supported element types to their CUDA type and the name of their constants in
// dace::blas::CublasConstants.
var cublasTypes = map[dtypes.DType]struct{ cType, factor string }{
	dtypes.Float16:    {"__half", "Half"},
	dtypes.Float32:    {"float", "Float"},
	dtypes.Float64:    {"double", "Double"},
	dtypes.Complex64:  {"cuComplex", "Complex64"},
	dtypes.Complex128: {"cuDoubleComplex", "Complex128"},
}

// ExpandCuBLAS expands a MatMul node into a tasklet calling cublas?gemm (cublas?gemmStridedBatched if
// batched), preceded by the cuBLAS handle setup for the node's GPU.
func ExpandCuBLAS(g *sdfg.SDFG, state *sdfg.State, node *sdfg.LibraryNode) (sdfg.Node, error) {
	call, dtype, err := prepareGemm(g, state, node)
	if err != nil {
		return nil, err
	}
	types, found := cublasTypes[dtype]
	if !found {
		return nil, sdfg.Unsupportedf("%s: unsupported type for cuBLAS matrix multiplication: %s", node, dtype)
	}
	prefix, _ := blasType(dtype)
	call.Func = prefix + "gemm"
	call.DType = types.cType
	call.Alpha = "dace::blas::CublasConstants::Get(__dace_cuda_device)." + types.factor + "Pone()"
	call.Beta = "dace::blas::CublasConstants::Get(__dace_cuda_device)." + types.factor + "Zero()"

	setup, err := CuBLAS.HandleSetupCode(node)
	if err != nil {
		return nil, err
	}
	code, err := render(cublasTemplate, call)
	if err != nil {
		return nil, err
	}
	return sdfg.NewTasklet(node.Name, node.InConnectors(), node.OutConnectors(), setup+code, sdfg.LanguageCPP), nil
}
