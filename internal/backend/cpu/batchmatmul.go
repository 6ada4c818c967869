package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// BatchMatMul performs batched matrix multiplication over the trailing two
// dimensions:
//
//	3D: [B, M, K] @ [B, K, N] -> [B, M, N]
//	4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// All leading (batch) dimensions must match exactly. Each batch slice is a
// contiguous row-major matrix, handed to the same Gemm as MatMul.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()

	if len(aShape) < 3 || len(aShape) != len(bShape) {
		panic(fmt.Sprintf("batchmatmul: requires 3D/4D tensors of equal rank, got %v and %v", aShape, bShape))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("batchmatmul: dtype mismatch: %s vs %s", a.DType(), b.DType()))
	}

	ndim := len(aShape)
	batch := 1
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batchmatmul: batch dimension %d mismatch: %v vs %v", i, aShape, bShape))
		}
		batch *= aShape[i]
	}

	m, k, n := aShape[ndim-2], aShape[ndim-1], bShape[ndim-1]
	if k != bShape[ndim-2] {
		panic(fmt.Sprintf("batchmatmul: shape mismatch: %v @ %v (inner dimensions %d != %d)",
			aShape, bShape, k, bShape[ndim-2]))
	}

	outShape := aShape.Clone()
	outShape[ndim-1] = n

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("batchmatmul: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		for i := 0; i < batch; i++ {
			aOff, bOff, cOff := i*m*k, i*k*n, i*m*n
			gemmF32(m, k, n, av[aOff:aOff+m*k], bv[bOff:bOff+k*n], out[cOff:cOff+m*n])
		}
	case tensor.Float64:
		av, bv, out := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		for i := 0; i < batch; i++ {
			aOff, bOff, cOff := i*m*k, i*k*n, i*m*n
			gemmF64(m, k, n, av[aOff:aOff+m*k], bv[bOff:bOff+k*n], out[cOff:cOff+m*n])
		}
	default:
		panic(fmt.Sprintf("batchmatmul: unsupported dtype %s", a.DType()))
	}

	return result
}
