package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binaryOp applies an element-wise binary operation with broadcasting.
// Same-shape inputs take a straight loop; mismatched shapes fall back to
// stride-0 broadcast indexing.
func (cpu *CPUBackend) binaryOp(
	op string,
	a, b *tensor.RawTensor,
	opF32 func(x, y float32) float32,
	opF64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		switch a.DType() {
		case tensor.Float32:
			av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
			for i := range out {
				out[i] = opF32(av[i], bv[i])
			}
		case tensor.Float64:
			av, bv, out := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
			for i := range out {
				out[i] = opF64(av[i], bv[i])
			}
		default:
			panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
		}
		return result
	}

	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)

	switch a.DType() {
	case tensor.Float32:
		av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		for i := range out {
			out[i] = opF32(
				av[computeFlatIndex(i, outStrides, aStrides)],
				bv[computeFlatIndex(i, outStrides, bStrides)])
		}
	case tensor.Float64:
		av, bv, out := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		for i := range out {
			out[i] = opF64(
				av[computeFlatIndex(i, outStrides, aStrides)],
				bv[computeFlatIndex(i, outStrides, bStrides)])
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}
