package cpu

import (
	"fmt"
	"math"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Exp computes the element-wise exponential.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("exp", x, math.Exp)
}

// Log computes the element-wise natural logarithm.
// Panics on non-positive input.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("log", x, func(v float64) float64 {
		if v <= 0 {
			panic(fmt.Sprintf("log: non-positive input %v", v))
		}
		return math.Log(v)
	})
}

// Sqrt computes the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sqrt", x, math.Sqrt)
}

// Rsqrt computes the element-wise reciprocal square root (1/sqrt(x)).
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("rsqrt", x, func(v float64) float64 {
		return 1.0 / math.Sqrt(v)
	})
}

// unaryOp applies an element-wise unary function.
func (cpu *CPUBackend) unaryOp(op string, x *tensor.RawTensor, fn func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsFloat32()
		for i := range out {
			out[i] = float32(fn(float64(in[i])))
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsFloat64()
		for i := range out {
			out[i] = fn(in[i])
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}

	return result
}
