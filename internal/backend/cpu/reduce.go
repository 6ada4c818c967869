package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// SumDim sums along a dimension. With keepDim the reduced dimension is
// retained with size 1. Negative dims count from the end.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceOp("sumdim", x, dim, keepDim, 1)
}

// MeanDim averages along a dimension. With keepDim the reduced dimension is
// retained with size 1.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	d := dim
	if d < 0 {
		d += len(shape)
	}
	if d < 0 || d >= len(shape) {
		panic(fmt.Sprintf("meandim: invalid dimension %d for %dD tensor", dim, len(shape)))
	}
	return cpu.reduceOp("meandim", x, d, keepDim, float64(shape[d]))
}

// reduceOp sums along dim and divides by divisor (1 for plain sums).
func (cpu *CPUBackend) reduceOp(op string, x *tensor.RawTensor, dim int, keepDim bool, divisor float64) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: invalid dimension %d for %dD tensor", op, dim, ndim))
	}

	outShape := make(tensor.Shape, 0, ndim)
	for i, s := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, s)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1} // Reducing a 1D tensor without keepDim
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	dimSize := shape[dim]
	inner := 1
	for i := dim + 1; i < ndim; i++ {
		inner *= shape[i]
	}
	outer := x.NumElements() / (dimSize * inner)

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsFloat32()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				base := o*dimSize*inner + i
				sum := 0.0
				for j := 0; j < dimSize; j++ {
					sum += float64(in[base+j*inner])
				}
				out[o*inner+i] = float32(sum / divisor)
			}
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsFloat64()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				base := o*dimSize*inner + i
				sum := 0.0
				for j := 0; j < dimSize; j++ {
					sum += in[base+j*inner]
				}
				out[o*inner+i] = sum / divisor
			}
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}

	return result
}
