package cpu

import (
	"fmt"
	"math"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Relu computes the element-wise rectified linear unit: max(0, x).
func (cpu *CPUBackend) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x, func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	})
}

// Softmax computes the softmax along the given dimension.
// The maximum is subtracted per row before exponentiation for numerical
// stability. Negative dims count from the end.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return cpu.rowOp("softmax", x, dim, func(row []float64) {
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for i, v := range row {
			row[i] = math.Exp(v - maxVal)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	})
}

// LogSoftmax computes log(softmax(x)) along the given dimension.
// Computed directly in shifted log-space as x - max - log(sum(exp(x - max))),
// which stays finite where Log(Softmax(x)) would underflow to -Inf.
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return cpu.rowOp("logsoftmax", x, dim, func(row []float64) {
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v - maxVal)
		}
		logSum := math.Log(sum)
		for i, v := range row {
			row[i] = v - maxVal - logSum
		}
	})
}

// rowOp applies fn to every 1D slice of x taken along dim.
// fn receives the row in float64 and rewrites it in place.
func (cpu *CPUBackend) rowOp(op string, x *tensor.RawTensor, dim int, fn func(row []float64)) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: invalid dimension %d for %dD tensor", op, dim, ndim))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	dimSize := shape[dim]
	inner := 1
	for i := dim + 1; i < ndim; i++ {
		inner *= shape[i]
	}
	outer := x.NumElements() / (dimSize * inner)

	row := make([]float64, dimSize)

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsFloat32()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				base := o*dimSize*inner + i
				for j := 0; j < dimSize; j++ {
					row[j] = float64(in[base+j*inner])
				}
				fn(row)
				for j := 0; j < dimSize; j++ {
					out[base+j*inner] = float32(row[j])
				}
			}
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsFloat64()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				base := o*dimSize*inner + i
				for j := 0; j < dimSize; j++ {
					row[j] = in[base+j*inner]
				}
				fn(row)
				for j := 0; j < dimSize; j++ {
					out[base+j*inner] = row[j]
				}
			}
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}

	return result
}
