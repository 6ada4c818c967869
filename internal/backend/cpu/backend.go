// Package cpu implements the CPU backend with BLAS-backed matrix kernels.
package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
// Matrix multiplication is delegated to gonum's BLAS implementation;
// everything else runs as plain strided loops.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Reshape returns a tensor with the same data but a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}

	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
// With no axes given, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	transposeData(result, t, axes)

	return result
}

// transposeData copies elements into the permuted layout.
// For each output position, the source index is recovered by walking the
// output coordinates through the permuted input strides.
func transposeData(dst, src *tensor.RawTensor, axes []int) {
	outShape := dst.Shape()
	outStrides := outShape.ComputeStrides()
	inStrides := src.Strides()

	// inStridesPermuted[i] = stride of the source dimension that output
	// dimension i was taken from.
	inStridesPermuted := make([]int, len(axes))
	for i, ax := range axes {
		inStridesPermuted[i] = inStrides[ax]
	}

	n := dst.NumElements()
	switch src.DType() {
	case tensor.Float32:
		in, out := src.AsFloat32(), dst.AsFloat32()
		for i := 0; i < n; i++ {
			out[i] = in[computeFlatIndex(i, outStrides, inStridesPermuted)]
		}
	case tensor.Float64:
		in, out := src.AsFloat64(), dst.AsFloat64()
		for i := 0; i < n; i++ {
			out[i] = in[computeFlatIndex(i, outStrides, inStridesPermuted)]
		}
	case tensor.Int32:
		in, out := src.AsInt32(), dst.AsInt32()
		for i := 0; i < n; i++ {
			out[i] = in[computeFlatIndex(i, outStrides, inStridesPermuted)]
		}
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", src.DType()))
	}
}
