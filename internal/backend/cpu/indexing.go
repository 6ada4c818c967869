package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Embedding gathers rows of a 2D weight table by integer indices.
// weight has shape (vocab, dim), indices is an int32 tensor of any shape;
// the result appends dim to the indices' shape.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D (vocab, dim), got %v", wShape))
	}
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}

	vocab, dim := wShape[0], wShape[1]

	outShape := append(indices.Shape().Clone(), dim)
	result, err := tensor.NewRaw(outShape, weight.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("embedding: %v", err))
	}

	idx := indices.AsInt32()

	switch weight.DType() {
	case tensor.Float32:
		w, out := weight.AsFloat32(), result.AsFloat32()
		for i, id := range idx {
			if id < 0 || int(id) >= vocab {
				panic(fmt.Sprintf("embedding: index %d out of bounds [0, %d)", id, vocab))
			}
			copy(out[i*dim:(i+1)*dim], w[int(id)*dim:(int(id)+1)*dim])
		}
	case tensor.Float64:
		w, out := weight.AsFloat64(), result.AsFloat64()
		for i, id := range idx {
			if id < 0 || int(id) >= vocab {
				panic(fmt.Sprintf("embedding: index %d out of bounds [0, %d)", id, vocab))
			}
			copy(out[i*dim:(i+1)*dim], w[int(id)*dim:(int(id)+1)*dim])
		}
	default:
		panic(fmt.Sprintf("embedding: unsupported weight dtype %s", weight.DType()))
	}

	return result
}

// MaskedFill returns a copy of x with value written wherever the mask is
// zero. The mask must broadcast to x's shape; non-zero mask positions keep
// x's values. The input is never modified.
func (cpu *CPUBackend) MaskedFill(x, mask *tensor.RawTensor, value any) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), mask.Shape())
	if err != nil {
		panic(fmt.Sprintf("maskedfill: %v", err))
	}
	if !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("maskedfill: mask %v does not broadcast to input %v", mask.Shape(), x.Shape()))
	}
	if mask.DType() != x.DType() {
		panic(fmt.Sprintf("maskedfill: dtype mismatch: input %s vs mask %s", x.DType(), mask.DType()))
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maskedfill: %v", err))
	}

	v := toFloat64("maskedfill", value)
	outStrides := outShape.ComputeStrides()
	maskStrides := computeBroadcastStridesForShape(mask.Shape(), outShape)

	switch x.DType() {
	case tensor.Float32:
		in, m, out := x.AsFloat32(), mask.AsFloat32(), result.AsFloat32()
		vf := float32(v)
		for i := range out {
			if m[computeFlatIndex(i, outStrides, maskStrides)] == 0 {
				out[i] = vf
			} else {
				out[i] = in[i]
			}
		}
	case tensor.Float64:
		in, m, out := x.AsFloat64(), mask.AsFloat64(), result.AsFloat64()
		for i := range out {
			if m[computeFlatIndex(i, outStrides, maskStrides)] == 0 {
				out[i] = v
			} else {
				out[i] = in[i]
			}
		}
	default:
		panic(fmt.Sprintf("maskedfill: unsupported dtype %s", x.DType()))
	}

	return result
}
