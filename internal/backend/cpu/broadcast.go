package cpu

import (
	"github.com/trellis-ml/trellis/internal/tensor"
)

// computeBroadcastStridesForShape computes strides for broadcasting a shape
// to outShape. Dimensions of size 1 (and padded leading dimensions) get
// stride 0, so they repeat along the output.
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim

	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0 // Padded dimension
		case inShape[inIdx] == 1:
			strides[i] = 0 // Broadcast dimension
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// computeFlatIndex maps a flat output index to the flat index in a source
// array, given the output strides and the (broadcast-adjusted) input strides.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := 0; i < len(outStrides); i++ {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}
