package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// PaddingMask builds a 0/1 float mask from token ids: 1 where the id
// differs from padID, 0 at padding positions.
//
// ids has shape [batch, seq]; the result has shape [batch, 1, 1, seq] and
// broadcasts over heads and query positions, hiding padded keys from every
// query.
func PaddingMask[B tensor.Backend](ids *tensor.Tensor[int32, B], padID int32) *tensor.Tensor[float32, B] {
	shape := ids.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("PaddingMask: expected 2D ids [batch, seq], got %v", shape))
	}

	batch, seq := shape[0], shape[1]
	data := make([]float32, batch*seq)
	for i, id := range ids.Data() {
		if id != padID {
			data[i] = 1
		}
	}

	mask, err := tensor.FromSlice[float32, B](data, tensor.Shape{batch, 1, 1, seq}, ids.Backend())
	if err != nil {
		panic(fmt.Sprintf("PaddingMask: %v", err))
	}
	return mask
}

// CausalMask builds the lower-triangular 0/1 float mask that stops
// position i from attending to positions j > i. The diagonal is 1, so
// every position sees itself.
//
// The result has shape [1, 1, seqLen, seqLen] and broadcasts over batch and
// heads. Combine with a padding mask by element-wise multiplication.
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[float32, B] {
	if seqLen <= 0 {
		panic(fmt.Sprintf("CausalMask: seqLen must be positive, got %d", seqLen))
	}

	data := make([]float32, seqLen*seqLen)
	for i := 0; i < seqLen; i++ {
		for j := 0; j <= i; j++ {
			data[i*seqLen+j] = 1
		}
	}

	mask, err := tensor.FromSlice[float32, B](data, tensor.Shape{1, 1, seqLen, seqLen}, backend)
	if err != nil {
		panic(fmt.Sprintf("CausalMask: %v", err))
	}
	return mask
}
