package nn

import (
	"github.com/trellis-ml/trellis/internal/tensor"
)

// ReLU applies the rectified linear unit element-wise: max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU to the input.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Relu()
}

// Parameters returns an empty slice; ReLU has no learnable state.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
