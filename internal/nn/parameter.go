package nn

import (
	"github.com/trellis-ml/trellis/internal/tensor"
)

// Parameter represents a learnable parameter in a neural network.
//
// Parameters are the tensors an external training loop updates: the weights
// and biases of layers. This package computes forward passes only; gradient
// bookkeeping belongs to the hosting framework, which reaches the parameter
// data through Tensor().
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
}

// NewParameter creates a new named parameter.
// The tensor should be initialized before creating the Parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}
