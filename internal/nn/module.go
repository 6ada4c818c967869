// Package nn implements the neural network modules of the Trellis
// sequence-to-sequence transformer.
//
// This package provides the building blocks of the encoder-decoder
// architecture:
//   - Module interface: base interface for simple feed-forward components
//   - Parameter: named weight tensors collected for external training
//   - Linear, InputEmbedding, PositionalEncoding, LayerNorm, FeedForward
//   - MultiHeadAttention and scaled dot-product attention
//   - Encoder/Decoder stacks, ProjectionLayer, and the Transformer root
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/trellis-ml/trellis/internal/tensor"
)

// Module is the base interface for single-input neural network components.
//
// Every module must implement:
//   - Forward: compute output from input
//   - Parameters: return all learnable parameters
//
// Components whose forward pass takes more than one tensor (attention,
// residual wrappers, the encoder/decoder stacks) expose their own Forward
// signatures instead of this interface, but still provide Parameters().
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all learnable parameters of this module,
	// including nested module parameters. Returns an empty slice for
	// modules without learnable state (e.g., activation functions).
	Parameters() []*Parameter[B]
}
