package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// EncoderBlock is one layer of the encoder stack: self-attention and a
// feed-forward network, each wrapped in a pre-norm residual connection.
type EncoderBlock[B tensor.Backend] struct {
	SelfAttention *MultiHeadAttention[B]
	FeedForward   *FeedForward[B]

	residuals [2]*ResidualConnection[B]
}

// NewEncoderBlock creates an encoder layer.
func NewEncoderBlock[B tensor.Backend](dModel, numHeads, dFF int, dropout float32, backend B) *EncoderBlock[B] {
	return &EncoderBlock[B]{
		SelfAttention: NewMultiHeadAttention[B](dModel, numHeads, dropout, backend),
		FeedForward:   NewFeedForward[B](dModel, dFF, dropout, backend),
		residuals: [2]*ResidualConnection[B]{
			NewResidualConnection[B](dModel, dropout, backend),
			NewResidualConnection[B](dModel, dropout, backend),
		},
	}
}

// Forward runs the block.
//
// x has shape [batch, src_len, d_model]; srcMask (nil allowed) is a 0/1
// float tensor broadcastable to [batch, heads, src_len, src_len], typically
// a padding mask.
func (e *EncoderBlock[B]) Forward(x, srcMask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = e.residuals[0].Forward(x, func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		return e.SelfAttention.Forward(x, x, x, srcMask)
	})
	return e.residuals[1].Forward(x, e.FeedForward.Forward)
}

// SetTraining propagates the training flag to every dropout in the block.
func (e *EncoderBlock[B]) SetTraining(training bool) {
	e.SelfAttention.SetTraining(training)
	e.FeedForward.SetTraining(training)
	for _, r := range e.residuals {
		r.SetTraining(training)
	}
}

// Parameters returns all parameters of the block.
func (e *EncoderBlock[B]) Parameters() []*Parameter[B] {
	params := e.SelfAttention.Parameters()
	params = append(params, e.FeedForward.Parameters()...)
	for _, r := range e.residuals {
		params = append(params, r.Parameters()...)
	}
	return params
}

// Encoder is a stack of N encoder blocks followed by a final LayerNorm,
// which keeps the output scale stable after the pre-norm residual chain.
type Encoder[B tensor.Backend] struct {
	Blocks []*EncoderBlock[B]
	Norm   *LayerNorm[B]
}

// NewEncoder creates an encoder with numLayers identical-shaped blocks,
// each with independent parameters.
func NewEncoder[B tensor.Backend](numLayers, dModel, numHeads, dFF int, dropout float32, backend B) *Encoder[B] {
	if numLayers <= 0 {
		panic(fmt.Sprintf("Encoder: numLayers must be positive, got %d", numLayers))
	}

	blocks := make([]*EncoderBlock[B], numLayers)
	for i := range blocks {
		blocks[i] = NewEncoderBlock[B](dModel, numHeads, dFF, dropout, backend)
	}

	return &Encoder[B]{
		Blocks: blocks,
		Norm:   NewLayerNorm[B](dModel, backend),
	}
}

// Forward runs the input through every block and the final normalization.
// Output shape equals input shape: [batch, src_len, d_model].
func (e *Encoder[B]) Forward(x, srcMask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, block := range e.Blocks {
		x = block.Forward(x, srcMask)
	}
	return e.Norm.Forward(x)
}

// SetTraining propagates the training flag to every block.
func (e *Encoder[B]) SetTraining(training bool) {
	for _, block := range e.Blocks {
		block.SetTraining(training)
	}
}

// Parameters returns all parameters of the stack.
func (e *Encoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, block := range e.Blocks {
		params = append(params, block.Parameters()...)
	}
	return append(params, e.Norm.Parameters()...)
}
