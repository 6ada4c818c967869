package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// DecoderBlock is one layer of the decoder stack: masked self-attention,
// cross-attention over the encoder memory, and a feed-forward network, each
// wrapped in a pre-norm residual connection.
type DecoderBlock[B tensor.Backend] struct {
	SelfAttention  *MultiHeadAttention[B]
	CrossAttention *MultiHeadAttention[B]
	FeedForward    *FeedForward[B]

	residuals [3]*ResidualConnection[B]
}

// NewDecoderBlock creates a decoder layer.
func NewDecoderBlock[B tensor.Backend](dModel, numHeads, dFF int, dropout float32, backend B) *DecoderBlock[B] {
	return &DecoderBlock[B]{
		SelfAttention:  NewMultiHeadAttention[B](dModel, numHeads, dropout, backend),
		CrossAttention: NewMultiHeadAttention[B](dModel, numHeads, dropout, backend),
		FeedForward:    NewFeedForward[B](dModel, dFF, dropout, backend),
		residuals: [3]*ResidualConnection[B]{
			NewResidualConnection[B](dModel, dropout, backend),
			NewResidualConnection[B](dModel, dropout, backend),
			NewResidualConnection[B](dModel, dropout, backend),
		},
	}
}

// Forward runs the block.
//
//   - x: decoder input [batch, tgt_len, d_model]
//   - memory: encoder output [batch, src_len, d_model]
//   - srcMask: broadcastable to [batch, heads, tgt_len, src_len], applied in
//     cross-attention (typically the source padding mask)
//   - tgtMask: broadcastable to [batch, heads, tgt_len, tgt_len], applied in
//     self-attention (causal, usually combined with target padding)
//
// In cross-attention the queries come from the decoder stream while keys
// and values both come from the encoder memory.
func (d *DecoderBlock[B]) Forward(x, memory, srcMask, tgtMask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = d.residuals[0].Forward(x, func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		return d.SelfAttention.Forward(x, x, x, tgtMask)
	})
	x = d.residuals[1].Forward(x, func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		return d.CrossAttention.Forward(x, memory, memory, srcMask)
	})
	return d.residuals[2].Forward(x, d.FeedForward.Forward)
}

// SetTraining propagates the training flag to every dropout in the block.
func (d *DecoderBlock[B]) SetTraining(training bool) {
	d.SelfAttention.SetTraining(training)
	d.CrossAttention.SetTraining(training)
	d.FeedForward.SetTraining(training)
	for _, r := range d.residuals {
		r.SetTraining(training)
	}
}

// Parameters returns all parameters of the block.
func (d *DecoderBlock[B]) Parameters() []*Parameter[B] {
	params := d.SelfAttention.Parameters()
	params = append(params, d.CrossAttention.Parameters()...)
	params = append(params, d.FeedForward.Parameters()...)
	for _, r := range d.residuals {
		params = append(params, r.Parameters()...)
	}
	return params
}

// Decoder is a stack of N decoder blocks followed by a final LayerNorm.
type Decoder[B tensor.Backend] struct {
	Blocks []*DecoderBlock[B]
	Norm   *LayerNorm[B]
}

// NewDecoder creates a decoder with numLayers identical-shaped blocks,
// each with independent parameters.
func NewDecoder[B tensor.Backend](numLayers, dModel, numHeads, dFF int, dropout float32, backend B) *Decoder[B] {
	if numLayers <= 0 {
		panic(fmt.Sprintf("Decoder: numLayers must be positive, got %d", numLayers))
	}

	blocks := make([]*DecoderBlock[B], numLayers)
	for i := range blocks {
		blocks[i] = NewDecoderBlock[B](dModel, numHeads, dFF, dropout, backend)
	}

	return &Decoder[B]{
		Blocks: blocks,
		Norm:   NewLayerNorm[B](dModel, backend),
	}
}

// Forward runs the input through every block and the final normalization.
// Output shape: [batch, tgt_len, d_model].
func (d *Decoder[B]) Forward(x, memory, srcMask, tgtMask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, block := range d.Blocks {
		x = block.Forward(x, memory, srcMask, tgtMask)
	}
	return d.Norm.Forward(x)
}

// SetTraining propagates the training flag to every block.
func (d *Decoder[B]) SetTraining(training bool) {
	for _, block := range d.Blocks {
		block.SetTraining(training)
	}
}

// Parameters returns all parameters of the stack.
func (d *Decoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, block := range d.Blocks {
		params = append(params, block.Parameters()...)
	}
	return append(params, d.Norm.Parameters()...)
}
