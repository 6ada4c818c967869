// Copyright 2025 The Trellis Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for the Trellis sequence-to-sequence
// transformer components.
//
// The central entry point is Build, which assembles a full encoder-decoder
// Transformer from a Config:
//
//	backend := cpu.New()
//	model := nn.Build(nn.DefaultConfig(32000, 32000, 512, 512), backend)
//	model.SetTraining(false)
//
//	memory := model.Encode(srcIDs, srcMask)
//	states := model.Decode(memory, srcMask, tgtIDs, tgtMask)
//	logProbs := model.Project(states)
//
// The individual layers (Linear, LayerNorm, MultiHeadAttention, ...) are
// exported as well for callers composing custom architectures.
package nn

import (
	"github.com/trellis-ml/trellis/internal/nn"
	"github.com/trellis-ml/trellis/tensor"
)

// Module is the base interface for single-input network components.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named learnable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Layer types

// Linear is a fully connected layer: y = x @ W.T + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// InputEmbedding maps token ids to vectors scaled by sqrt(d_model).
type InputEmbedding[B tensor.Backend] = nn.InputEmbedding[B]

// PositionalEncoding adds fixed sinusoidal position information.
type PositionalEncoding[B tensor.Backend] = nn.PositionalEncoding[B]

// LayerNorm normalizes the last dimension with learnable scale and shift.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// Dropout randomly zeroes elements during training (inverted dropout).
type Dropout[B tensor.Backend] = nn.Dropout[B]

// ReLU is the rectified linear unit activation.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// FeedForward is the position-wise feed-forward network of a block.
type FeedForward[B tensor.Backend] = nn.FeedForward[B]

// MultiHeadAttention implements multi-head self- and cross-attention.
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// ResidualConnection wraps a sublayer with pre-norm residual semantics.
type ResidualConnection[B tensor.Backend] = nn.ResidualConnection[B]

// EncoderBlock is one encoder layer; Encoder is the N-layer stack.
type (
	EncoderBlock[B tensor.Backend] = nn.EncoderBlock[B]
	Encoder[B tensor.Backend]      = nn.Encoder[B]
)

// DecoderBlock is one decoder layer; Decoder is the N-layer stack.
type (
	DecoderBlock[B tensor.Backend] = nn.DecoderBlock[B]
	Decoder[B tensor.Backend]      = nn.Decoder[B]
)

// ProjectionLayer maps decoder states to vocabulary log-probabilities.
type ProjectionLayer[B tensor.Backend] = nn.ProjectionLayer[B]

// Transformer is the full encoder-decoder model.
type Transformer[B tensor.Backend] = nn.Transformer[B]

// Config holds the transformer hyperparameters.
type Config = nn.Config

// Constructors

// NewParameter creates a named learnable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// NewLinear creates a fully connected layer with Xavier-initialized
// weights and zero biases.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear[B](inFeatures, outFeatures, backend)
}

// NewInputEmbedding creates a scaled token embedding layer.
func NewInputEmbedding[B tensor.Backend](vocabSize, dModel int, backend B) *InputEmbedding[B] {
	return nn.NewInputEmbedding[B](vocabSize, dModel, backend)
}

// NewPositionalEncoding creates a sinusoidal positional encoding layer with
// a table precomputed up to maxLen positions.
func NewPositionalEncoding[B tensor.Backend](dModel, maxLen int, dropout float32, backend B) *PositionalEncoding[B] {
	return nn.NewPositionalEncoding[B](dModel, maxLen, dropout, backend)
}

// NewLayerNorm creates a LayerNorm with the default epsilon (1e-6).
func NewLayerNorm[B tensor.Backend](features int, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm[B](features, backend)
}

// NewLayerNormEps creates a LayerNorm with an explicit epsilon.
func NewLayerNormEps[B tensor.Backend](features int, eps float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNormEps[B](features, eps, backend)
}

// NewDropout creates a Dropout module with the given drop probability.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	return nn.NewDropout[B](p)
}

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// NewFeedForward creates a position-wise feed-forward network.
func NewFeedForward[B tensor.Backend](dModel, dFF int, dropout float32, backend B) *FeedForward[B] {
	return nn.NewFeedForward[B](dModel, dFF, dropout, backend)
}

// NewMultiHeadAttention creates a multi-head attention module.
// Panics if dModel is not divisible by numHeads.
func NewMultiHeadAttention[B tensor.Backend](dModel, numHeads int, dropout float32, backend B) *MultiHeadAttention[B] {
	return nn.NewMultiHeadAttention[B](dModel, numHeads, dropout, backend)
}

// NewResidualConnection creates a pre-norm residual wrapper.
func NewResidualConnection[B tensor.Backend](features int, dropout float32, backend B) *ResidualConnection[B] {
	return nn.NewResidualConnection[B](features, dropout, backend)
}

// NewEncoder creates an encoder stack of numLayers blocks.
func NewEncoder[B tensor.Backend](numLayers, dModel, numHeads, dFF int, dropout float32, backend B) *Encoder[B] {
	return nn.NewEncoder[B](numLayers, dModel, numHeads, dFF, dropout, backend)
}

// NewDecoder creates a decoder stack of numLayers blocks.
func NewDecoder[B tensor.Backend](numLayers, dModel, numHeads, dFF int, dropout float32, backend B) *Decoder[B] {
	return nn.NewDecoder[B](numLayers, dModel, numHeads, dFF, dropout, backend)
}

// NewProjectionLayer creates the output projection with log-softmax.
func NewProjectionLayer[B tensor.Backend](dModel, vocabSize int, backend B) *ProjectionLayer[B] {
	return nn.NewProjectionLayer[B](dModel, vocabSize, backend)
}

// Model assembly

// DefaultConfig returns the base-model hyperparameters (d_model 512,
// 6 layers, 8 heads, dropout 0.1, feed-forward width 2048).
func DefaultConfig(srcVocabSize, tgtVocabSize, srcSeqLen, tgtSeqLen int) Config {
	return nn.DefaultConfig(srcVocabSize, tgtVocabSize, srcSeqLen, tgtSeqLen)
}

// Build constructs a Transformer from the config, filling missing optional
// fields with defaults and Xavier-initializing every >1D parameter.
func Build[B tensor.Backend](cfg Config, backend B) *Transformer[B] {
	return nn.Build[B](cfg, backend)
}

// Attention and mask utilities

// ScaledDotProductAttention computes softmax(QK.T/sqrt(d_k))V over 4D
// head-split inputs, returning the attended values and the attention
// probabilities.
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	dropout *Dropout[B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return nn.ScaledDotProductAttention(query, key, value, mask, dropout)
}

// PaddingMask builds a [batch, 1, 1, seq] 0/1 mask hiding padID positions.
func PaddingMask[B tensor.Backend](ids *tensor.Tensor[int32, B], padID int32) *tensor.Tensor[float32, B] {
	return nn.PaddingMask(ids, padID)
}

// CausalMask builds the [1, 1, seqLen, seqLen] lower-triangular 0/1 mask.
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[float32, B] {
	return nn.CausalMask[B](seqLen, backend)
}

// Initializers

// Xavier returns a tensor initialized with Xavier/Glorot uniform values.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier[B](fanIn, fanOut, shape, backend)
}
