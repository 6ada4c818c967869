package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// MultiHeadAttention implements multi-head attention with separate query,
// key and value inputs, so the same module serves both self-attention
// (q = k = v) and encoder-decoder cross-attention (q from the decoder,
// k = v from the encoder memory).
//
// Architecture:
//   - WQ, WK, WV: [d_model, d_model] projections (with bias)
//   - head split: [batch, seq, d_model] -> [batch, heads, seq, d_k]
//   - scaled dot-product attention per head
//   - head merge + WO output projection
//
// d_model must be divisible by the number of heads.
//
// Example:
//
//	mha := nn.NewMultiHeadAttention[B](512, 8, 0.1, backend)
//	out := mha.Forward(x, x, x, mask) // self-attention
type MultiHeadAttention[B tensor.Backend] struct {
	WQ *Linear[B]
	WK *Linear[B]
	WV *Linear[B]
	WO *Linear[B]

	DModel   int
	NumHeads int
	DK       int // d_model / heads

	dropout *Dropout[B]
}

// NewMultiHeadAttention creates a MultiHeadAttention module.
// dropout is applied to the attention probabilities.
// Panics if dModel is not divisible by numHeads.
func NewMultiHeadAttention[B tensor.Backend](dModel, numHeads int, dropout float32, backend B) *MultiHeadAttention[B] {
	if numHeads <= 0 {
		panic(fmt.Sprintf("MultiHeadAttention: numHeads must be positive, got %d", numHeads))
	}
	if dModel%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: d_model %d not divisible by heads %d", dModel, numHeads))
	}

	return &MultiHeadAttention[B]{
		WQ:       NewLinear[B](dModel, dModel, backend),
		WK:       NewLinear[B](dModel, dModel, backend),
		WV:       NewLinear[B](dModel, dModel, backend),
		WO:       NewLinear[B](dModel, dModel, backend),
		DModel:   dModel,
		NumHeads: numHeads,
		DK:       dModel / numHeads,
		dropout:  NewDropout[B](dropout),
	}
}

// Forward computes multi-head attention.
//
// query/key/value have shape [batch, seq, d_model]; key and value must share
// their sequence length. mask may be nil or a 0/1 float tensor broadcastable
// to [batch, heads, len_q, len_k].
//
// Returns [batch, len_q, d_model].
func (m *MultiHeadAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	out, _ := m.ForwardWithWeights(query, key, value, mask)
	return out
}

// ForwardWithWeights is Forward plus the per-head attention probabilities
// [batch, heads, len_q, len_k], for inspection and testing.
func (m *MultiHeadAttention[B]) ForwardWithWeights(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	q := m.projectAndSplit(m.WQ, query)
	k := m.projectAndSplit(m.WK, key)
	v := m.projectAndSplit(m.WV, value)

	attended, weights := ScaledDotProductAttention(q, k, v, mask, m.dropout)

	// [B, h, Lq, dk] -> [B, Lq, h, dk] -> [B, Lq, d_model]
	outShape := attended.Shape()
	batch, lenQ := outShape[0], outShape[2]
	merged := attended.Transpose(0, 2, 1, 3).Reshape(batch*lenQ, m.DModel)

	out := m.WO.Forward(merged).Reshape(batch, lenQ, m.DModel)
	return out, weights
}

// projectAndSplit applies a projection and splits the result into heads:
// [batch, seq, d_model] -> [batch, heads, seq, d_k].
func (m *MultiHeadAttention[B]) projectAndSplit(proj *Linear[B], x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("MultiHeadAttention: expected 3D input [batch, seq, d_model], got %v", shape))
	}
	if shape[2] != m.DModel {
		panic(fmt.Sprintf("MultiHeadAttention: expected d_model %d, got %d", m.DModel, shape[2]))
	}

	batch, seq := shape[0], shape[1]
	projected := proj.Forward(x.Reshape(batch*seq, m.DModel))

	return projected.Reshape(batch, seq, m.NumHeads, m.DK).Transpose(0, 2, 1, 3)
}

// SetTraining toggles the attention-probability dropout.
func (m *MultiHeadAttention[B]) SetTraining(training bool) {
	m.dropout.SetTraining(training)
}

// Parameters returns the parameters of all four projections.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := m.WQ.Parameters()
	params = append(params, m.WK.Parameters()...)
	params = append(params, m.WV.Parameters()...)
	return append(params, m.WO.Parameters()...)
}
