package nn

import (
	"fmt"
	"math"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// ScaledDotProductAttention computes the attention core:
//
//	Attention(Q, K, V) = softmax(Q @ K.T / sqrt(d_k)) @ V
//
// Inputs are 4D head-split tensors:
//   - query: [batch, heads, len_q, d_k]
//   - key:   [batch, heads, len_k, d_k]
//   - value: [batch, heads, len_k, d_k]
//
// mask, if non-nil, is a 0/1 float tensor broadcastable to
// [batch, heads, len_q, len_k]; positions where the mask is zero receive a
// score of -1e9 before the softmax, reducing their probability to
// effectively zero. A fully masked row produces a uniform distribution
// rather than an error; callers are responsible for never masking out an
// entire row.
//
// dropout, if non-nil, is applied to the attention probabilities.
//
// Returns the attended values [batch, heads, len_q, d_k] and the attention
// probabilities [batch, heads, len_q, len_k].
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	dropout *Dropout[B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	qShape, kShape, vShape := query.Shape(), key.Shape(), value.Shape()
	if len(qShape) != 4 || len(kShape) != 4 || len(vShape) != 4 {
		panic(fmt.Sprintf("attention: expected 4D [batch, heads, seq, d_k] inputs, got %v, %v, %v",
			qShape, kShape, vShape))
	}
	if qShape[3] != kShape[3] {
		panic(fmt.Sprintf("attention: query d_k %d != key d_k %d", qShape[3], kShape[3]))
	}
	if kShape[2] != vShape[2] {
		panic(fmt.Sprintf("attention: key length %d != value length %d", kShape[2], vShape[2]))
	}

	dk := qShape[3]
	scale := float32(1.0 / math.Sqrt(float64(dk)))

	// [B, h, Lq, dk] @ [B, h, dk, Lk] -> [B, h, Lq, Lk]
	scores := query.BatchMatMul(key.Transpose(0, 1, 3, 2)).MulScalar(scale)

	if mask != nil {
		scores = scores.MaskedFill(mask, -1e9)
	}

	weights := scores.Softmax(-1)

	if dropout != nil {
		weights = dropout.Forward(weights)
	}

	// [B, h, Lq, Lk] @ [B, h, Lk, dk] -> [B, h, Lq, dk]
	return weights.BatchMatMul(value), weights
}
