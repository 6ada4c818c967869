package nn

import (
	"github.com/trellis-ml/trellis/internal/tensor"
)

// ResidualConnection wraps a sublayer with pre-norm residual semantics:
//
//	y = x + Dropout(sublayer(LayerNorm(x)))
//
// Normalization is applied to the sublayer input, not the sum (pre-norm).
// The sublayer is passed to Forward as an explicit function value, so one
// wrapper instance can serve attention and feed-forward sublayers alike.
type ResidualConnection[B tensor.Backend] struct {
	Norm    *LayerNorm[B]
	dropout *Dropout[B]
}

// NewResidualConnection creates a residual wrapper for sublayers operating
// on [.., features] tensors.
func NewResidualConnection[B tensor.Backend](features int, dropout float32, backend B) *ResidualConnection[B] {
	return &ResidualConnection[B]{
		Norm:    NewLayerNorm[B](features, backend),
		dropout: NewDropout[B](dropout),
	}
}

// Forward applies the wrapped sublayer with the residual shortcut.
// The sublayer must preserve the input shape.
func (r *ResidualConnection[B]) Forward(
	x *tensor.Tensor[float32, B],
	sublayer func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	return x.Add(r.dropout.Forward(sublayer(r.Norm.Forward(x))))
}

// SetTraining toggles the residual dropout.
func (r *ResidualConnection[B]) SetTraining(training bool) {
	r.dropout.SetTraining(training)
}

// Parameters returns the inner LayerNorm parameters.
func (r *ResidualConnection[B]) Parameters() []*Parameter[B] {
	return r.Norm.Parameters()
}
