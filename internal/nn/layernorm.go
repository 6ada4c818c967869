package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// DefaultLayerNormEps is the epsilon added to the standard deviation.
const DefaultLayerNormEps = 1e-6

// LayerNorm normalizes the last dimension of its input:
//
//	y = alpha * (x - mean) / (std + eps) + beta
//
// where mean and std are computed per position over the feature dimension.
// The standard deviation is the population (biased) form, divisor N.
// Note that eps is added to std, not to the variance under the root.
//
// alpha is initialized to ones, beta to zeros, so a fresh LayerNorm is a
// pure standardization.
//
// Example:
//
//	ln := nn.NewLayerNorm[B](512, backend)
//	out := ln.Forward(x) // x: [batch, seq, 512]
type LayerNorm[B tensor.Backend] struct {
	Alpha *Parameter[B] // Learnable scale [features]
	Beta  *Parameter[B] // Learnable shift [features]
	Eps   float32
	Dim   int
}

// NewLayerNorm creates a LayerNorm over the given feature dimension with
// the default epsilon.
func NewLayerNorm[B tensor.Backend](features int, backend B) *LayerNorm[B] {
	return NewLayerNormEps[B](features, DefaultLayerNormEps, backend)
}

// NewLayerNormEps creates a LayerNorm with an explicit epsilon.
func NewLayerNormEps[B tensor.Backend](features int, eps float32, backend B) *LayerNorm[B] {
	if features <= 0 {
		panic(fmt.Sprintf("LayerNorm: features must be positive, got %d", features))
	}

	return &LayerNorm[B]{
		Alpha: NewParameter("alpha", Ones(tensor.Shape{features}, backend)),
		Beta:  NewParameter("beta", Zeros(tensor.Shape{features}, backend)),
		Eps:   eps,
		Dim:   features,
	}
}

// Forward normalizes the last dimension of the input.
// The input may have any rank >= 1 as long as the last dimension matches.
func (ln *LayerNorm[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if shape[len(shape)-1] != ln.Dim {
		panic(fmt.Sprintf("LayerNorm.Forward: expected last dimension %d, got %v", ln.Dim, shape))
	}

	mean := input.MeanDim(-1, true)
	centered := input.Sub(mean)

	// Population variance: mean of squared deviations
	variance := centered.Mul(centered).MeanDim(-1, true)
	std := variance.Sqrt()

	normalized := centered.Div(std.AddScalar(ln.Eps))

	// alpha/beta are 1D [features] and broadcast right-aligned
	return normalized.Mul(ln.Alpha.Tensor()).Add(ln.Beta.Tensor())
}

// Parameters returns [alpha, beta].
func (ln *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{ln.Alpha, ln.Beta}
}
