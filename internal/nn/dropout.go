package nn

import (
	"fmt"
	"math/rand"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Dropout randomly zeroes elements of the input with probability P during
// training, scaling the survivors by 1/(1-P) so the expected activation is
// unchanged (inverted dropout). In evaluation mode it is the identity.
//
// A fresh mask is sampled on every call; masks are never persisted.
type Dropout[B tensor.Backend] struct {
	P        float32 // Drop probability in [0, 1)
	training bool
}

// NewDropout creates a Dropout module with the given drop probability.
// Modules start in training mode, matching the transformer root's default.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{P: p, training: true}
}

// SetTraining switches between training (dropout active) and evaluation
// (identity) behavior.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Training reports whether dropout is currently active.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// Forward applies dropout to the input.
// Identity when in evaluation mode or when P == 0.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.P == 0 {
		return input
	}

	out := input.Clone()
	data := out.Data()
	scale := 1 / (1 - d.P)
	for i := range data {
		//nolint:gosec // math/rand is appropriate for dropout sampling
		if rand.Float32() < d.P {
			data[i] = 0
		} else {
			data[i] *= scale
		}
	}
	return out
}

// Parameters returns an empty slice; dropout has no learnable state.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
