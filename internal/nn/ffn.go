package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// FeedForward is the position-wise feed-forward network of a transformer
// block:
//
//	FFN(x) = Linear2(Dropout(ReLU(Linear1(x))))
//
// Both linear layers carry biases. The network is applied independently at
// every sequence position; 3D inputs [batch, seq, d_model] are flattened to
// [batch*seq, d_model] for the matmuls and restored afterwards.
//
// Example:
//
//	ffn := nn.NewFeedForward[B](512, 2048, 0.1, backend)
//	out := ffn.Forward(x) // same shape as x
type FeedForward[B tensor.Backend] struct {
	Linear1 *Linear[B] // d_model -> d_ff
	Linear2 *Linear[B] // d_ff -> d_model
	relu    *ReLU[B]
	dropout *Dropout[B]
	dModel  int
}

// NewFeedForward creates a FeedForward network with hidden width dFF and
// dropout between the activation and the second projection.
func NewFeedForward[B tensor.Backend](dModel, dFF int, dropout float32, backend B) *FeedForward[B] {
	if dModel <= 0 || dFF <= 0 {
		panic(fmt.Sprintf("FeedForward: dimensions must be positive, got dModel=%d dFF=%d", dModel, dFF))
	}

	return &FeedForward[B]{
		Linear1: NewLinear[B](dModel, dFF, backend),
		Linear2: NewLinear[B](dFF, dModel, backend),
		relu:    NewReLU[B](),
		dropout: NewDropout[B](dropout),
		dModel:  dModel,
	}
}

// Forward applies the feed-forward network position-wise.
// Accepts 2D [batch, d_model] or 3D [batch, seq, d_model] input and returns
// the same shape.
func (f *FeedForward[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()

	x := input
	if len(shape) == 3 {
		x = input.Reshape(shape[0]*shape[1], shape[2])
	} else if len(shape) != 2 {
		panic(fmt.Sprintf("FeedForward.Forward: expected 2D or 3D input, got %v", shape))
	}

	hidden := f.dropout.Forward(f.relu.Forward(f.Linear1.Forward(x)))
	out := f.Linear2.Forward(hidden)

	if len(shape) == 3 {
		out = out.Reshape(shape[0], shape[1], shape[2])
	}
	return out
}

// SetTraining toggles the inner dropout.
func (f *FeedForward[B]) SetTraining(training bool) {
	f.dropout.SetTraining(training)
}

// Parameters returns the parameters of both linear layers.
func (f *FeedForward[B]) Parameters() []*Parameter[B] {
	params := f.Linear1.Parameters()
	return append(params, f.Linear2.Parameters()...)
}
