package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// ProjectionLayer maps decoder states to log-probabilities over the target
// vocabulary:
//
//	y = log_softmax(x @ W.T + b)
//
// The log-softmax runs in shifted log-space, so each output row's
// exponentials sum to 1 even for large logits.
type ProjectionLayer[B tensor.Backend] struct {
	Linear    *Linear[B] // d_model -> vocab_size
	VocabSize int
	DModel    int
}

// NewProjectionLayer creates a projection to vocabSize classes.
func NewProjectionLayer[B tensor.Backend](dModel, vocabSize int, backend B) *ProjectionLayer[B] {
	if vocabSize <= 0 {
		panic(fmt.Sprintf("ProjectionLayer: vocabSize must be positive, got %d", vocabSize))
	}

	return &ProjectionLayer[B]{
		Linear:    NewLinear[B](dModel, vocabSize, backend),
		VocabSize: vocabSize,
		DModel:    dModel,
	}
}

// Forward projects [batch, seq, d_model] to log-probabilities
// [batch, seq, vocab_size].
func (p *ProjectionLayer[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("ProjectionLayer.Forward: expected 3D input [batch, seq, d_model], got %v", shape))
	}

	batch, seq := shape[0], shape[1]
	logits := p.Linear.Forward(input.Reshape(batch*seq, p.DModel))

	return logits.LogSoftmax(-1).Reshape(batch, seq, p.VocabSize)
}

// Parameters returns the projection's linear parameters.
func (p *ProjectionLayer[B]) Parameters() []*Parameter[B] {
	return p.Linear.Parameters()
}
