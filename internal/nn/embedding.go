package nn

import (
	"math"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// InputEmbedding maps token ids to dense vectors scaled by sqrt(d_model).
//
// The scaling compensates for the variance of the embedding initialization
// and keeps the token signal on the same magnitude as the positional
// encoding that is added right after ("Attention is All You Need", §3.4).
//
// Architecture:
//   - Weight: [vocab_size, d_model] learnable parameter
//   - Forward: ids [batch, seq] -> embeddings [batch, seq, d_model]
//
// Example:
//
//	embed := nn.NewInputEmbedding[B](10000, 512, backend)
//	ids, _ := tensor.FromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3}, backend)
//	out := embed.Forward(ids) // [1, 3, 512], each row scaled by sqrt(512)
type InputEmbedding[B tensor.Backend] struct {
	Weight    *Parameter[B] // Embedding table [vocab_size, d_model]
	VocabSize int
	DModel    int

	scale float32 // sqrt(d_model)
}

// NewInputEmbedding creates a new InputEmbedding layer.
//
// The table is initialized from N(0, 1); the transformer builder replaces
// this with Xavier-uniform values along with every other >1D parameter.
func NewInputEmbedding[B tensor.Backend](vocabSize, dModel int, backend B) *InputEmbedding[B] {
	weight := Randn(tensor.Shape{vocabSize, dModel}, backend)

	return &InputEmbedding[B]{
		Weight:    NewParameter("embedding.weight", weight),
		VocabSize: vocabSize,
		DModel:    dModel,
		scale:     float32(math.Sqrt(float64(dModel))),
	}
}

// Forward performs the scaled embedding lookup.
//
// ids must be an int32 tensor of shape [batch, seq]; the result has shape
// [batch, seq, d_model] with every vector multiplied by sqrt(d_model).
//
// Panics if any id is out of bounds [0, VocabSize).
func (e *InputEmbedding[B]) Forward(ids *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return e.Weight.Tensor().Embedding(ids).MulScalar(e.scale)
}

// Parameters returns the embedding table.
func (e *InputEmbedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}
