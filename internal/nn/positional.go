package nn

import (
	"fmt"
	"math"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// PositionalEncoding adds fixed sinusoidal position information to token
// embeddings, followed by dropout.
//
// This is the original encoding from "Attention is All You Need"
// (Vaswani et al., 2017):
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d))
//
// The table is precomputed up to MaxLen and is not learned; it does not
// appear in Parameters().
//
// Example:
//
//	pe := nn.NewPositionalEncoding[B](512, 1024, 0.1, backend)
//	out := pe.Forward(embedded) // embedded: [batch, seq, 512]
type PositionalEncoding[B tensor.Backend] struct {
	Encoding *tensor.Tensor[float32, B] // Precomputed table [1, MaxLen, DModel]
	MaxLen   int
	DModel   int

	dropout *Dropout[B]
	backend B
}

// NewPositionalEncoding creates a PositionalEncoding layer with a table
// precomputed for sequences up to maxLen positions.
func NewPositionalEncoding[B tensor.Backend](dModel, maxLen int, dropout float32, backend B) *PositionalEncoding[B] {
	if dModel <= 0 {
		panic(fmt.Sprintf("PositionalEncoding: dModel must be positive, got %d", dModel))
	}
	if maxLen <= 0 {
		panic(fmt.Sprintf("PositionalEncoding: maxLen must be positive, got %d", maxLen))
	}

	encodings := make([]float32, maxLen*dModel)
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dModel; i++ {
			// Even/odd dimension pairs share a frequency: pos / 10000^(2i/d)
			angle := float64(pos) / math.Pow(10000.0, float64(2*(i/2))/float64(dModel))

			idx := pos*dModel + i
			if i%2 == 0 {
				encodings[idx] = float32(math.Sin(angle))
			} else {
				encodings[idx] = float32(math.Cos(angle))
			}
		}
	}

	encoding, err := tensor.FromSlice[float32, B](encodings, tensor.Shape{1, maxLen, dModel}, backend)
	if err != nil {
		panic(fmt.Sprintf("PositionalEncoding: failed to create table: %v", err))
	}

	return &PositionalEncoding[B]{
		Encoding: encoding,
		MaxLen:   maxLen,
		DModel:   dModel,
		dropout:  NewDropout[B](dropout),
		backend:  backend,
	}
}

// Forward adds the first seqLen rows of the table to the input and applies
// dropout.
//
// Input shape: [batch, seq, d_model]; the table row broadcasts over batch.
// Panics if seq exceeds MaxLen.
func (p *PositionalEncoding[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("PositionalEncoding.Forward: expected 3D input [batch, seq, d_model], got %v", shape))
	}
	seqLen := shape[1]
	if seqLen > p.MaxLen {
		panic(fmt.Sprintf("PositionalEncoding.Forward: seq length %d exceeds MaxLen %d", seqLen, p.MaxLen))
	}
	if shape[2] != p.DModel {
		panic(fmt.Sprintf("PositionalEncoding.Forward: expected d_model %d, got %d", p.DModel, shape[2]))
	}

	// Slice the first seqLen positions out of the table: [1, seqLen, d]
	pe := p.slice(seqLen)

	return p.dropout.Forward(input.Add(pe))
}

// slice returns the first seqLen rows of the table as [1, seqLen, DModel].
func (p *PositionalEncoding[B]) slice(seqLen int) *tensor.Tensor[float32, B] {
	data := make([]float32, seqLen*p.DModel)
	copy(data, p.Encoding.Data()[:seqLen*p.DModel])

	pe, err := tensor.FromSlice[float32, B](data, tensor.Shape{1, seqLen, p.DModel}, p.backend)
	if err != nil {
		panic(fmt.Sprintf("PositionalEncoding: %v", err))
	}
	return pe
}

// SetTraining toggles the dropout applied after the addition.
func (p *PositionalEncoding[B]) SetTraining(training bool) {
	p.dropout.SetTraining(training)
}

// Parameters returns an empty slice; the sinusoidal table is not learned.
func (p *PositionalEncoding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
