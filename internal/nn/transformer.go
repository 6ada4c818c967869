package nn

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Config holds the hyperparameters of a sequence-to-sequence Transformer.
// Zero-valued optional fields are replaced by the classic base-model
// defaults in Build.
type Config struct {
	SrcVocabSize int // Source vocabulary size (required)
	TgtVocabSize int // Target vocabulary size (required)
	SrcSeqLen    int // Maximum source sequence length (required)
	TgtSeqLen    int // Maximum target sequence length (required)

	DModel    int     // Model dimension (default 512)
	NumLayers int     // Encoder and decoder depth (default 6)
	NumHeads  int     // Attention heads (default 8)
	Dropout   float32 // Dropout probability (default 0.1)
	FFNDim    int     // Feed-forward hidden width (default 2048)
}

// DefaultConfig returns a Config with the base-model hyperparameters from
// "Attention is All You Need": d_model 512, 6 layers, 8 heads, dropout 0.1,
// feed-forward width 2048.
func DefaultConfig(srcVocabSize, tgtVocabSize, srcSeqLen, tgtSeqLen int) Config {
	return Config{
		SrcVocabSize: srcVocabSize,
		TgtVocabSize: tgtVocabSize,
		SrcSeqLen:    srcSeqLen,
		TgtSeqLen:    tgtSeqLen,
		DModel:       512,
		NumLayers:    6,
		NumHeads:     8,
		Dropout:      0.1,
		FFNDim:       2048,
	}
}

// Transformer is the full encoder-decoder model: embeddings and positional
// encodings on both sides, the encoder and decoder stacks, and the output
// projection.
//
// The three stages are exposed separately so callers can encode a source
// once and run incremental decoding against the cached memory:
//
//	memory := model.Encode(srcIDs, srcMask)
//	states := model.Decode(memory, srcMask, tgtIDs, tgtMask)
//	logProbs := model.Project(states)
type Transformer[B tensor.Backend] struct {
	SrcEmbed *InputEmbedding[B]
	TgtEmbed *InputEmbedding[B]
	SrcPos   *PositionalEncoding[B]
	TgtPos   *PositionalEncoding[B]
	Encoder  *Encoder[B]
	Decoder  *Decoder[B]
	Proj     *ProjectionLayer[B]

	Cfg Config
}

// Build constructs a Transformer from the config.
//
// Missing optional fields get the DefaultConfig values. Every component is
// an independent instance (no weight sharing, including between the source
// and target embeddings), and after construction every parameter tensor
// with more than one dimension is re-initialized Xavier-uniform. The model
// starts in training mode.
//
// Panics if a required field is missing or d_model is not divisible by the
// number of heads.
func Build[B tensor.Backend](cfg Config, backend B) *Transformer[B] {
	if cfg.SrcVocabSize <= 0 || cfg.TgtVocabSize <= 0 {
		panic(fmt.Sprintf("transformer: vocabulary sizes must be positive, got src=%d tgt=%d",
			cfg.SrcVocabSize, cfg.TgtVocabSize))
	}
	if cfg.SrcSeqLen <= 0 || cfg.TgtSeqLen <= 0 {
		panic(fmt.Sprintf("transformer: sequence lengths must be positive, got src=%d tgt=%d",
			cfg.SrcSeqLen, cfg.TgtSeqLen))
	}

	if cfg.DModel == 0 {
		cfg.DModel = 512
	}
	if cfg.NumLayers == 0 {
		cfg.NumLayers = 6
	}
	if cfg.NumHeads == 0 {
		cfg.NumHeads = 8
	}
	if cfg.Dropout == 0 {
		cfg.Dropout = 0.1
	}
	if cfg.FFNDim == 0 {
		cfg.FFNDim = 2048
	}

	if cfg.DModel%cfg.NumHeads != 0 {
		panic(fmt.Sprintf("transformer: d_model %d not divisible by heads %d", cfg.DModel, cfg.NumHeads))
	}

	t := &Transformer[B]{
		SrcEmbed: NewInputEmbedding[B](cfg.SrcVocabSize, cfg.DModel, backend),
		TgtEmbed: NewInputEmbedding[B](cfg.TgtVocabSize, cfg.DModel, backend),
		SrcPos:   NewPositionalEncoding[B](cfg.DModel, cfg.SrcSeqLen, cfg.Dropout, backend),
		TgtPos:   NewPositionalEncoding[B](cfg.DModel, cfg.TgtSeqLen, cfg.Dropout, backend),
		Encoder:  NewEncoder[B](cfg.NumLayers, cfg.DModel, cfg.NumHeads, cfg.FFNDim, cfg.Dropout, backend),
		Decoder:  NewDecoder[B](cfg.NumLayers, cfg.DModel, cfg.NumHeads, cfg.FFNDim, cfg.Dropout, backend),
		Proj:     NewProjectionLayer[B](cfg.DModel, cfg.TgtVocabSize, backend),
		Cfg:      cfg,
	}

	// Xavier-uniform over every matrix-shaped parameter; 1D biases and
	// norm scales keep their constructor values.
	for _, p := range t.Parameters() {
		shape := p.Tensor().Shape()
		if len(shape) > 1 {
			xavierFill(p.Tensor().Data(), shape[1], shape[0])
		}
	}

	return t
}

// Encode embeds the source ids, adds positional encodings and runs the
// encoder stack.
//
//   - srcIDs: int32 [batch, src_len]
//   - srcMask: nil or 0/1 float broadcastable to [batch, heads, src_len, src_len]
//
// Returns the memory [batch, src_len, d_model].
func (t *Transformer[B]) Encode(srcIDs *tensor.Tensor[int32, B], srcMask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := t.SrcPos.Forward(t.SrcEmbed.Forward(srcIDs))
	return t.Encoder.Forward(x, srcMask)
}

// Decode embeds the target ids, adds positional encodings and runs the
// decoder stack against the encoder memory.
//
//   - memory: encoder output [batch, src_len, d_model]
//   - srcMask: cross-attention mask, nil or broadcastable to [batch, heads, tgt_len, src_len]
//   - tgtIDs: int32 [batch, tgt_len]
//   - tgtMask: self-attention mask, typically causal combined with padding
//
// Returns decoder states [batch, tgt_len, d_model]; callers feed these to
// Project for log-probabilities.
func (t *Transformer[B]) Decode(
	memory *tensor.Tensor[float32, B],
	srcMask *tensor.Tensor[float32, B],
	tgtIDs *tensor.Tensor[int32, B],
	tgtMask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	x := t.TgtPos.Forward(t.TgtEmbed.Forward(tgtIDs))
	return t.Decoder.Forward(x, memory, srcMask, tgtMask)
}

// Project maps decoder states to log-probabilities over the target
// vocabulary: [batch, tgt_len, d_model] -> [batch, tgt_len, tgt_vocab].
func (t *Transformer[B]) Project(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return t.Proj.Forward(x)
}

// SetTraining switches the whole model between training and evaluation
// mode, reaching every dropout in the tree.
func (t *Transformer[B]) SetTraining(training bool) {
	t.SrcPos.SetTraining(training)
	t.TgtPos.SetTraining(training)
	t.Encoder.SetTraining(training)
	t.Decoder.SetTraining(training)
}

// Parameters returns every learnable parameter of the model: embeddings,
// all encoder/decoder block weights, final norms, and the projection.
// The sinusoidal positional tables are fixed and not included.
func (t *Transformer[B]) Parameters() []*Parameter[B] {
	params := t.SrcEmbed.Parameters()
	params = append(params, t.TgtEmbed.Parameters()...)
	params = append(params, t.Encoder.Parameters()...)
	params = append(params, t.Decoder.Parameters()...)
	return append(params, t.Proj.Parameters()...)
}
