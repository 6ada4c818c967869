package nn

import (
	"testing"

	"github.com/trellis-ml/trellis/internal/backend/cpu"
	"github.com/trellis-ml/trellis/internal/tensor"
)

// TestMultiHeadAttention_SelfAttention tests the self-attention shape
// contract: output matches the query shape.
func TestMultiHeadAttention_SelfAttention(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[*cpu.CPUBackend](16, 4, 0, backend)

	x := tensor.Randn[float32](tensor.Shape{2, 5, 16}, backend)
	out := mha.Forward(x, x, x, nil)

	if !out.Shape().Equal(tensor.Shape{2, 5, 16}) {
		t.Fatalf("Expected shape [2 5 16], got %v", out.Shape())
	}
}

// TestMultiHeadAttention_CrossAttention tests a decoder-style call where the
// query length differs from the key/value length.
func TestMultiHeadAttention_CrossAttention(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[*cpu.CPUBackend](16, 4, 0, backend)

	q := tensor.Randn[float32](tensor.Shape{2, 3, 16}, backend)
	kv := tensor.Randn[float32](tensor.Shape{2, 5, 16}, backend)

	out := mha.Forward(q, kv, kv, nil)

	if !out.Shape().Equal(tensor.Shape{2, 3, 16}) {
		t.Fatalf("Expected shape [2 3 16], got %v", out.Shape())
	}
}

// TestMultiHeadAttention_ForwardWithWeights tests the attention weight shape
// [batch, heads, q_len, kv_len].
func TestMultiHeadAttention_ForwardWithWeights(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[*cpu.CPUBackend](8, 2, 0, backend)

	q := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)
	kv := tensor.Randn[float32](tensor.Shape{1, 4, 8}, backend)

	out, weights := mha.ForwardWithWeights(q, kv, kv, nil)

	if !out.Shape().Equal(tensor.Shape{1, 3, 8}) {
		t.Fatalf("Expected output shape [1 3 8], got %v", out.Shape())
	}
	if !weights.Shape().Equal(tensor.Shape{1, 2, 3, 4}) {
		t.Fatalf("Expected weights shape [1 2 3 4], got %v", weights.Shape())
	}
}

// TestMultiHeadAttention_Masked tests that a padding mask survives the
// head-splitting broadcast.
func TestMultiHeadAttention_Masked(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[*cpu.CPUBackend](8, 2, 0, backend)

	x := tensor.Randn[float32](tensor.Shape{1, 4, 8}, backend)

	// Hide the last two key positions
	mask, err := tensor.FromSlice[float32](
		[]float32{1, 1, 0, 0},
		tensor.Shape{1, 1, 1, 4},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create mask: %v", err)
	}

	_, weights := mha.ForwardWithWeights(x, x, x, mask)

	data := weights.Data()
	// weights: [1, 2, 4, 4]; columns 2 and 3 must carry no weight
	for row := 0; row < 2*4; row++ {
		for col := 2; col < 4; col++ {
			if w := data[row*4+col]; w > 1e-6 {
				t.Errorf("Row %d col %d: masked position got weight %v", row, col, w)
			}
		}
	}
}

// TestMultiHeadAttention_InvalidHeads tests the divisibility guard.
func TestMultiHeadAttention_InvalidHeads(t *testing.T) {
	backend := cpu.New()

	defer func() {
		if recover() == nil {
			t.Error("Expected panic when d_model is not divisible by heads")
		}
	}()
	NewMultiHeadAttention[*cpu.CPUBackend](10, 3, 0, backend)
}

// TestMultiHeadAttention_Parameters tests the four projection layers.
func TestMultiHeadAttention_Parameters(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention[*cpu.CPUBackend](16, 4, 0, backend)

	params := mha.Parameters()
	if len(params) != 8 {
		t.Fatalf("Expected 8 parameters (4 weights + 4 biases), got %d", len(params))
	}
	for _, p := range params {
		shape := p.Tensor().Shape()
		switch len(shape) {
		case 2:
			if !shape.Equal(tensor.Shape{16, 16}) {
				t.Errorf("Weight %s: expected shape [16 16], got %v", p.Name(), shape)
			}
		case 1:
			if !shape.Equal(tensor.Shape{16}) {
				t.Errorf("Bias %s: expected shape [16], got %v", p.Name(), shape)
			}
		default:
			t.Errorf("Unexpected parameter rank for %s: %v", p.Name(), shape)
		}
	}
}
