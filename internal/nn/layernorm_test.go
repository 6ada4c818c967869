package nn

import (
	"math"
	"testing"

	"github.com/trellis-ml/trellis/internal/backend/cpu"
	"github.com/trellis-ml/trellis/internal/tensor"
)

// TestLayerNorm_Basic tests the forward pass against a hand computation.
func TestLayerNorm_Basic(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm[*cpu.CPUBackend](3, backend)

	// Input: [2, 3] = [[1, 2, 3], [4, 5, 6]]
	input, err := tensor.FromSlice[float32](
		[]float32{1, 2, 3, 4, 5, 6},
		tensor.Shape{2, 3},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := ln.Forward(input)

	// For [1, 2, 3]:
	// mean = 2, centered = [-1, 0, 1]
	// variance = 2/3, std = 0.8165
	// normalized = [-1.2247, 0, 1.2247] (alpha=1, beta=0)
	// The second row has identical deviations, so the same output.
	expected := []float32{-1.2247, 0, 1.2247, -1.2247, 0, 1.2247}
	for i, v := range output.Data() {
		if math.Abs(float64(v-expected[i])) > 0.01 {
			t.Errorf("Element %d: got %v, expected %v", i, v, expected[i])
		}
	}

	if !output.Shape().Equal(input.Shape()) {
		t.Errorf("LayerNorm changed shape: %v -> %v", input.Shape(), output.Shape())
	}
}

// TestLayerNorm_AlphaAndBeta tests the learnable scale and shift.
func TestLayerNorm_AlphaAndBeta(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm[*cpu.CPUBackend](2, backend)

	alphaData := ln.Alpha.Tensor().Data()
	alphaData[0] = 2.0
	alphaData[1] = 3.0

	betaData := ln.Beta.Tensor().Data()
	betaData[0] = 0.5
	betaData[1] = 1.0

	input, err := tensor.FromSlice[float32]([]float32{2, 4}, tensor.Shape{1, 2}, backend)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := ln.Forward(input)

	// mean = 3, centered = [-1, 1], variance = 1, std = 1
	// normalized = [-1, 1]
	// scaled = [-1*2 + 0.5, 1*3 + 1] = [-1.5, 4.0]
	expected := []float32{-1.5, 4.0}
	for i, v := range output.Data() {
		if math.Abs(float64(v-expected[i])) > 0.01 {
			t.Errorf("Element %d: got %v, expected %v", i, v, expected[i])
		}
	}
}

// TestLayerNorm_3D tests normalization statistics per position on
// [batch, seq, features] input.
func TestLayerNorm_3D(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm[*cpu.CPUBackend](8, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 3, 8}, backend)
	output := ln.Forward(input)

	if !output.Shape().Equal(tensor.Shape{2, 3, 8}) {
		t.Fatalf("Shape mismatch: expected [2 3 8], got %v", output.Shape())
	}

	// With alpha=1 and beta=0, each position should come out with mean ~0
	// and population variance ~1.
	data := output.Data()
	for pos := 0; pos < 6; pos++ {
		offset := pos * 8
		var sum, sumSq float64
		for i := 0; i < 8; i++ {
			v := float64(data[offset+i])
			sum += v
			sumSq += v * v
		}
		mean := sum / 8
		variance := sumSq/8 - mean*mean

		if math.Abs(mean) > 0.01 {
			t.Errorf("Position %d: mean %v, expected ~0", pos, mean)
		}
		if math.Abs(variance-1.0) > 0.05 {
			t.Errorf("Position %d: variance %v, expected ~1", pos, variance)
		}
	}
}

// TestLayerNorm_ConstantRow tests the degenerate zero-variance case: the
// epsilon keeps the division finite and the output collapses to beta.
func TestLayerNorm_ConstantRow(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm[*cpu.CPUBackend](4, backend)

	input, err := tensor.FromSlice[float32](
		[]float32{7, 7, 7, 7},
		tensor.Shape{1, 4},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	output := ln.Forward(input)

	for i, v := range output.Data() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("Output contains NaN/Inf at index %d", i)
		}
		if math.Abs(float64(v)) > 1e-5 {
			t.Errorf("Element %d: got %v, expected 0 (beta)", i, v)
		}
	}
}

// TestLayerNorm_Parameters tests the parameter list.
func TestLayerNorm_Parameters(t *testing.T) {
	backend := cpu.New()
	ln := NewLayerNorm[*cpu.CPUBackend](10, backend)

	params := ln.Parameters()
	if len(params) != 2 {
		t.Fatalf("Expected 2 parameters (alpha and beta), got %d", len(params))
	}

	if params[0].Name() != "alpha" {
		t.Errorf("Expected first parameter 'alpha', got %q", params[0].Name())
	}
	if params[1].Name() != "beta" {
		t.Errorf("Expected second parameter 'beta', got %q", params[1].Name())
	}
	for _, p := range params {
		if !p.Tensor().Shape().Equal(tensor.Shape{10}) {
			t.Errorf("Parameter %s: expected shape [10], got %v", p.Name(), p.Tensor().Shape())
		}
	}

	// alpha starts at ones, beta at zeros
	if params[0].Tensor().Data()[0] != 1 {
		t.Error("alpha not initialized to ones")
	}
	if params[1].Tensor().Data()[0] != 0 {
		t.Error("beta not initialized to zeros")
	}
}

// BenchmarkLayerNorm_512 benchmarks LayerNorm at the base model width.
func BenchmarkLayerNorm_512(b *testing.B) {
	backend := cpu.New()
	ln := NewLayerNorm[*cpu.CPUBackend](512, backend)
	input := tensor.Randn[float32](tensor.Shape{8, 64, 512}, backend)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ln.Forward(input)
	}
}
