package nn

import (
	"math"
	"testing"

	"github.com/trellis-ml/trellis/internal/backend/cpu"
	"github.com/trellis-ml/trellis/internal/tensor"
)

// TestPositionalEncoding_Formula spot-checks table entries against the
// sinusoid definition.
func TestPositionalEncoding_Formula(t *testing.T) {
	backend := cpu.New()
	pe := NewPositionalEncoding[*cpu.CPUBackend](8, 16, 0, backend)

	table := pe.Encoding.Data()

	// Position 0: sin(0)=0 at even dims, cos(0)=1 at odd dims
	for i := 0; i < 8; i++ {
		want := float32(0)
		if i%2 == 1 {
			want = 1
		}
		if math.Abs(float64(table[i]-want)) > 1e-6 {
			t.Errorf("PE(0, %d): got %v, expected %v", i, table[i], want)
		}
	}

	// Position 3, dim 4: sin(3 / 10000^(4/8))
	angle := 3.0 / math.Pow(10000, 4.0/8.0)
	got := table[3*8+4]
	if math.Abs(float64(got)-math.Sin(angle)) > 1e-6 {
		t.Errorf("PE(3, 4): got %v, expected %v", got, math.Sin(angle))
	}

	// Position 3, dim 5 shares the frequency of dim 4 but uses cos
	got = table[3*8+5]
	if math.Abs(float64(got)-math.Cos(angle)) > 1e-6 {
		t.Errorf("PE(3, 5): got %v, expected %v", got, math.Cos(angle))
	}
}

// TestPositionalEncoding_AddsToInput tests that zero input comes out as the
// raw table rows (dropout 0).
func TestPositionalEncoding_AddsToInput(t *testing.T) {
	backend := cpu.New()
	pe := NewPositionalEncoding[*cpu.CPUBackend](4, 10, 0, backend)

	zero := tensor.Zeros[float32](tensor.Shape{2, 3, 4}, backend)
	out := pe.Forward(zero)

	if !out.Shape().Equal(tensor.Shape{2, 3, 4}) {
		t.Fatalf("Expected shape [2 3 4], got %v", out.Shape())
	}

	// Both batch entries equal the first 3 table rows
	table := pe.Encoding.Data()
	data := out.Data()
	for b := 0; b < 2; b++ {
		for i := 0; i < 12; i++ {
			if data[b*12+i] != table[i] {
				t.Errorf("Batch %d element %d: got %v, expected %v", b, i, data[b*12+i], table[i])
			}
		}
	}
}

// TestPositionalEncoding_Deterministic tests that repeated calls agree in
// evaluation mode.
func TestPositionalEncoding_Deterministic(t *testing.T) {
	backend := cpu.New()
	pe := NewPositionalEncoding[*cpu.CPUBackend](16, 20, 0.5, backend)
	pe.SetTraining(false)

	input := tensor.Randn[float32](tensor.Shape{1, 5, 16}, backend)

	a := pe.Forward(input).Data()
	b := pe.Forward(input).Data()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Eval-mode forward not deterministic at element %d", i)
		}
	}
}

// TestPositionalEncoding_TooLong tests the MaxLen guard.
func TestPositionalEncoding_TooLong(t *testing.T) {
	backend := cpu.New()
	pe := NewPositionalEncoding[*cpu.CPUBackend](4, 5, 0, backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 6, 4}, backend)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for sequence longer than MaxLen")
		}
	}()
	pe.Forward(input)
}

// TestPositionalEncoding_NoParameters tests that the table is not learned.
func TestPositionalEncoding_NoParameters(t *testing.T) {
	backend := cpu.New()
	pe := NewPositionalEncoding[*cpu.CPUBackend](4, 5, 0, backend)

	if len(pe.Parameters()) != 0 {
		t.Errorf("Expected no parameters, got %d", len(pe.Parameters()))
	}
}
