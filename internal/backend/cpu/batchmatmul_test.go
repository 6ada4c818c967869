package cpu

import (
	"testing"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// TestBatchMatMul_3D checks per-batch results against MatMul.
func TestBatchMatMul_3D(t *testing.T) {
	// Batch of two 2x2 matrices
	a := fromSlice(t, []float32{
		1, 2, 3, 4, // batch 0
		1, 0, 0, 1, // batch 1 (identity)
	}, tensor.Shape{2, 2, 2})
	b := fromSlice(t, []float32{
		5, 6, 7, 8,
		9, 10, 11, 12,
	}, tensor.Shape{2, 2, 2})

	c := a.BatchMatMul(b)

	if !c.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("Expected shape [2 2 2], got %v", c.Shape())
	}
	expected := []float32{
		19, 22, 43, 50, // [[1,2],[3,4]] @ [[5,6],[7,8]]
		9, 10, 11, 12, // identity @ b1 = b1
	}
	for i, v := range c.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestBatchMatMul_4D tests the head-shaped layout used by attention.
func TestBatchMatMul_4D(t *testing.T) {
	a := fromSlice(t, make([]float32, 2*3*4*5), tensor.Shape{2, 3, 4, 5})
	b := fromSlice(t, make([]float32, 2*3*5*6), tensor.Shape{2, 3, 5, 6})

	c := a.BatchMatMul(b)

	if !c.Shape().Equal(tensor.Shape{2, 3, 4, 6}) {
		t.Fatalf("Expected shape [2 3 4 6], got %v", c.Shape())
	}
}

// TestBatchMatMul_Mismatch tests batch and inner dimension validation.
func TestBatchMatMul_Mismatch(t *testing.T) {
	a := fromSlice(t, make([]float32, 2*2*3), tensor.Shape{2, 2, 3})

	// Batch dim mismatch
	b1 := fromSlice(t, make([]float32, 3*3*2), tensor.Shape{3, 3, 2})
	assertPanics(t, "batch mismatch", func() { a.BatchMatMul(b1) })

	// Inner dim mismatch
	b2 := fromSlice(t, make([]float32, 2*4*2), tensor.Shape{2, 4, 2})
	assertPanics(t, "inner mismatch", func() { a.BatchMatMul(b2) })

	// 2D inputs rejected
	c := fromSlice(t, make([]float32, 4), tensor.Shape{2, 2})
	assertPanics(t, "2D input", func() { c.BatchMatMul(c) })
}
