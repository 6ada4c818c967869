package cpu

import (
	"math"
	"testing"

	"github.com/trellis-ml/trellis/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, *CPUBackend] {
	t.Helper()
	tt, err := tensor.FromSlice[float32](data, shape, New())
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return tt
}

func assertPanics(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

func assertClose(t *testing.T, got, want float32, tol float64, msg string) {
	t.Helper()
	if math.Abs(float64(got-want)) > tol {
		t.Errorf("%s: got %v, expected %v", msg, got, want)
	}
}

// TestAdd_SameShape tests the element-wise fast path.
func TestAdd_SameShape(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromSlice(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})

	c := a.Add(b)

	expected := []float32{11, 22, 33, 44}
	for i, v := range c.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestAdd_Broadcast tests stride-0 broadcasting of a row vector.
func TestAdd_Broadcast(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	c := a.Add(b)

	if !c.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("Expected shape [2 3], got %v", c.Shape())
	}
	expected := []float32{11, 22, 33, 14, 25, 36}
	for i, v := range c.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestAdd_IncompatibleShapes tests the broadcasting error path.
func TestAdd_IncompatibleShapes(t *testing.T) {
	a := fromSlice(t, make([]float32, 6), tensor.Shape{2, 3})
	b := fromSlice(t, make([]float32, 8), tensor.Shape{2, 4})

	assertPanics(t, "add", func() { a.Add(b) })
}

// TestMatMul_KnownValues checks the Gemm kernel against a hand computation.
func TestMatMul_KnownValues(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromSlice(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	c := a.MatMul(b)

	expected := []float32{19, 22, 43, 50}
	for i, v := range c.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestMatMul_Rectangular tests non-square shapes.
func TestMatMul_Rectangular(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	c := a.MatMul(b)

	if !c.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("Expected shape [2 2], got %v", c.Shape())
	}
	expected := []float32{58, 64, 139, 154}
	for i, v := range c.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestMatMul_ShapeMismatch tests inner-dimension validation.
func TestMatMul_ShapeMismatch(t *testing.T) {
	a := fromSlice(t, make([]float32, 6), tensor.Shape{2, 3})
	b := fromSlice(t, make([]float32, 8), tensor.Shape{4, 2})

	assertPanics(t, "matmul", func() { a.MatMul(b) })
}

// TestTranspose_2D tests the default axis reversal.
func TestTranspose_2D(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	at := a.T()

	if !at.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Expected shape [3 2], got %v", at.Shape())
	}
	expected := []float32{1, 4, 2, 5, 3, 6}
	for i, v := range at.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestTranspose_4D tests the head-split permutation used by attention.
func TestTranspose_4D(t *testing.T) {
	// [1, 2, 2, 2] with distinct values
	a := fromSlice(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, tensor.Shape{1, 2, 2, 2})

	// Swap the two middle axes
	at := a.Transpose(0, 2, 1, 3)

	if !at.Shape().Equal(tensor.Shape{1, 2, 2, 2}) {
		t.Fatalf("Expected shape [1 2 2 2], got %v", at.Shape())
	}
	// at[0, i, j, k] == a[0, j, i, k]
	expected := []float32{0, 1, 4, 5, 2, 3, 6, 7}
	for i, v := range at.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestTranspose_InvalidAxes tests axis validation.
func TestTranspose_InvalidAxes(t *testing.T) {
	a := fromSlice(t, make([]float32, 4), tensor.Shape{2, 2})

	assertPanics(t, "duplicate axis", func() { a.Transpose(0, 0) })
	assertPanics(t, "out of range axis", func() { a.Transpose(0, 2) })
}

// TestReshape_ElementCount tests the element-count invariant.
func TestReshape_ElementCount(t *testing.T) {
	a := fromSlice(t, make([]float32, 6), tensor.Shape{2, 3})

	b := a.Reshape(3, 2)
	if !b.Shape().Equal(tensor.Shape{3, 2}) {
		t.Errorf("Expected shape [3 2], got %v", b.Shape())
	}

	assertPanics(t, "reshape", func() { a.Reshape(4, 2) })
}

// TestSoftmax_RowsSumToOne tests softmax normalization on the last dim.
func TestSoftmax_RowsSumToOne(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, -1, 0, 1}, tensor.Shape{2, 3})

	s := a.Softmax(-1)

	for row := 0; row < 2; row++ {
		sum := float32(0)
		for col := 0; col < 3; col++ {
			v := s.At(row, col)
			if v <= 0 || v >= 1 {
				t.Errorf("Softmax value out of (0,1): %v", v)
			}
			sum += v
		}
		assertClose(t, sum, 1.0, 1e-5, "softmax row sum")
	}
}

// TestSoftmax_LargeLogits tests numerical stability via max subtraction.
func TestSoftmax_LargeLogits(t *testing.T) {
	a := fromSlice(t, []float32{1000, 1000, 1000}, tensor.Shape{1, 3})

	s := a.Softmax(-1)

	for _, v := range s.Data() {
		assertClose(t, v, 1.0/3.0, 1e-5, "uniform softmax")
	}
}

// TestLogSoftmax_ExpSumsToOne tests that exponentials of a log-softmax row
// sum to 1.
func TestLogSoftmax_ExpSumsToOne(t *testing.T) {
	a := fromSlice(t, []float32{2, -1, 0.5, 3}, tensor.Shape{1, 4})

	ls := a.LogSoftmax(-1)

	sum := 0.0
	for _, v := range ls.Data() {
		if v >= 0 {
			t.Errorf("Log-probability must be negative, got %v", v)
		}
		sum += math.Exp(float64(v))
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("exp(logsoftmax) sum: expected 1, got %v", sum)
	}
}

// TestLogSoftmax_MatchesSoftmaxLog cross-checks the two kernels on
// well-conditioned input.
func TestLogSoftmax_MatchesSoftmaxLog(t *testing.T) {
	a := fromSlice(t, []float32{0.5, 1.5, -0.5, 2}, tensor.Shape{1, 4})

	ls := a.LogSoftmax(-1).Data()
	sm := a.Softmax(-1).Data()

	for i := range ls {
		assertClose(t, ls[i], float32(math.Log(float64(sm[i]))), 1e-5, "logsoftmax vs log(softmax)")
	}
}

// TestSumDim_MeanDim tests reductions with and without keepDim.
func TestSumDim_MeanDim(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	sum := a.SumDim(1, false)
	if !sum.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("SumDim shape: expected [2], got %v", sum.Shape())
	}
	if sum.Data()[0] != 6 || sum.Data()[1] != 15 {
		t.Errorf("SumDim values: got %v", sum.Data())
	}

	mean := a.MeanDim(-1, true)
	if !mean.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("MeanDim shape: expected [2 1], got %v", mean.Shape())
	}
	if mean.Data()[0] != 2 || mean.Data()[1] != 5 {
		t.Errorf("MeanDim values: got %v", mean.Data())
	}

	// Reduction over the leading dim
	sum0 := a.SumDim(0, false)
	if !sum0.Shape().Equal(tensor.Shape{3}) {
		t.Fatalf("SumDim(0) shape: expected [3], got %v", sum0.Shape())
	}
	expected := []float32{5, 7, 9}
	for i, v := range sum0.Data() {
		if v != expected[i] {
			t.Errorf("SumDim(0) element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestEmbedding_Lookup tests row gathering.
func TestEmbedding_Lookup(t *testing.T) {
	backend := New()

	weight := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	indices, err := tensor.FromSlice[int32]([]int32{2, 0}, tensor.Shape{1, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	out := weight.Embedding(indices)

	if !out.Shape().Equal(tensor.Shape{1, 2, 2}) {
		t.Fatalf("Expected shape [1 2 2], got %v", out.Shape())
	}
	expected := []float32{5, 6, 1, 2}
	for i, v := range out.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

// TestEmbedding_OutOfRange tests id validation.
func TestEmbedding_OutOfRange(t *testing.T) {
	backend := New()

	weight := fromSlice(t, make([]float32, 6), tensor.Shape{3, 2})
	indices, err := tensor.FromSlice[int32]([]int32{3}, tensor.Shape{1, 1}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	assertPanics(t, "embedding", func() { weight.Embedding(indices) })
}

// TestMaskedFill_Broadcast tests filling through a broadcast mask.
func TestMaskedFill_Broadcast(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	mask := fromSlice(t, []float32{1, 0}, tensor.Shape{1, 2})

	out := x.MaskedFill(mask, -1e9)

	// Column 1 filled in both rows, column 0 untouched
	expected := []float32{1, -1e9, 3, -1e9}
	for i, v := range out.Data() {
		if v != expected[i] {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], v)
		}
	}

	// Input untouched
	if x.Data()[1] != 2 {
		t.Errorf("MaskedFill modified its input: %v", x.Data())
	}
}

// TestMaskedFill_BadMask tests that a mask larger than the input is
// rejected.
func TestMaskedFill_BadMask(t *testing.T) {
	x := fromSlice(t, make([]float32, 2), tensor.Shape{1, 2})
	mask := fromSlice(t, make([]float32, 8), tensor.Shape{4, 2})

	assertPanics(t, "maskedfill", func() { x.MaskedFill(mask, 0) })
}

// TestScalarOps tests scalar arithmetic.
func TestScalarOps(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	m := a.MulScalar(2)
	if m.Data()[3] != 8 {
		t.Errorf("MulScalar: got %v", m.Data())
	}

	s := a.AddScalar(0.5)
	if s.Data()[0] != 1.5 {
		t.Errorf("AddScalar: got %v", s.Data())
	}

	d := a.DivScalar(4)
	if d.Data()[3] != 1 {
		t.Errorf("DivScalar: got %v", d.Data())
	}
}

// TestUnsqueezeSqueeze tests shape bookkeeping.
func TestUnsqueezeSqueeze(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	u := a.Unsqueeze(1)
	if !u.Shape().Equal(tensor.Shape{2, 1, 3}) {
		t.Fatalf("Unsqueeze: expected [2 1 3], got %v", u.Shape())
	}

	sq := u.Squeeze(1)
	if !sq.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("Squeeze: expected [2 3], got %v", sq.Shape())
	}

	assertPanics(t, "squeeze non-1 dim", func() { a.Squeeze(0) })
}

// TestMathOps spot-checks the unary kernels.
func TestMathOps(t *testing.T) {
	a := fromSlice(t, []float32{1, 4, 9}, tensor.Shape{3})

	sq := a.Sqrt()
	expected := []float32{1, 2, 3}
	for i, v := range sq.Data() {
		assertClose(t, v, expected[i], 1e-6, "sqrt")
	}

	rs := a.Rsqrt()
	assertClose(t, rs.Data()[1], 0.5, 1e-6, "rsqrt")

	e := fromSlice(t, []float32{0, 1}, tensor.Shape{2}).Exp()
	assertClose(t, e.Data()[0], 1, 1e-6, "exp(0)")
	assertClose(t, e.Data()[1], float32(math.E), 1e-5, "exp(1)")

	l := fromSlice(t, []float32{1, float32(math.E)}, tensor.Shape{2}).Log()
	assertClose(t, l.Data()[0], 0, 1e-6, "log(1)")
	assertClose(t, l.Data()[1], 1, 1e-5, "log(e)")

	assertPanics(t, "log of non-positive", func() {
		fromSlice(t, []float32{-1}, tensor.Shape{1}).Log()
	})

	r := fromSlice(t, []float32{-2, 0, 3}, tensor.Shape{3}).Relu()
	if r.Data()[0] != 0 || r.Data()[1] != 0 || r.Data()[2] != 3 {
		t.Errorf("Relu: got %v", r.Data())
	}
}
