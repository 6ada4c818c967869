package tensor

// MulScalar multiplies every element by a scalar.
//
// Example:
//
//	t := tensor.Ones[float32](Shape{2, 2}, backend)
//	scaled := t.MulScalar(2.5) // All elements = 2.5
func (t *Tensor[T, B]) MulScalar(scalar T) *Tensor[T, B] {
	return New[T, B](t.backend.MulScalar(t.raw, scalar), t.backend)
}

// AddScalar adds a scalar to every element.
func (t *Tensor[T, B]) AddScalar(scalar T) *Tensor[T, B] {
	return New[T, B](t.backend.AddScalar(t.raw, scalar), t.backend)
}

// DivScalar divides every element by a scalar.
func (t *Tensor[T, B]) DivScalar(scalar T) *Tensor[T, B] {
	return New[T, B](t.backend.DivScalar(t.raw, scalar), t.backend)
}

// Exp computes the element-wise exponential.
func (t *Tensor[T, B]) Exp() *Tensor[T, B] {
	return New[T, B](t.backend.Exp(t.raw), t.backend)
}

// Log computes the element-wise natural logarithm.
// Panics on non-positive input.
func (t *Tensor[T, B]) Log() *Tensor[T, B] {
	return New[T, B](t.backend.Log(t.raw), t.backend)
}

// Sqrt computes the element-wise square root.
func (t *Tensor[T, B]) Sqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Sqrt(t.raw), t.backend)
}

// Rsqrt computes the element-wise reciprocal square root (1/sqrt(x)).
func (t *Tensor[T, B]) Rsqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Rsqrt(t.raw), t.backend)
}

// Relu computes the element-wise rectified linear unit: max(0, x).
func (t *Tensor[T, B]) Relu() *Tensor[T, B] {
	return New[T, B](t.backend.Relu(t.raw), t.backend)
}

// Softmax computes the softmax along the given dimension.
// Negative dims count from the end (-1 = last dimension).
//
// Example:
//
//	scores := tensor.Randn[float32](Shape{2, 8, 10, 10}, backend)
//	probs := scores.Softmax(-1) // Rows sum to 1
func (t *Tensor[T, B]) Softmax(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Softmax(t.raw, dim), t.backend)
}

// LogSoftmax computes log(softmax(x)) along the given dimension in a
// numerically stable way (shifted log-space, not Log of Softmax).
func (t *Tensor[T, B]) LogSoftmax(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.LogSoftmax(t.raw, dim), t.backend)
}

// SumDim sums along a dimension. With keepDim the reduced dimension is
// retained with size 1, which keeps the result broadcastable to the input.
func (t *Tensor[T, B]) SumDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MeanDim averages along a dimension. With keepDim the reduced dimension is
// retained with size 1.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}

// Unsqueeze inserts a dimension of size 1 at the given position.
//
// Example:
//
//	t := tensor.Ones[float32](Shape{3, 4}, backend)
//	u := t.Unsqueeze(1) // Shape: [3, 1, 4]
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Unsqueeze(t.raw, dim), t.backend)
}

// Squeeze removes a dimension of size 1 at the given position.
// Panics if the dimension's size is not 1.
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Squeeze(t.raw, dim), t.backend)
}

// MaskedFill returns a copy of t with value written wherever the mask is
// zero. The mask must broadcast to t's shape; positions where the mask is
// non-zero keep their original values.
//
// Example:
//
//	scores := tensor.Randn[float32](Shape{1, 4, 5, 5}, backend)
//	masked := scores.MaskedFill(mask, -1e9)
func (t *Tensor[T, B]) MaskedFill(mask *Tensor[T, B], value T) *Tensor[T, B] {
	return New[T, B](t.backend.MaskedFill(t.raw, mask.raw, value), t.backend)
}

// Embedding treats t as an embedding table of shape (vocab, dim) and gathers
// rows by the given integer indices. The result appends dim to the indices'
// shape: indices (B, L) → output (B, L, dim).
//
// Panics if any index falls outside [0, vocab).
func (t *Tensor[T, B]) Embedding(indices *Tensor[int32, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Embedding(t.raw, indices.Raw()), t.backend)
}
