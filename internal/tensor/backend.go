package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Every operation returns a freshly allocated RawTensor; inputs are never
// modified. The CPU implementation lives in internal/backend/cpu.
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor // add dimension of size 1
	Squeeze(x *RawTensor, dim int) *RawTensor   // remove dimension of size 1

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar any) *RawTensor // multiply by scalar
	AddScalar(x *RawTensor, scalar any) *RawTensor // add scalar
	DivScalar(x *RawTensor, scalar any) *RawTensor // divide by scalar

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor   // exponential
	Log(x *RawTensor) *RawTensor   // natural logarithm
	Sqrt(x *RawTensor) *RawTensor  // square root
	Rsqrt(x *RawTensor) *RawTensor // reciprocal square root (1/sqrt(x))

	// Activation functions
	Relu(x *RawTensor) *RawTensor                // max(0, x)
	Softmax(x *RawTensor, dim int) *RawTensor    // softmax along dimension
	LogSoftmax(x *RawTensor, dim int) *RawTensor // numerically stable log(softmax(x))

	// Reduction operations
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension

	// Indexing operations
	Embedding(weight, indices *RawTensor) *RawTensor // lookup embedding rows by indices

	// MaskedFill returns a copy of x with value written wherever mask is zero.
	// The mask must broadcast to x's shape.
	MaskedFill(x, mask *RawTensor, value any) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
