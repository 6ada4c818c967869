package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellis-ml/trellis/internal/backend/cpu"
	"github.com/trellis-ml/trellis/internal/tensor"
)

func TestScaledDotProductAttention_Shapes(t *testing.T) {
	backend := cpu.New()

	for _, heads := range []int{1, 2, 4} {
		q := tensor.Randn[float32](tensor.Shape{2, heads, 5, 8}, backend)
		k := tensor.Randn[float32](tensor.Shape{2, heads, 7, 8}, backend)
		v := tensor.Randn[float32](tensor.Shape{2, heads, 7, 8}, backend)

		out, weights := ScaledDotProductAttention(q, k, v, nil, nil)

		require.Equal(t, tensor.Shape{2, heads, 5, 8}, out.Shape())
		require.Equal(t, tensor.Shape{2, heads, 5, 7}, weights.Shape())
	}
}

func TestScaledDotProductAttention_WeightsSumToOne(t *testing.T) {
	backend := cpu.New()

	q := tensor.Randn[float32](tensor.Shape{1, 2, 3, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 2, 5, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 2, 5, 4}, backend)

	_, weights := ScaledDotProductAttention(q, k, v, nil, nil)

	data := weights.Data()
	for row := 0; row < 2*3; row++ {
		sum := 0.0
		for col := 0; col < 5; col++ {
			sum += float64(data[row*5+col])
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestScaledDotProductAttention_MaskConcentratesWeight(t *testing.T) {
	backend := cpu.New()

	q := tensor.Randn[float32](tensor.Shape{1, 1, 2, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 1, 5, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, 5, 4}, backend)

	// Only key 3 is visible
	maskData := []float32{0, 0, 0, 1, 0}
	mask, err := tensor.FromSlice[float32](maskData, tensor.Shape{1, 1, 1, 5}, backend)
	require.NoError(t, err)

	out, weights := ScaledDotProductAttention(q, k, v, mask, nil)

	// Every query row puts all probability mass on key 3
	data := weights.Data()
	for row := 0; row < 2; row++ {
		for col := 0; col < 5; col++ {
			w := float64(data[row*5+col])
			if col == 3 {
				assert.InDelta(t, 1.0, w, 1e-5)
			} else {
				assert.Less(t, w, 1e-5)
			}
		}
	}

	// The output rows equal value row 3
	vData := v.Data()
	outData := out.Data()
	for row := 0; row < 2; row++ {
		for i := 0; i < 4; i++ {
			assert.InDelta(t, float64(vData[3*4+i]), float64(outData[row*4+i]), 1e-4)
		}
	}
}

func TestScaledDotProductAttention_Scaling(t *testing.T) {
	backend := cpu.New()

	// With identical q/k rows the scores are uniform, so the weights are
	// uniform regardless of d_k; this exercises the 1/sqrt(d_k) path
	// without depending on its exact value.
	q := tensor.Ones[float32](tensor.Shape{1, 1, 2, 16}, backend)
	k := tensor.Ones[float32](tensor.Shape{1, 1, 4, 16}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 1, 4, 16}, backend)

	_, weights := ScaledDotProductAttention(q, k, v, nil, nil)

	for _, w := range weights.Data() {
		assert.InDelta(t, 0.25, w, 1e-5)
	}
}

func TestScaledDotProductAttention_RejectsNon4D(t *testing.T) {
	backend := cpu.New()

	q3 := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)

	assert.Panics(t, func() {
		q4 := tensor.Randn[float32](tensor.Shape{1, 1, 3, 4}, backend)
		ScaledDotProductAttention(q3, q4, q4, nil, nil)
	})
}

func TestScaledDotProductAttention_KnownValues(t *testing.T) {
	backend := cpu.New()

	// Single head, d_k = 1: scores = q*k, scale = 1
	q, err := tensor.FromSlice[float32]([]float32{0}, tensor.Shape{1, 1, 1, 1}, backend)
	require.NoError(t, err)
	k, err := tensor.FromSlice[float32]([]float32{1, 1}, tensor.Shape{1, 1, 2, 1}, backend)
	require.NoError(t, err)
	v, err := tensor.FromSlice[float32]([]float32{10, 20}, tensor.Shape{1, 1, 2, 1}, backend)
	require.NoError(t, err)

	out, weights := ScaledDotProductAttention(q, k, v, nil, nil)

	// q=0 gives equal scores, so the output is the mean of the values
	assert.InDelta(t, 0.5, weights.Data()[0], 1e-6)
	assert.InDelta(t, 0.5, weights.Data()[1], 1e-6)
	assert.InDelta(t, 15.0, out.Data()[0], 1e-4)
}
