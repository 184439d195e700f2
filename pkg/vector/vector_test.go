package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		a := []float32{1, 2, 3}
		assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	})

	t.Run("known value", func(t *testing.T) {
		a := []float32{1, 2, 3}
		b := []float32{4, 5, 6}
		assert.InDelta(t, 0.9746318461970762, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{0, 1}
		assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("opposite vectors", func(t *testing.T) {
		a := []float32{1, 1}
		b := []float32{-1, -1}
		assert.InDelta(t, -1.0, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2][]float32{
			{{1, 2, 3}, {4, 5, 6}},
			{{0.5, -0.25, 0}, {1, 1, 1}},
			{{-3, 7, 2}, {9, 0, -4}},
		}
		for _, p := range pairs {
			assert.Equal(t, CosineSimilarity(p[0], p[1]), CosineSimilarity(p[1], p[0]))
		}
	})

	t.Run("zero vector yields zero", func(t *testing.T) {
		a := []float32{0, 0, 0}
		b := []float32{1, 2, 3}
		assert.Zero(t, CosineSimilarity(a, b))
	})

	t.Run("length mismatch yields zero", func(t *testing.T) {
		assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	})
}

func TestDotProduct(t *testing.T) {
	assert.Equal(t, 32.0, DotProduct([]float32{1, 2, 3}, []float32{4, 5, 6}))
	assert.Zero(t, DotProduct([]float32{1}, []float32{1, 2}))
}

func TestNormalize(t *testing.T) {
	t.Run("produces unit vector", func(t *testing.T) {
		out := Normalize([]float32{3, 4})
		assert.InDelta(t, 1.0, Magnitude(out), 1e-6)
		assert.InDelta(t, 0.6, float64(out[0]), 1e-6)
		assert.InDelta(t, 0.8, float64(out[1]), 1e-6)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		out := Normalize([]float32{0, 0})
		assert.Equal(t, []float32{0, 0}, out)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := []float32{3, 4}
		_ = Normalize(in)
		assert.Equal(t, []float32{3, 4}, in)
	})
}

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude([]float32{3, 4}), 1e-9)
	assert.True(t, math.Abs(Magnitude(nil)) < 1e-12)
}
