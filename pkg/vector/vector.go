// Package vector provides the vector math primitives used by the
// similarity engine and the connection scorer.
//
// All similarity calculations in the codebase go through this package.
// Use these functions instead of implementing your own so that every
// caller agrees on edge-case behavior (zero vectors, length mismatches).
//
// Main Functions:
//   - CosineSimilarity: standard cosine similarity for float32 vectors
//   - DotProduct: dot product with float64 accumulation
//   - Normalize: returns a unit-length copy of a vector
package vector

import "math"

// CosineSimilarity calculates cosine similarity between two float32 vectors.
// Returns a value in [-1, 1] where 1 = identical direction, 0 = orthogonal,
// -1 = opposite.
//
// Accumulation is done in float64 for precision even with float32 inputs.
// Mismatched lengths and zero vectors yield 0 rather than an error; callers
// that need strict dimension checking must validate lengths up front.
//
// Example:
//
//	a := []float32{1.0, 2.0, 3.0}
//	b := []float32{4.0, 5.0, 6.0}
//	sim := vector.CosineSimilarity(a, b) // 0.9746...
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct calculates the dot product of two float32 vectors with float64
// accumulation. For unit-length vectors the dot product equals the cosine
// similarity. Mismatched lengths yield 0.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Magnitude returns the Euclidean length of a vector.
func Magnitude(a []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(a[i])
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of vec. Zero vectors are returned
// unchanged (copied) since they have no direction to preserve.
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	mag := Magnitude(vec)
	if mag == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / mag)
	}
	return out
}
