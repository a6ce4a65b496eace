package textutil

import "math"

// Cosine returns the cosine similarity of a and b. Mismatched lengths or
// zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CosineDistance is 1 - Cosine(a, b).
func CosineDistance(a, b []float32) float64 {
	return 1 - Cosine(a, b)
}
