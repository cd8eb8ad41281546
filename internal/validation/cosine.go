package validation

import (
	"errors"
	"fmt"
	"math"
)

var (
	errEmptyVector       = errors.New("empty vector")
	errZeroVector        = errors.New("zero vector")
	errDimensionMismatch = errors.New("dimension mismatch")
)

// Cosine returns dot(a,b) / (|a| * |b|).
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errEmptyVector
	}

	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", errDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, errZeroVector
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push identical vectors marginally past 1.
	return math.Max(-1, math.Min(1, score)), nil
}
