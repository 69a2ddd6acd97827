package store

import (
	"math"

	"github.com/smallnest/ragpipe/rag"
)

// CosineSimilarity returns the cosine of the angle between a and b, computed in float64.
// Zero vectors have similarity 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &rag.DimensionMismatchError{Expected: len(a), Actual: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ScaleCosine maps a cosine similarity from [-1, 1] into [0, 1].
func ScaleCosine(score float64) float64 {
	return (score + 1) / 2
}
