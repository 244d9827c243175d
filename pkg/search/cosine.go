package search

import (
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"
)

// CosineSimilarity calculates the cosine similarity between two vectors of
// the same width. Zero vectors yield 0 rather than NaN.
func CosineSimilarity(x, y []float32) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf(
			"vector widths must match. x is %d-wide and y is %d-wide",
			len(x),
			len(y),
		)
	}
	if len(x) == 0 {
		return 0, nil
	}

	similarity := float64(vek32.CosineSimilarity(x, y))
	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		return 0, nil
	}
	return similarity, nil
}
