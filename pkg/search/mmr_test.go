package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("IdenticalDirection", func(t *testing.T) {
		similarity, err := CosineSimilarity(
			[]float32{0.1, 0.2, 0.3},
			[]float32{0.2, 0.4, 0.6},
		)
		assert.NoError(t, err)
		assert.InDelta(t, 1.0, similarity, 1e-6)
	})

	t.Run("Orthogonal", func(t *testing.T) {
		similarity, err := CosineSimilarity(
			[]float32{1, 0},
			[]float32{0, 1},
		)
		assert.NoError(t, err)
		assert.InDelta(t, 0.0, similarity, 1e-6)
	})

	t.Run("Opposite", func(t *testing.T) {
		similarity, err := CosineSimilarity(
			[]float32{1, 2},
			[]float32{-1, -2},
		)
		assert.NoError(t, err)
		assert.InDelta(t, -1.0, similarity, 1e-6)
	})

	t.Run("MismatchedWidths", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2})
		assert.Error(t, err)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		similarity, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2})
		assert.NoError(t, err)
		assert.Equal(t, 0.0, similarity)
	})
}

func TestMaximalMarginalRelevance(t *testing.T) {
	t.Run("MismatchedVectorWidths", func(t *testing.T) {
		queryEmbedding := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
		embeddingList := [][]float32{
			{0.1, 0.2, 0.3},
			{0.2, 0.3, 0.4, 0.5, 0.5},
		}
		_, err := MaximalMarginalRelevance(queryEmbedding, embeddingList, 0.5, 2)
		assert.Error(t, err)
	})

	t.Run("Ranking", func(t *testing.T) {
		queryEmbedding := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
		embeddingList := [][]float32{
			{0.1, 0.2, 0.3, 0.4, 0.4},
			{0.2, 0.3, 0.4, 0.5, 0.5},
			{0.1, 0.2, 0.3, 0.4, 0.6},
			{0.1, 0.0, 0.0, 0.0, 0.0},
			{0.2, 0.0, 0.0, 0.0, 0.0},
		}
		expected := []int{2, 1}
		result, err := MaximalMarginalRelevance(queryEmbedding, embeddingList, 0.5, 2)
		assert.NoError(t, err)
		assert.Equal(t, expected, result)
	})

	t.Run("PureRelevanceLambda", func(t *testing.T) {
		queryEmbedding := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
		embeddingList := [][]float32{
			{0.1, 0.2, 0.3, 0.4, 0.4},
			{0.2, 0.3, 0.4, 0.5, 0.5},
			{0.1, 0.2, 0.3, 0.4, 0.6},
		}
		result, err := MaximalMarginalRelevance(queryEmbedding, embeddingList, 1.0, 2)
		assert.NoError(t, err)
		assert.Len(t, result, 2)
		assert.Equal(t, 2, result[0])
	})

	t.Run("KLargerThanList", func(t *testing.T) {
		queryEmbedding := []float32{0.1, 0.2}
		embeddingList := [][]float32{
			{0.1, 0.2},
			{0.2, 0.1},
		}
		result, err := MaximalMarginalRelevance(queryEmbedding, embeddingList, 0.5, 10)
		assert.NoError(t, err)
		assert.Len(t, result, 2)
	})

	t.Run("EmptyList", func(t *testing.T) {
		result, err := MaximalMarginalRelevance([]float32{0.1, 0.2}, nil, 0.5, 2)
		assert.NoError(t, err)
		assert.Empty(t, result)
	})
}
