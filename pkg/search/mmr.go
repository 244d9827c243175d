package search

import (
	"math"
)

// MaximalMarginalRelevance implements the Maximal Marginal Relevance
// algorithm. It takes a query embedding, a list of embeddings, a lambda
// multiplier, and a number of results to return. It returns the indices of
// the embeddings that best balance relevance to the query against
// diversity among the selected set.
// See https://www.cs.cmu.edu/~jgc/publication/The_Use_MMR_Diversity_Based_LTMIR_1998.pdf
func MaximalMarginalRelevance(
	queryEmbedding []float32,
	embeddingList [][]float32,
	lambdaMult float64,
	k int,
) ([]int, error) {
	if k <= 0 || len(embeddingList) == 0 {
		return []int{}, nil
	}

	similarityToQuery := make([]float64, len(embeddingList))
	for i, embedding := range embeddingList {
		similarity, err := CosineSimilarity(queryEmbedding, embedding)
		if err != nil {
			return nil, err
		}
		similarityToQuery[i] = similarity
	}

	mostSimilar := argmax(similarityToQuery)
	idxs := []int{mostSimilar}
	selected := [][]float32{embeddingList[mostSimilar]}

	for len(idxs) < min(k, len(embeddingList)) {
		bestScore := math.Inf(-1)
		idxToAdd := -1

		for i, queryScore := range similarityToQuery {
			if contains(idxs, i) {
				continue
			}
			redundantScore := math.Inf(-1)
			for _, selectedEmbedding := range selected {
				similarity, err := CosineSimilarity(embeddingList[i], selectedEmbedding)
				if err != nil {
					return nil, err
				}
				if similarity > redundantScore {
					redundantScore = similarity
				}
			}
			equationScore := lambdaMult*queryScore - (1-lambdaMult)*redundantScore
			if equationScore > bestScore {
				bestScore = equationScore
				idxToAdd = i
			}
		}
		if idxToAdd == -1 {
			break
		}
		idxs = append(idxs, idxToAdd)
		selected = append(selected, embeddingList[idxToAdd])
	}
	return idxs, nil
}

func argmax(values []float64) int {
	maxIdx := 0
	for i, v := range values {
		if v > values[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}

func contains(slice []int, val int) bool {
	for _, item := range slice {
		if item == val {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
