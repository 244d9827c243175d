package knowledge

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/studyloop/recall/internal"
	"github.com/studyloop/recall/pkg/chunker"
	"github.com/studyloop/recall/pkg/models"
	"github.com/studyloop/recall/pkg/search"
)

var log = internal.GetLogger()

var validate = validator.New()

// TokenEncoding is the tokenizer used to count tokens per chunk. The
// counts are bookkeeping only and play no part in retrieval.
const TokenEncoding = "cl100k_base"

// NewKnowledgeService wires the chunker, the embeddings client and the
// knowledge store into the remember/recall contract. All collaborators are
// injected; tests substitute fakes.
func NewKnowledgeService(appState *models.AppState) *KnowledgeService {
	return &KnowledgeService{
		appState: appState,
		embedder: appState.EmbeddingsClient,
		store:    appState.KnowledgeStore,
	}
}

type KnowledgeService struct {
	appState *models.AppState
	embedder models.EmbeddingsClient
	store    models.KnowledgeStore
}

// Remember validates the request, chunks the content, embeds the chunks in
// document mode and persists the resource together with its embeddings in
// one transaction.
func (ks *KnowledgeService) Remember(
	ctx context.Context,
	request *models.RememberRequest,
) (*models.Resource, error) {
	if err := validate.Struct(request); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	chunks := chunker.ChunkContent(request.Content)
	if len(chunks) == 0 {
		return nil, models.NewValidationError(
			"content contains no rememberable text after chunking",
		)
	}

	vectors, err := ks.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, models.NewEmbeddingProviderError(
			fmt.Sprintf("expected %d embeddings, got %d", len(chunks), len(vectors)),
			nil,
		)
	}

	embeddings := make([]models.ResourceEmbedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = models.ResourceEmbedding{
			UserID:     request.UserID,
			Content:    chunk,
			TokenCount: tokenCount(chunk),
			Embedding:  vectors[i],
		}
	}

	resource := &models.Resource{
		UserID:  request.UserID,
		Content: request.Content,
	}

	createdResource, err := ks.store.CreateResource(ctx, resource, embeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to persist resource: %w", err)
	}

	log.Debugf(
		"remembered resource %s with %d chunks for user %s",
		createdResource.UUID,
		len(embeddings),
		request.UserID,
	)

	return createdResource, nil
}

// Recall embeds the query in query mode and returns the user's most
// similar stored chunks. No matches is an empty result, never an error.
func (ks *KnowledgeService) Recall(
	ctx context.Context,
	request *models.RecallRequest,
) ([]models.RecallResult, error) {
	if err := validate.Struct(request); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	queryVector, err := ks.embedder.EmbedQuery(ctx, request.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	retrieval := ks.appState.Config.Retrieval
	limit := retrieval.TopK
	withMMR := retrieval.MMR.Enabled
	if withMMR {
		multiplier := retrieval.MMR.Multiplier
		if multiplier < 2 {
			multiplier = 2
		}
		limit = retrieval.TopK * multiplier
	}

	matches, err := ks.store.SearchChunks(
		ctx,
		request.UserID,
		queryVector,
		retrieval.MinScore,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	if withMMR && len(matches) > 0 {
		matches, err = rerankMMR(queryVector, matches, retrieval.MMR.Lambda, retrieval.TopK)
		if err != nil {
			return nil, fmt.Errorf("failed to rerank results: %w", err)
		}
	}

	results := make([]models.RecallResult, len(matches))
	for i, match := range matches {
		results[i] = models.RecallResult{
			Content:    match.Content,
			Similarity: match.Similarity,
		}
	}

	return results, nil
}

// GetResource returns a single resource owned by userID.
func (ks *KnowledgeService) GetResource(
	ctx context.Context,
	userID string,
	resourceUUID uuid.UUID,
) (*models.Resource, error) {
	return ks.store.GetResource(ctx, userID, resourceUUID)
}

// ListResources returns a page of the user's resources.
func (ks *KnowledgeService) ListResources(
	ctx context.Context,
	userID string,
	cursor int64,
	limit int,
) (*models.ResourceListResponse, error) {
	return ks.store.ListResources(ctx, userID, cursor, limit)
}

// DeleteResource removes a resource and all of its embeddings.
func (ks *KnowledgeService) DeleteResource(
	ctx context.Context,
	userID string,
	resourceUUID uuid.UUID,
) error {
	return ks.store.DeleteResource(ctx, userID, resourceUUID)
}

// rerankMMR reorders oversampled matches for diversity and truncates to
// topK. Matches arrive in descending similarity order and leave the same
// way: MMR picks which chunks survive, not how they are sorted.
func rerankMMR(
	queryVector []float32,
	matches []models.SearchChunkResult,
	lambda float64,
	topK int,
) ([]models.SearchChunkResult, error) {
	embeddingList := make([][]float32, len(matches))
	for i := range matches {
		embeddingList[i] = matches[i].Embedding
	}

	idxs, err := search.MaximalMarginalRelevance(queryVector, embeddingList, lambda, topK)
	if err != nil {
		return nil, err
	}

	selected := make(map[int]bool, len(idxs))
	for _, idx := range idxs {
		selected[idx] = true
	}

	reranked := make([]models.SearchChunkResult, 0, len(idxs))
	for i := range matches {
		if selected[i] {
			reranked = append(reranked, matches[i])
		}
	}
	return reranked, nil
}

func tokenCount(text string) int {
	encoding, err := tiktoken.GetEncoding(TokenEncoding)
	if err != nil {
		log.Warnf("failed to load %s encoding: %v", TokenEncoding, err)
		return 0
	}
	return len(encoding.Encode(text, nil, nil))
}
