package postgres

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/studyloop/recall/pkg/models"
	"github.com/studyloop/recall/pkg/store"
)

// chunkSearchResult is the row shape produced by the similarity query.
// The embedding comes back cast to real[] so bun can scan it without the
// pgvector column type.
type chunkSearchResult struct {
	Content    string    `bun:"content"`
	Similarity float64   `bun:"similarity"`
	Embedding  []float32 `bun:"embedding,array"`
}

// SearchChunks ranks the user's stored chunks by cosine similarity against
// queryVector. Results at or below minScore are excluded, the rest are
// returned in descending similarity order, at most limit of them. An empty
// result set is a valid response, not an error.
func (pks *PostgresKnowledgeStore) SearchChunks(
	ctx context.Context,
	userID string,
	queryVector []float32,
	minScore float64,
	limit int,
) ([]models.SearchChunkResult, error) {
	if userID == "" {
		return nil, store.NewStorageError("userID is empty", nil)
	}
	if len(queryVector) != pks.appState.Config.Embeddings.Dimensions {
		return nil, store.NewEmbeddingMismatchError(nil)
	}

	operation := &chunkSearchOperation{
		ctx:         ctx,
		db:          pks.Client,
		userID:      userID,
		queryVector: pgvector.NewVector(queryVector),
		minScore:    minScore,
		limit:       limit,
	}

	return operation.Execute()
}

type chunkSearchOperation struct {
	ctx         context.Context
	db          *bun.DB
	userID      string
	queryVector pgvector.Vector
	minScore    float64
	limit       int
}

func (cso *chunkSearchOperation) Execute() ([]models.SearchChunkResult, error) {
	var rows []chunkSearchResult
	err := cso.buildQuery().Scan(cso.ctx, &rows)
	if err != nil && err != sql.ErrNoRows {
		return nil, store.NewStorageError("chunk similarity search failed", err)
	}

	results := make([]models.SearchChunkResult, len(rows))
	for i, row := range rows {
		results[i] = models.SearchChunkResult{
			Content:    row.Content,
			Similarity: row.Similarity,
			Embedding:  row.Embedding,
		}
	}

	log.Debugf("chunk search for user %s returned %d results", cso.userID, len(results))

	return results, nil
}

func (cso *chunkSearchOperation) buildQuery() *bun.SelectQuery {
	// Cosine similarity is 1 - (a <=> b). The expression is repeated in the
	// WHERE clause because the alias is not visible there.
	query := cso.db.NewSelect().
		Model((*ResourceEmbeddingSchema)(nil)).
		Column("content").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", cso.queryVector).
		ColumnExpr("embedding::real[] AS embedding").
		Where("user_id = ?", cso.userID).
		Where("1 - (embedding <=> ?) > ?", cso.queryVector, cso.minScore).
		OrderExpr("similarity DESC")

	if cso.limit > 0 {
		query = query.Limit(cso.limit)
	}

	return query
}
