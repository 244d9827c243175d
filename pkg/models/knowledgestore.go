package models

import (
	"context"

	"github.com/google/uuid"
)

// KnowledgeStore persists Resources and their chunk embeddings and serves
// similarity queries over them.
type KnowledgeStore interface {
	// CreateResource inserts a Resource and all of its chunk embeddings in
	// a single transaction. Either everything becomes visible or nothing does.
	CreateResource(
		ctx context.Context,
		resource *Resource,
		embeddings []ResourceEmbedding,
	) (*Resource, error)

	// GetResource returns a Resource owned by userID.
	GetResource(ctx context.Context, userID string, resourceUUID uuid.UUID) (*Resource, error)

	// ListResources returns a page of Resources owned by userID, ordered by
	// insertion. cursor is the last seen resource ID; 0 starts from the top.
	ListResources(ctx context.Context, userID string, cursor int64, limit int) (*ResourceListResponse, error)

	// DeleteResource removes a Resource and cascades to its embeddings.
	DeleteResource(ctx context.Context, userID string, resourceUUID uuid.UUID) error

	// SearchChunks ranks userID's stored chunks by cosine similarity against
	// queryVector, excludes results at or below minScore, and returns at
	// most limit results in descending similarity order.
	SearchChunks(
		ctx context.Context,
		userID string,
		queryVector []float32,
		minScore float64,
		limit int,
	) ([]SearchChunkResult, error)

	// PurgeDeleted hard deletes soft deleted rows.
	PurgeDeleted(ctx context.Context) error

	// Close shuts down the store's connections.
	Close() error
}

// SearchChunkResult is a chunk matched by a similarity search, together
// with its score and the vector used to rank it. The vector is retained so
// callers can rerank in memory; it is stripped before results leave the
// service layer.
type SearchChunkResult struct {
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
	Embedding  []float32 `json:"-"`
}
