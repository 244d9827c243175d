package models

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a unit of remembered knowledge owned by a single user.
// Resources are insert-only: there is no update path after creation.
type Resource struct {
	UUID      uuid.UUID `json:"uuid"`
	// ID is used as a cursor for pagination
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
}

// ResourceEmbedding is the embedded form of a single chunk of a Resource's
// content. Embeddings are derived artifacts: they are created alongside
// their Resource, never mutated, and destroyed when the Resource is.
type ResourceEmbedding struct {
	UUID         uuid.UUID `json:"uuid"`
	CreatedAt    time.Time `json:"created_at"`
	ResourceUUID uuid.UUID `json:"resource_uuid"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	TokenCount   int       `json:"token_count"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// RememberRequest is the payload for creating a new Resource.
type RememberRequest struct {
	Content string `json:"content" validate:"required,min=1"`
	UserID  string `json:"user_id" validate:"required,min=1"`
}

// RecallRequest is the payload for a knowledge base query.
type RecallRequest struct {
	Query  string `json:"query"  validate:"required,min=1"`
	UserID string `json:"user_id" validate:"required,min=1"`
}

// RecallResult is a single matched chunk. Only the chunk text and its
// similarity are returned, never the vector or the full Resource.
type RecallResult struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// ResourceListResponse is a cursor-paginated page of Resources.
type ResourceListResponse struct {
	Resources  []*Resource `json:"resources"`
	TotalCount int         `json:"total_count"`
	RowCount   int         `json:"row_count"`
}
