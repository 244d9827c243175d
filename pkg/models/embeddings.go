package models

import "context"

// EmbeddingsClient converts text into fixed-width vectors via an external
// embedding provider. Implementations must use the same model for both
// document and query modes; the two modes produce geometrically different
// vectors for the same text and must never be conflated.
type EmbeddingsClient interface {
	// EmbedDocuments embeds texts for storage (input type search_document).
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search query (input type search_query).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the vector width the configured model produces.
	Dimensions() int
}
