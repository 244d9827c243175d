package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/studyloop/recall/config"
	"github.com/studyloop/recall/internal"
	"github.com/studyloop/recall/pkg/models"
)

var log = internal.GetLogger()

const (
	// CohereEmbedEndpoint is the Cohere REST embed endpoint.
	CohereEmbedEndpoint = "https://api.cohere.ai/v1/embed"

	// InputTypeSearchDocument marks texts embedded for storage.
	InputTypeSearchDocument = "search_document"
	// InputTypeSearchQuery marks text embedded as a search query. Query and
	// document vectors are geometrically different for the same text.
	InputTypeSearchQuery = "search_query"
)

const APIKeyNotSetError = "RECALL_COHERE_API_KEY is not set" //nolint:gosec

var _ models.EmbeddingsClient = &CohereClient{}

// NewCohereClient returns an embeddings client backed by the Cohere embed
// API. The client retries transient failures with backoff; embed calls are
// idempotent so this is safe.
func NewCohereClient(cfg *config.Config) (*CohereClient, error) {
	if cfg.Embeddings.APIKey == "" {
		return nil, errors.New(APIKeyNotSetError)
	}
	if cfg.Embeddings.Model == "" {
		return nil, errors.New("embeddings.model must be set")
	}
	if cfg.Embeddings.Dimensions <= 0 {
		return nil, errors.New("embeddings.dimensions must be a positive integer")
	}

	retryableHTTPClient := retryablehttp.NewClient()
	retryableHTTPClient.RetryMax = cfg.Embeddings.MaxRetries
	retryableHTTPClient.HTTPClient.Timeout = cfg.Embeddings.Timeout
	retryableHTTPClient.Logger = internal.NewLeveledLogrus(log)
	retryableHTTPClient.Backoff = retryablehttp.DefaultBackoff
	retryableHTTPClient.CheckRetry = retryablehttp.DefaultRetryPolicy

	return &CohereClient{
		client:     retryableHTTPClient.StandardClient(),
		endpoint:   CohereEmbedEndpoint,
		apiKey:     cfg.Embeddings.APIKey,
		model:      cfg.Embeddings.Model,
		dimensions: cfg.Embeddings.Dimensions,
	}, nil
}

type CohereClient struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	model      string
	dimensions int
}

func (c *CohereClient) Dimensions() int {
	return c.dimensions
}

// EmbedDocuments embeds texts for storage. The returned slice is ordered
// the same as texts.
func (c *CohereClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, models.NewValidationError("no texts to embed")
	}
	return c.embed(ctx, texts, InputTypeSearchDocument)
}

// EmbedQuery embeds a single query string. Literal backslash-n sequences
// are collapsed to a space first; malformed input sometimes carries them
// in place of real newlines.
func (c *CohereClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, models.NewValidationError("no query text to embed")
	}
	input := strings.ReplaceAll(text, `\n`, " ")

	vectors, err := c.embed(ctx, []string{input}, InputTypeSearchQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, models.NewEmbeddingProviderError("provider returned no query embedding", nil)
	}
	return vectors[0], nil
}

func (c *CohereClient) embed(
	ctx context.Context,
	texts []string,
	inputType string,
) ([][]float32, error) {
	requestBody := cohereEmbedRequest{
		Texts:     texts,
		Model:     c.model,
		InputType: inputType,
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.NewEmbeddingProviderError("embed request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewEmbeddingProviderError("error reading embed response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewEmbeddingProviderError(
			fmt.Sprintf("embed request returned %d - %s", resp.StatusCode, resp.Status),
			nil,
		)
	}

	var embedResponse cohereEmbedResponse
	if err := json.Unmarshal(bodyBytes, &embedResponse); err != nil {
		return nil, models.NewEmbeddingProviderError("error unmarshaling embed response", err)
	}

	vectors := embedResponse.Embeddings.Vectors
	if len(vectors) != len(texts) {
		return nil, models.NewEmbeddingProviderError(
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)),
			nil,
		)
	}
	for i, vector := range vectors {
		if len(vector) != c.dimensions {
			return nil, models.NewEmbeddingProviderError(
				fmt.Sprintf(
					"embedding %d is %d-wide, expected %d for model %s",
					i,
					len(vector),
					c.dimensions,
					c.model,
				),
				nil,
			)
		}
	}

	return vectors, nil
}

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	ID         string              `json:"id"`
	Embeddings cohereEmbeddingList `json:"embeddings"`
}

// cohereEmbeddingList normalizes the two known shapes of the Cohere
// embeddings field: a bare list of vectors, or a map keyed by embedding
// type with the vectors under "float". Neither shape present yields an
// empty list rather than an error.
type cohereEmbeddingList struct {
	Vectors [][]float32
}

func (l *cohereEmbeddingList) UnmarshalJSON(data []byte) error {
	var direct [][]float32
	if err := json.Unmarshal(data, &direct); err == nil {
		l.Vectors = direct
		return nil
	}

	var byType struct {
		Float [][]float32 `json:"float"`
	}
	if err := json.Unmarshal(data, &byType); err == nil {
		l.Vectors = byType.Float
		return nil
	}

	l.Vectors = nil
	return nil
}
