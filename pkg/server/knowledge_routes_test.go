package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/studyloop/recall/config"
	"github.com/studyloop/recall/pkg/models"
	"github.com/studyloop/recall/pkg/search"
	"github.com/studyloop/recall/pkg/testutils"
)

// stubEmbedder returns fixed 2-wide vectors per text so the fake store's
// cosine search behaves deterministically.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = s.vectorFor(text)
	}
	return vectors, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return s.vectorFor(text), nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }

func (s *stubEmbedder) vectorFor(text string) []float32 {
	if vector, ok := s.vectors[text]; ok {
		return vector
	}
	return []float32{0, 1}
}

// stubStore is a minimal in-memory KnowledgeStore for exercising the HTTP
// surface without a database.
type stubStore struct {
	resources  map[uuid.UUID]*models.Resource
	embeddings []models.ResourceEmbedding
	nextID     int64
}

func newStubStore() *stubStore {
	return &stubStore{resources: make(map[uuid.UUID]*models.Resource)}
}

func (s *stubStore) CreateResource(
	_ context.Context,
	resource *models.Resource,
	embeddings []models.ResourceEmbedding,
) (*models.Resource, error) {
	s.nextID++
	created := &models.Resource{
		UUID:    uuid.New(),
		ID:      s.nextID,
		UserID:  resource.UserID,
		Content: resource.Content,
	}
	s.resources[created.UUID] = created
	for _, embedding := range embeddings {
		embedding.ResourceUUID = created.UUID
		s.embeddings = append(s.embeddings, embedding)
	}
	return created, nil
}

func (s *stubStore) GetResource(
	_ context.Context,
	userID string,
	resourceUUID uuid.UUID,
) (*models.Resource, error) {
	resource, ok := s.resources[resourceUUID]
	if !ok || resource.UserID != userID {
		return nil, models.NewNotFoundError("resource " + resourceUUID.String())
	}
	return resource, nil
}

func (s *stubStore) ListResources(
	_ context.Context,
	userID string,
	cursor int64,
	limit int,
) (*models.ResourceListResponse, error) {
	var resources []*models.Resource
	for _, resource := range s.resources {
		if resource.UserID == userID && resource.ID > cursor {
			resources = append(resources, resource)
		}
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].ID < resources[j].ID })
	if limit > 0 && len(resources) > limit {
		resources = resources[:limit]
	}
	return &models.ResourceListResponse{
		Resources:  resources,
		TotalCount: len(resources),
		RowCount:   len(resources),
	}, nil
}

func (s *stubStore) DeleteResource(
	_ context.Context,
	userID string,
	resourceUUID uuid.UUID,
) error {
	resource, ok := s.resources[resourceUUID]
	if !ok || resource.UserID != userID {
		return models.NewNotFoundError("resource " + resourceUUID.String())
	}
	delete(s.resources, resourceUUID)
	return nil
}

func (s *stubStore) SearchChunks(
	_ context.Context,
	userID string,
	queryVector []float32,
	minScore float64,
	limit int,
) ([]models.SearchChunkResult, error) {
	var results []models.SearchChunkResult
	for _, embedding := range s.embeddings {
		if embedding.UserID != userID {
			continue
		}
		similarity, err := search.CosineSimilarity(queryVector, embedding.Embedding)
		if err != nil {
			return nil, err
		}
		if similarity <= minScore {
			continue
		}
		results = append(results, models.SearchChunkResult{
			Content:    embedding.Content,
			Similarity: similarity,
			Embedding:  embedding.Embedding,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *stubStore) PurgeDeleted(_ context.Context) error { return nil }

func (s *stubStore) Close() error { return nil }

func newTestAppState(store models.KnowledgeStore, embedder models.EmbeddingsClient) *models.AppState {
	cfg := &config.Config{}
	cfg.Embeddings.Dimensions = 2
	cfg.Retrieval.MinScore = 0.5
	cfg.Retrieval.TopK = 4

	return &models.AppState{
		Config:           cfg,
		EmbeddingsClient: embedder,
		KnowledgeStore:   store,
	}
}

func TestCreateResourceRoute(t *testing.T) {
	store := newStubStore()
	embedder := &stubEmbedder{}
	server := httptest.NewServer(setupRouter(newTestAppState(store, embedder)))
	defer server.Close()

	userID := testutils.GenerateRandomString(10)
	body, err := json.Marshal(models.RememberRequest{
		Content: "The sky is blue. Water boils at 100 degrees.",
	})
	assert.NoError(t, err)

	resp, err := http.Post(
		server.URL+"/api/v1/users/"+userID+"/knowledge",
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resource := new(models.Resource)
	err = json.NewDecoder(resp.Body).Decode(resource)
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resource.UUID)
	assert.Equal(t, userID, resource.UserID)

	// Both chunks were persisted
	assert.Len(t, store.embeddings, 2)
}

func TestCreateResourceRouteEmptyContent(t *testing.T) {
	server := httptest.NewServer(setupRouter(newTestAppState(newStubStore(), &stubEmbedder{})))
	defer server.Close()

	body := []byte(`{"content": "   ...   "}`)
	resp, err := http.Post(
		server.URL+"/api/v1/users/user1/knowledge",
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchKnowledgeRoute(t *testing.T) {
	store := newStubStore()
	embedder := &stubEmbedder{
		vectors: map[string][]float32{
			"The sky is blue":        {1, 0},
			"what color is the sky?": {1, 0},
		},
	}
	server := httptest.NewServer(setupRouter(newTestAppState(store, embedder)))
	defer server.Close()

	userID := testutils.GenerateRandomString(10)
	_, err := store.CreateResource(
		context.Background(),
		&models.Resource{UserID: userID, Content: "The sky is blue."},
		[]models.ResourceEmbedding{
			{UserID: userID, Content: "The sky is blue", Embedding: []float32{1, 0}},
		},
	)
	assert.NoError(t, err)

	body, err := json.Marshal(models.RecallRequest{Query: "what color is the sky?"})
	assert.NoError(t, err)

	resp, err := http.Post(
		server.URL+"/api/v1/users/"+userID+"/knowledge/search",
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var results []models.RecallResult
	err = json.NewDecoder(resp.Body).Decode(&results)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "The sky is blue", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Similarity, 0.001)
}

func TestSearchKnowledgeRouteNoMatches(t *testing.T) {
	server := httptest.NewServer(setupRouter(newTestAppState(newStubStore(), &stubEmbedder{})))
	defer server.Close()

	body := []byte(`{"query": "anything at all"}`)
	resp, err := http.Post(
		server.URL+"/api/v1/users/lonely-user/knowledge/search",
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var results []models.RecallResult
	err = json.NewDecoder(resp.Body).Decode(&results)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetResourceRoute(t *testing.T) {
	store := newStubStore()
	server := httptest.NewServer(setupRouter(newTestAppState(store, &stubEmbedder{})))
	defer server.Close()

	userID := testutils.GenerateRandomString(10)
	created, err := store.CreateResource(
		context.Background(),
		&models.Resource{UserID: userID, Content: "A fact."},
		nil,
	)
	assert.NoError(t, err)

	resp, err := http.Get(
		server.URL + "/api/v1/users/" + userID + "/knowledge/" + created.UUID.String(),
	)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resource := new(models.Resource)
	err = json.NewDecoder(resp.Body).Decode(resource)
	assert.NoError(t, err)
	assert.Equal(t, created.UUID, resource.UUID)
	assert.Equal(t, "A fact.", resource.Content)
}

func TestGetResourceRouteNotFound(t *testing.T) {
	server := httptest.NewServer(setupRouter(newTestAppState(newStubStore(), &stubEmbedder{})))
	defer server.Close()

	resp, err := http.Get(
		server.URL + "/api/v1/users/user1/knowledge/" + uuid.New().String(),
	)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetResourceRouteBadUUID(t *testing.T) {
	server := httptest.NewServer(setupRouter(newTestAppState(newStubStore(), &stubEmbedder{})))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/users/user1/knowledge/not-a-uuid")
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetResourceRouteWrongUser(t *testing.T) {
	store := newStubStore()
	server := httptest.NewServer(setupRouter(newTestAppState(store, &stubEmbedder{})))
	defer server.Close()

	created, err := store.CreateResource(
		context.Background(),
		&models.Resource{UserID: "owner", Content: "A private fact."},
		nil,
	)
	assert.NoError(t, err)

	resp, err := http.Get(
		server.URL + "/api/v1/users/intruder/knowledge/" + created.UUID.String(),
	)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListResourcesRoute(t *testing.T) {
	store := newStubStore()
	server := httptest.NewServer(setupRouter(newTestAppState(store, &stubEmbedder{})))
	defer server.Close()

	userID := testutils.GenerateRandomString(10)
	for _, content := range []string{"First fact.", "Second fact."} {
		_, err := store.CreateResource(
			context.Background(),
			&models.Resource{UserID: userID, Content: content},
			nil,
		)
		assert.NoError(t, err)
	}

	resp, err := http.Get(server.URL + "/api/v1/users/" + userID + "/knowledge")
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	page := new(models.ResourceListResponse)
	err = json.NewDecoder(resp.Body).Decode(page)
	assert.NoError(t, err)
	assert.Equal(t, 2, page.RowCount)
	assert.Len(t, page.Resources, 2)
}

func TestDeleteResourceRoute(t *testing.T) {
	store := newStubStore()
	server := httptest.NewServer(setupRouter(newTestAppState(store, &stubEmbedder{})))
	defer server.Close()

	userID := testutils.GenerateRandomString(10)
	created, err := store.CreateResource(
		context.Background(),
		&models.Resource{UserID: userID, Content: "A fact."},
		nil,
	)
	assert.NoError(t, err)

	req, err := http.NewRequest(
		http.MethodDelete,
		server.URL+"/api/v1/users/"+userID+"/knowledge/"+created.UUID.String(),
		nil,
	)
	assert.NoError(t, err)

	client := &http.Client{}
	resp, err := client.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Deleting again reports not found
	resp2, err := client.Do(req)
	assert.NoError(t, err)
	defer resp2.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
