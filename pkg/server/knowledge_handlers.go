package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyloop/recall/pkg/knowledge"
	"github.com/studyloop/recall/pkg/models"
)

const defaultResourcePageLimit = 20

// CreateResourceHandler stores a piece of content in the user's knowledge
// base. The content is chunked and embedded before being persisted, so a
// successful response means the resource is searchable.
func CreateResourceHandler(appState *models.AppState) http.HandlerFunc {
	service := knowledge.NewKnowledgeService(appState)
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		var request models.RememberRequest
		if err := decodeJSON(r, &request); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		request.UserID = userID

		resource, err := service.Remember(r.Context(), &request)
		if err != nil {
			renderServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		if err := encodeJSON(w, resource); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// SearchKnowledgeHandler searches the user's knowledge base for chunks
// similar to the query. Only sufficiently similar chunks are returned; no
// matches is an empty list, not an error.
func SearchKnowledgeHandler(appState *models.AppState) http.HandlerFunc {
	service := knowledge.NewKnowledgeService(appState)
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		var request models.RecallRequest
		if err := decodeJSON(r, &request); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		request.UserID = userID

		results, err := service.Recall(r.Context(), &request)
		if err != nil {
			renderServiceError(w, err)
			return
		}

		if err := encodeJSON(w, results); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// ListResourcesHandler returns a page of the user's resources. Pagination
// is cursor-based: pass the last resource's row id as the cursor.
func ListResourcesHandler(appState *models.AppState) http.HandlerFunc {
	service := knowledge.NewKnowledgeService(appState)
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		cursor, err := extractQueryStringValueToInt(r, "cursor")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		limit, err := extractQueryStringValueToInt(r, "limit")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if limit <= 0 {
			limit = defaultResourcePageLimit
		}

		page, err := service.ListResources(r.Context(), userID, cursor, int(limit))
		if err != nil {
			renderServiceError(w, err)
			return
		}

		if err := encodeJSON(w, page); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetResourceHandler returns a single resource owned by the user.
func GetResourceHandler(appState *models.AppState) http.HandlerFunc {
	service := knowledge.NewKnowledgeService(appState)
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		resourceUUID := parseUUIDFromURL(r, w, "resourceUUID")
		if resourceUUID == uuid.Nil {
			return
		}

		resource, err := service.GetResource(r.Context(), userID, resourceUUID)
		if err != nil {
			renderServiceError(w, err)
			return
		}

		if err := encodeJSON(w, resource); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// DeleteResourceHandler removes a resource and all of its chunk embeddings.
func DeleteResourceHandler(appState *models.AppState) http.HandlerFunc {
	service := knowledge.NewKnowledgeService(appState)
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		resourceUUID := parseUUIDFromURL(r, w, "resourceUUID")
		if resourceUUID == uuid.Nil {
			return
		}

		if err := service.DeleteResource(r.Context(), userID, resourceUUID); err != nil {
			renderServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// renderServiceError maps service errors to HTTP statuses.
func renderServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		renderError(w, err, http.StatusNotFound)
	case errors.Is(err, models.ErrValidation):
		renderError(w, err, http.StatusBadRequest)
	case errors.Is(err, models.ErrEmbeddingProvider):
		renderError(w, err, http.StatusBadGateway)
	default:
		renderError(w, err, http.StatusInternalServerError)
	}
}
