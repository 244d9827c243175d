package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// extractQueryStringValueToInt extracts a query string value and converts it to an int64
// if it is not empty. If the value is empty, it returns 0.
func extractQueryStringValueToInt(
	r *http.Request,
	param string,
) (int64, error) {
	p := r.URL.Query().Get(param)
	if p == "" {
		return 0, nil
	}
	pInt, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0, err
	}
	return pInt, nil
}

// encodeJSON encodes data into JSON and writes it to the response writer.
func encodeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a JSON request body into the provided data struct.
func decodeJSON(r *http.Request, data interface{}) error {
	return json.NewDecoder(r.Body).Decode(&data)
}

// renderError renders an error response.
func renderError(w http.ResponseWriter, err error, status int) {
	if status != http.StatusNotFound {
		// Don't log not found errors
		log.Error(err)
	}
	http.Error(w, err.Error(), status)
}

// parseUUIDFromURL parses a UUID from a URL parameter. If the UUID is invalid, an error is
// rendered and uuid.Nil is returned.
func parseUUIDFromURL(r *http.Request, w http.ResponseWriter, paramName string) uuid.UUID {
	uuidStr := chi.URLParam(r, paramName)
	resourceUUID, err := uuid.Parse(uuidStr)
	if err != nil {
		renderError(
			w,
			fmt.Errorf("unable to parse resource UUID: %w", err),
			http.StatusBadRequest,
		)
		return uuid.Nil
	}
	return resourceUUID
}
