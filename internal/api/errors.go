package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondAppError categorizes err and sends it. Server side failures are
// logged with their cause; the cause is never sent to the client.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	if catErr.StatusCode >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"code": catErr.Code,
			"path": r.URL.Path,
		}).Error("Request failed")
	}
	if retryAfter, ok := catErr.Details["retryAfter"].(int); ok {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	respondJSON(w, catErr.StatusCode, ErrorResponse{Error: *catErr.ToServiceError()})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 10

// parseJSONBody parses JSON request body.
func parseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.NewInvalidParameterError("body", err.Error())
	}
	return nil
}
