package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "certflow/pkg/domain-errors"
)

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError centralizes domain error translation to HTTP responses so every
// handler returns the same JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	message := "internal error"
	var de *dErrors.Error
	if errors.As(err, &de) && status < http.StatusInternalServerError {
		message = de.Message
	}

	WriteJSON(w, status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}
