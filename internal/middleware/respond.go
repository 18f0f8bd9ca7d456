package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/templui/habits/internal/service"
)

// writeError writes the API's error envelope. Handlers use the same shape.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// writeServiceError maps a non-authentication service failure to 504 or 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrTimeout) {
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}
