package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/templui/habits/internal/logger"
	"github.com/templui/habits/internal/service"
	"github.com/templui/habits/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, fields []validation.FieldError) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message, Fields: fields}})
}

// handleError maps service errors onto HTTP responses. Internal causes are
// logged but never sent to the client.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation", "invalid input", verr.Fields)
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation", err.Error(), nil)
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", "you do not have access to this habit", nil)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, service.ErrTimeout):
		log.Warn("request timed out", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out", nil)
	case errors.Is(err, service.ErrExportStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "export_disabled", "export uploads are not configured", nil)
	default:
		log.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", nil)
	}
}

// decodeJSON reads a bounded JSON body into v. Malformed input becomes a
// validation error so handlers can pass it straight to handleError.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return &service.ValidationError{Fields: []validation.FieldError{{Field: "body", Message: "is required"}}}
	}
	if err != nil {
		return &service.ValidationError{Fields: []validation.FieldError{{Field: "body", Message: fmt.Sprintf("is not valid JSON: %v", err)}}}
	}
	return nil
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path, nil)
}
