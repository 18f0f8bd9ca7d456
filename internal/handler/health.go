package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/templui/habits/internal/logger"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type healthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *healthHandler {
	return &healthHandler{db: db}
}

func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := h.db.PingContext(ctx)
	if err != nil {
		logger.FromContext(r.Context()).Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
