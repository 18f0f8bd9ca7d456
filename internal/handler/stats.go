package handler

import (
	"net/http"
	"strconv"

	"github.com/templui/habits/internal/ctxkeys"
	"github.com/templui/habits/internal/service"
	"github.com/templui/habits/internal/stats"
	"github.com/templui/habits/internal/validation"
)

type statsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(statsService *service.StatsService) *statsHandler {
	return &statsHandler{statsService: statsService}
}

func (h *statsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.statsService.Summary(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Calendar serves a habit's completion grid. ?days defaults to one year.
func (h *statsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	days := stats.DefaultHorizonDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			handleError(w, r, &service.ValidationError{Fields: []validation.FieldError{{Field: "days", Message: "must be an integer"}}})
			return
		}
		days = n
	}

	calendar, err := h.statsService.Calendar(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"), days)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calendar)
}
