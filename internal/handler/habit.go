package handler

import (
	"net/http"

	"github.com/templui/habits/internal/ctxkeys"
	"github.com/templui/habits/internal/service"
	"github.com/templui/habits/internal/validation"
)

type habitHandler struct {
	habitService *service.HabitService
}

func NewHabitHandler(habitService *service.HabitService) *habitHandler {
	return &habitHandler{habitService: habitService}
}

func (h *habitHandler) List(w http.ResponseWriter, r *http.Request) {
	habits, err := h.habitService.List(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *habitHandler) Get(w http.ResponseWriter, r *http.Request) {
	habit, err := h.habitService.Get(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *habitHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.habitService.Count(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *habitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.HabitInput
	err := decodeJSON(w, r, &input)
	if err != nil {
		handleError(w, r, err)
		return
	}

	habit, err := h.habitService.Create(r.Context(), ctxkeys.UserID(r.Context()), input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

// editRequest is the edit body. The path names the habit; a body id is
// optional and must match it.
type editRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *habitHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	id := r.PathValue("id")
	if req.ID != "" && req.ID != id {
		handleError(w, r, &service.ValidationError{Fields: []validation.FieldError{{Field: "id", Message: "must match the habit in the path"}}})
		return
	}

	input := service.HabitInput{Name: req.Name, Description: req.Description}
	habit, err := h.habitService.Edit(r.Context(), ctxkeys.UserID(r.Context()), id, input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *habitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	habit, err := h.habitService.Delete(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *habitHandler) MarkComplete(w http.ResponseWriter, r *http.Request) {
	habit, err := h.habitService.MarkComplete(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *habitHandler) MarkIncomplete(w http.ResponseWriter, r *http.Request) {
	habit, err := h.habitService.MarkIncomplete(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}
