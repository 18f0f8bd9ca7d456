package handler

import (
	"fmt"
	"net/http"

	"github.com/templui/habits/internal/ctxkeys"
	"github.com/templui/habits/internal/service"
)

type exportHandler struct {
	exportService *service.ExportService
}

func NewExportHandler(exportService *service.ExportService) *exportHandler {
	return &exportHandler{exportService: exportService}
}

// Download returns the export as a file attachment.
func (h *exportHandler) Download(w http.ResponseWriter, r *http.Request) {
	export, err := h.exportService.Export(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}

	filename := fmt.Sprintf("habits-%s.json", export.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, export)
}

// Upload stores the export in object storage and returns a download link.
func (h *exportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	url, err := h.exportService.Upload(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
