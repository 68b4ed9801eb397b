package handler

import (
	"net/http"

	"github.com/msomdec/color-hunt/internal/service"
)

// ColorHandler hands out today's hunt color.
type ColorHandler struct {
	colors *service.ColorService
}

// NewColorHandler creates a new ColorHandler.
func NewColorHandler(colors *service.ColorService) *ColorHandler {
	return &ColorHandler{colors: colors}
}

// HandleNew picks a random color for the device.
// POST /api/color/new
// Request:  {"excludeColor":"red"} (optional)
// Response: {"color":{...},"date":"2026-06-01"}
func (h *ColorHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExcludeColor string `json:"excludeColor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	assignment, err := h.colors.RequestColor(r.Context(), DeviceFromContext(r.Context()), req.ExcludeColor)
	if err != nil {
		writeServiceError(w, "request color", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"color": toColorDTO(assignment.Color),
		"date":  assignment.Date,
	})
}
