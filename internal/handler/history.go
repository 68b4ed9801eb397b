package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/metrics"
	"github.com/msomdec/color-hunt/internal/service"
)

// HistoryHandler handles collage completion, history, and stats.
type HistoryHandler struct {
	history  *service.HistoryService
	maxBytes int64
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history *service.HistoryService, maxBytes int64) *HistoryHandler {
	return &HistoryHandler{history: history, maxBytes: maxBytes}
}

// HandleComplete stores a finished collage and completes the session.
// POST /api/collage/complete (multipart: sessionId, collage)
// Response: {"collageId":"col_..."}
func (h *HistoryHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or oversized upload.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required.")
		return
	}
	data, err := formFile(r.MultipartForm, "collage")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.history.Complete(r.Context(), DeviceFromContext(r.Context()), sessionID, data)
	if err != nil {
		writeServiceError(w, "complete collage", err)
		return
	}
	metrics.RecordCollage(record.Color)

	writeJSON(w, http.StatusCreated, map[string]any{
		"collageId": record.ID,
	})
}

// HandleHistory lists completed collages, newest first.
// GET /api/history?color=&limit=&offset=
// Response: {"collages":[...],"hasMore":false}
func (h *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.HistoryFilter{Color: q.Get("color")}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+name+".")
			return
		}
		*dst = n
	}

	collages, hasMore, err := h.history.ListCompletedCollages(r.Context(), DeviceFromContext(r.Context()), filter)
	if err != nil {
		writeServiceError(w, "list history", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collages": toCollageDTOs(collages),
		"hasMore":  hasMore,
	})
}

// HandleStats returns completion counts per color.
// GET /api/stats
// Response: {"stats":[{"color":"red","count":2,"lastDate":"..."}]}
func (h *HistoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.Stats(r.Context(), DeviceFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, "collage stats", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats": toColorStatDTOs(stats),
	})
}

// HandleCollage serves a completed collage image.
// GET /api/collage/{id}
func (h *HistoryHandler) HandleCollage(w http.ResponseWriter, r *http.Request) {
	data, err := h.history.File(r.Context(), DeviceFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "serve collage", err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
