package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/service"
	"github.com/msomdec/color-hunt/internal/view"
)

// SessionHandler handles the backend copy of hunt sessions.
type SessionHandler struct {
	sessions     *service.SessionService
	pollInterval time.Duration
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, pollInterval time.Duration) *SessionHandler {
	return &SessionHandler{sessions: sessions, pollInterval: pollInterval}
}

// HandleStart records a session started on the device.
// POST /api/session/start
// Request:  {"sessionId":"...","color":"red","targetCount":9}
// Response: {"session":{...}}
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string `json:"sessionId"`
		Color       string `json:"color"`
		TargetCount int    `json:"targetCount"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.TargetCount == 0 {
		req.TargetCount = 9
	}

	session, err := h.sessions.Start(r.Context(), DeviceFromContext(r.Context()), req.SessionID, req.Color, req.TargetCount)
	if err != nil {
		writeServiceError(w, "start session", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": toSessionDTO(session),
	})
}

// HandleCurrent returns the device's in-progress session.
// GET /api/session/current
// Response: {"session":{...},"photos":[...],"progress":{...}}
func (h *SessionHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	session, photos, err := h.sessions.Current(r.Context(), DeviceFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, "current session", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":  toSessionDTO(session),
		"photos":   toPhotoDTOs(photos),
		"progress": toProgressDTO(service.RemoteProgress(session, photos)),
	})
}

// HandleGet returns one of the device's sessions with its photos.
// GET /api/session/{id}
// Response: {"session":{...},"photos":[...],"progress":{...}}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session, photos, err := h.sessions.Get(r.Context(), DeviceFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get session", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":  toSessionDTO(session),
		"photos":   toPhotoDTOs(photos),
		"progress": toProgressDTO(service.RemoteProgress(session, photos)),
	})
}

// HandleProgress streams the progress grid of a session over SSE until the
// session completes or the client goes away.
// GET /api/session/{id}/progress
func (h *SessionHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	deviceID := DeviceFromContext(r.Context())
	sessionID := r.PathValue("id")

	session, photos, err := h.sessions.Get(r.Context(), deviceID, sessionID)
	if err != nil {
		writeServiceError(w, "session progress", err)
		return
	}

	sse := datastar.NewSSE(w, r)
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	lastFilled := -1
	for {
		if len(photos) != lastFilled || session.Status == domain.SessionStatusCompleted {
			if err := sse.PatchElementTempl(
				view.ProgressGrid(progressGrid(session, photos)),
				datastar.WithSelectorID("progress-"+session.ID),
			); err != nil {
				slog.Warn("patch progress", "session", sessionID, "error", err)
				return
			}
			lastFilled = len(photos)
		}
		if session.Status == domain.SessionStatusCompleted {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		session, photos, err = h.sessions.Get(r.Context(), deviceID, sessionID)
		if err != nil {
			if !errors.Is(err, r.Context().Err()) {
				slog.Warn("reload session progress", "session", sessionID, "error", err)
			}
			return
		}
	}
}

func progressGrid(session *domain.HuntSession, photos []domain.HuntPhoto) view.Grid {
	p := service.RemoteProgress(session, photos)
	g := view.Grid{
		SessionID:   session.ID,
		ColorName:   session.Color,
		Filled:      p.Filled,
		Target:      p.Target,
		Percent:     p.Percent,
		CanComplete: p.CanComplete,
		Completed:   session.Status == domain.SessionStatusCompleted,
		Cells:       make([]view.Cell, session.TargetCount),
	}
	if c, ok := domain.ColorByName(session.Color); ok {
		g.ColorName = c.English
		g.Hex = c.Hex
	}
	for i := range g.Cells {
		g.Cells[i].Position = i
	}
	for _, photo := range photos {
		if photo.Position >= 0 && photo.Position < len(g.Cells) {
			g.Cells[photo.Position].ThumbnailURL = imageURL(photo.ID, domain.PhotoKindThumbnail)
		}
	}
	return g
}
