package handler

import (
	"net/http"

	"github.com/msomdec/color-hunt/internal/service"
)

// DeviceHandler registers anonymous devices.
type DeviceHandler struct {
	devices      *service.DeviceService
	cookieSecure bool
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *service.DeviceService, cookieSecure bool) *DeviceHandler {
	return &DeviceHandler{devices: devices, cookieSecure: cookieSecure}
}

// HandleRegister issues a device token, reusing the user ID when one is sent.
// POST /api/device
// Request:  {"userId":"..."} (optional)
// Response: {"userId":"...","token":"..."}
func (h *DeviceHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	device, token, err := h.devices.Register(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, "register device", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   90 * 24 * 60 * 60,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"userId": device.ID,
		"token":  token,
	})
}
