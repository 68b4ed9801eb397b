package handler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msomdec/color-hunt/internal/service"
)

// Services bundles everything the routes depend on.
type Services struct {
	Devices  *service.DeviceService
	Colors   *service.ColorService
	Sessions *service.SessionService
	Photos   *service.PhotoService
	History  *service.HistoryService
	Limiter  *service.TokenBucket
	DB       Pinger

	MaxUploadBytes int64
	CookieSecure   bool
	PollInterval   time.Duration
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, s Services) {
	if s.PollInterval <= 0 {
		s.PollInterval = 2 * time.Second
	}
	devices := NewDeviceHandler(s.Devices, s.CookieSecure)
	colors := NewColorHandler(s.Colors)
	sessions := NewSessionHandler(s.Sessions, s.PollInterval)
	photos := NewPhotoHandler(s.Photos, s.MaxUploadBytes)
	history := NewHistoryHandler(s.History, s.MaxUploadBytes)

	mux.Handle("GET /healthz", HandleHealthz(s.DB))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /api/device", RateLimit(s.Limiter, http.HandlerFunc(devices.HandleRegister)))

	protected := func(h http.HandlerFunc) http.Handler {
		return RequireDevice(s.Devices, h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return RequireDevice(s.Devices, RateLimit(s.Limiter, h))
	}

	mux.Handle("POST /api/color/new", protected(colors.HandleNew))
	mux.Handle("POST /api/session/start", protected(sessions.HandleStart))
	mux.Handle("GET /api/session/current", protected(sessions.HandleCurrent))
	mux.Handle("GET /api/session/{id}", protected(sessions.HandleGet))
	mux.Handle("GET /api/session/{id}/progress", protected(sessions.HandleProgress))
	mux.Handle("POST /api/photo/add", limited(photos.HandleAdd))
	mux.Handle("GET /api/image/{photoId}/{type}", protected(photos.HandleImage))
	mux.Handle("DELETE /api/photo/{photoId}", protected(photos.HandleDelete))
	mux.Handle("POST /api/collage/complete", limited(history.HandleComplete))
	mux.Handle("GET /api/collage/{id}", protected(history.HandleCollage))
	mux.Handle("GET /api/history", protected(history.HandleHistory))
	mux.Handle("GET /api/stats", protected(history.HandleStats))
}
