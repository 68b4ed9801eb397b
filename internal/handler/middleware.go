package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/msomdec/color-hunt/internal/metrics"
	"github.com/msomdec/color-hunt/internal/service"
)

type contextKey string

const deviceContextKey contextKey = "device"

// tokenCookie holds the device token for browser clients.
const tokenCookie = "device_token"

// DeviceFromContext extracts the authenticated device ID from the request
// context. Returns "" if no device is authenticated.
func DeviceFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceContextKey).(string)
	return id
}

// RequireDevice is middleware that protects routes requiring a device token.
// It reads the bearer token (or the device_token cookie), validates the JWT,
// and injects the device ID into the request context.
func RequireDevice(devices *service.DeviceService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated.")
			return
		}
		deviceID, err := devices.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated.")
			return
		}

		ctx := context.WithValue(r.Context(), deviceContextKey, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RateLimit rejects requests once the device (or, before authentication,
// the remote address) has used up its tokens.
func RateLimit(limiter *service.TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := DeviceFromContext(r.Context())
		if key == "" {
			key = clientIP(r)
		}
		if !limiter.Allow(key) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many requests.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

// SecurityHeaders sets conservative response headers on every request.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE responses streaming through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Instrument records request counts and durations by matched route.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}
