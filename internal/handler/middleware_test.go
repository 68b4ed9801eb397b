package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/msomdec/color-hunt/internal/handler"
	"github.com/msomdec/color-hunt/internal/repository/sqlite"
	"github.com/msomdec/color-hunt/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

func newTestServices(t *testing.T) handler.Services {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := db.FileStore()
	return handler.Services{
		Devices:        service.NewDeviceService(db.Devices(), testJWTSecret),
		Colors:         service.NewColorService(db.CompletedCollages()),
		Sessions:       service.NewSessionService(db.HuntSessions(), db.HuntPhotos()),
		Photos:         service.NewPhotoService(db.HuntPhotos(), files, db.HuntSessions()),
		History:        service.NewHistoryService(db.CompletedCollages(), db.HuntSessions(), files),
		Limiter:        service.PerMinute(1000),
		DB:             db.Conn(),
		MaxUploadBytes: 10 << 20,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, handler.Services) {
	t.Helper()
	s := newTestServices(t)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, s)
	srv := httptest.NewServer(handler.Instrument(handler.SecurityHeaders(mux)))
	t.Cleanup(srv.Close)
	return srv, s
}

func registerDevice(t *testing.T, devices *service.DeviceService) (string, string) {
	t.Helper()
	device, token, err := devices.Register(context.Background(), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return device.ID, token
}

func TestRequireDevice_ValidBearer(t *testing.T) {
	s := newTestServices(t)
	id, token := registerDevice(t, s.Devices)

	var got string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = handler.DeviceFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.RequireDevice(s.Devices, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got != id {
		t.Fatalf("expected device %q, got %q", id, got)
	}
}

func TestRequireDevice_Cookie(t *testing.T) {
	s := newTestServices(t)
	_, token := registerDevice(t, s.Devices)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "device_token", Value: token})
	w := httptest.NewRecorder()

	handler.RequireDevice(s.Devices, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireDevice_Rejects(t *testing.T) {
	s := newTestServices(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("inner handler should not be called")
			})
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.RequireDevice(s.Devices, inner).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := service.NewTokenBucket(0, 2)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := handler.RateLimit(limiter, inner)

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/device", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, w.Code)
		}
	}

	// Another address has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/device", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a new address, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	w := httptest.NewRecorder()
	handler.SecurityHeaders(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
}
