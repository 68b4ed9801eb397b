package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/color-hunt/internal/config"
	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/handler"
	"github.com/msomdec/color-hunt/internal/repository/s3"
	"github.com/msomdec/color-hunt/internal/repository/sqlite"
	"github.com/msomdec/color-hunt/internal/service"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logOpts := &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	var files domain.FileStore = db.FileStore()
	if cfg.StorageBackend == "s3" {
		bucket, err := s3.New(ctx, cfg)
		if err != nil {
			slog.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
		files = bucket
	}
	slog.Info("file storage ready", "backend", cfg.StorageBackend)

	limiter := service.PerMinute(cfg.RateLimit)
	go limiter.Run(ctx, time.Minute, 10*time.Minute)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Services{
		Devices:        service.NewDeviceService(db.Devices(), cfg.JWTSecret),
		Colors:         service.NewColorService(db.CompletedCollages()),
		Sessions:       service.NewSessionService(db.HuntSessions(), db.HuntPhotos()),
		Photos:         service.NewPhotoService(db.HuntPhotos(), files, db.HuntSessions()),
		History:        service.NewHistoryService(db.CompletedCollages(), db.HuntSessions(), files),
		Limiter:        limiter,
		DB:             db.Conn(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		CookieSecure:   cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Instrument(handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
