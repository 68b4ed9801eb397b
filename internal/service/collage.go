package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/msomdec/color-hunt/internal/collage"
	"github.com/msomdec/color-hunt/internal/domain"
)

// CollageObserver is told about every finalized collage. Calls must not block.
type CollageObserver interface {
	CollageCompleted(sessionID string, collage []byte)
}

// CollageFileName is the download name of a collage.
func CollageFileName(color, date string) string {
	return fmt.Sprintf("color-hunt-%s-%s.jpg", color, date)
}

// CollageService turns a session's photos into its collage and hands the
// result to the user.
type CollageService struct {
	hunts      *HuntService
	compositor *collage.Compositor
	tr         *Translator
	observer   CollageObserver
}

// NewCollageService creates a new CollageService. observer may be nil.
func NewCollageService(hunts *HuntService, compositor *collage.Compositor, tr *Translator, observer CollageObserver) *CollageService {
	return &CollageService{hunts: hunts, compositor: compositor, tr: tr, observer: observer}
}

// Generate renders the collage of a session from its current photos.
// Missing positions stay blank. It returns domain.ErrCapturePending while a
// capture is still in flight.
func (s *CollageService) Generate(ctx context.Context, sessionID string) ([]byte, error) {
	session, photos, err := s.hunts.Settled(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, domain.ErrNoPhotosAvailable
	}

	caption := collage.Caption{
		Date:  session.Date,
		Title: s.tr.T("collage.title", s.tr.ColorName(session.Color)),
	}
	data, err := s.compositor.Render(ctx, collage.ByPosition(photos, s.compositor.Layout.Capacity()), caption)
	if err != nil {
		return nil, fmt.Errorf("render collage: %w", err)
	}
	return data, nil
}

// Finalize renders the collage and completes the session with it.
func (s *CollageService) Finalize(ctx context.Context, sessionID string) (*domain.Session, []byte, error) {
	data, err := s.Generate(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.hunts.Complete(ctx, sessionID, data)
	if err != nil {
		return nil, nil, err
	}
	if s.observer != nil {
		s.observer.CollageCompleted(sessionID, data)
	}
	return session, data, nil
}

// Download writes the finalized collage of a completed session into dir and
// then releases the session's photos. It returns the written path.
func (s *CollageService) Download(ctx context.Context, sessionID, dir string) (string, error) {
	session, err := s.hunts.Session(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !session.IsCompleted() {
		return "", fmt.Errorf("%w: complete the session before downloading", domain.ErrIncomplete)
	}
	data, err := s.hunts.Collage(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("get collage: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, CollageFileName(session.Color.Name, session.Date))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write collage: %w", err)
	}

	if err := s.hunts.Release(ctx, sessionID); err != nil {
		slog.Warn("failed to release downloaded session", "session", sessionID, "error", err)
	}
	slog.Info("collage downloaded", "session", sessionID, "path", path)
	return path, nil
}
