package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/msomdec/color-hunt/internal/domain"
)

const maxImageSize = 10 * 1024 * 1024 // 10MB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// PhotoService orchestrates photo uploads, retrieval, and deletion on the
// backend.
type PhotoService struct {
	photos   domain.HuntPhotoRepository
	files    domain.FileStore
	sessions domain.HuntSessionRepository
}

// NewPhotoService creates a new PhotoService.
func NewPhotoService(photos domain.HuntPhotoRepository, files domain.FileStore, sessions domain.HuntSessionRepository) *PhotoService {
	return &PhotoService{photos: photos, files: files, sessions: sessions}
}

// Upload validates and stores both renditions of a photo at position. A
// photo already stored at that position is replaced.
func (s *PhotoService) Upload(ctx context.Context, userID, sessionID string, position int, full, thumbnail []byte) (*domain.HuntPhoto, error) {
	if err := validateImage("image", full); err != nil {
		return nil, err
	}
	if err := validateImage("thumbnail", thumbnail); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	if session.Status == domain.SessionStatusCompleted {
		return nil, domain.ErrSessionCompleted
	}
	if position < 0 || position >= session.TargetCount {
		return nil, fmt.Errorf("%w: %d outside [0, %d)", domain.ErrInvalidPosition, position, session.TargetCount)
	}

	// Retake: drop whatever is stored at this position first.
	existing, err := s.photos.GetByPosition(ctx, sessionID, position)
	switch {
	case err == nil:
		if err := s.remove(ctx, existing); err != nil {
			return nil, err
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get photo at position: %w", err)
	}

	id := uuid.NewString()
	photo := &domain.HuntPhoto{
		ID:           id,
		SessionID:    sessionID,
		Position:     position,
		ImageKey:     photoKey(id, domain.PhotoKindOriginal),
		ThumbnailKey: photoKey(id, domain.PhotoKindThumbnail),
		Size:         int64(len(full) + len(thumbnail)),
	}

	if err := s.files.Save(ctx, photo.ImageKey, full); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	if err := s.files.Save(ctx, photo.ThumbnailKey, thumbnail); err != nil {
		s.files.Delete(ctx, photo.ImageKey)
		return nil, fmt.Errorf("save thumbnail: %w", err)
	}

	if err := s.photos.Create(ctx, photo); err != nil {
		// Best-effort cleanup of the stored files.
		s.files.Delete(ctx, photo.ImageKey)
		s.files.Delete(ctx, photo.ThumbnailKey)
		return nil, fmt.Errorf("create photo record: %w", err)
	}

	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		slog.Warn("failed to touch session", "session", sessionID, "error", err)
	}
	return photo, nil
}

// GetFile returns one rendition of a photo and its content type after an
// ownership check.
func (s *PhotoService) GetFile(ctx context.Context, userID, photoID string, kind domain.PhotoKind) ([]byte, string, error) {
	if kind != domain.PhotoKindOriginal && kind != domain.PhotoKindThumbnail {
		return nil, "", fmt.Errorf("%w: unknown image type %q", domain.ErrInvalidInput, kind)
	}
	photo, err := s.owned(ctx, userID, photoID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.files.Get(ctx, photo.Key(kind))
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	return data, mimetype.Detect(data).String(), nil
}

// Delete removes a photo and its stored bytes after an ownership check.
func (s *PhotoService) Delete(ctx context.Context, userID, photoID string) error {
	photo, err := s.owned(ctx, userID, photoID)
	if err != nil {
		return err
	}
	return s.remove(ctx, photo)
}

// ListBySession returns the metadata of a session's photos.
func (s *PhotoService) ListBySession(ctx context.Context, sessionID string) ([]domain.HuntPhoto, error) {
	return s.photos.ListBySession(ctx, sessionID)
}

func (s *PhotoService) owned(ctx context.Context, userID, photoID string) (*domain.HuntPhoto, error) {
	ownerID, err := s.photos.GetOwnerUserID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("get photo owner: %w", err)
	}
	if ownerID != userID {
		return nil, domain.ErrUnauthorized
	}
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return photo, nil
}

// remove deletes stored bytes first, then metadata.
func (s *PhotoService) remove(ctx context.Context, photo *domain.HuntPhoto) error {
	for _, key := range []string{photo.ImageKey, photo.ThumbnailKey} {
		if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete file: %w", err)
		}
	}
	if err := s.photos.Delete(ctx, photo.ID); err != nil {
		return fmt.Errorf("delete photo record: %w", err)
	}
	return nil
}

func validateImage(field string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, field)
	}
	if len(data) > maxImageSize {
		return fmt.Errorf("%w: %s exceeds 10MB limit", domain.ErrInvalidInput, field)
	}
	if mime := mimetype.Detect(data); !allowedImageTypes[mime.String()] {
		return fmt.Errorf("%w: %s must be JPEG or PNG, got %s", domain.ErrInvalidInput, field, mime.String())
	}
	return nil
}

func photoKey(id string, kind domain.PhotoKind) string {
	return fmt.Sprintf("photos/%s_%s.jpg", id, kind)
}
