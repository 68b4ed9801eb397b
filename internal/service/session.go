package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/color-hunt/internal/domain"
)

const maxTargetCount = 36

// SessionService keeps the backend copy of each device's hunt sessions.
type SessionService struct {
	sessions domain.HuntSessionRepository
	photos   domain.HuntPhotoRepository
	now      func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions domain.HuntSessionRepository, photos domain.HuntPhotoRepository) *SessionService {
	return &SessionService{sessions: sessions, photos: photos, now: time.Now}
}

// Start records a session for userID. The client may supply its local
// session ID so later uploads line up; a resend of the same ID is a no-op.
func (s *SessionService) Start(ctx context.Context, userID, sessionID, color string, targetCount int) (*domain.HuntSession, error) {
	if _, ok := domain.ColorByName(color); !ok {
		return nil, fmt.Errorf("%w: unknown color %q", domain.ErrInvalidInput, color)
	}
	if targetCount <= 0 || targetCount > maxTargetCount {
		return nil, fmt.Errorf("%w: target count must be between 1 and %d", domain.ErrInvalidInput, maxTargetCount)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("%w: session id must be a UUID", domain.ErrInvalidInput)
	}

	session := &domain.HuntSession{
		ID:          sessionID,
		UserID:      userID,
		Color:       color,
		StartDate:   s.now().UTC().Format(DateLayout),
		TargetCount: targetCount,
		Status:      domain.SessionStatusInProgress,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	// A resend keeps the original row.
	return s.sessions.GetByID(ctx, sessionID)
}

// Current returns the user's in-progress session and its photo metadata.
func (s *SessionService) Current(ctx context.Context, userID string) (*domain.HuntSession, []domain.HuntPhoto, error) {
	session, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("get active session: %w", err)
	}
	photos, err := s.photos.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list photos: %w", err)
	}
	return session, photos, nil
}

// Get returns a session and its photo metadata after an ownership check.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*domain.HuntSession, []domain.HuntPhoto, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, nil, domain.ErrUnauthorized
	}
	photos, err := s.photos.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list photos: %w", err)
	}
	return session, photos, nil
}

// RemoteProgress adapts a backend session to the progress model used on
// the device.
func RemoteProgress(session *domain.HuntSession, photos []domain.HuntPhoto) Progress {
	local := domain.Session{
		Status:      session.Status,
		TargetCount: session.TargetCount,
		Filled:      len(photos),
	}
	placed := make([]domain.Photo, len(photos))
	for i, p := range photos {
		placed[i] = domain.Photo{Position: p.Position}
	}
	return ProgressOf(&local, placed)
}
