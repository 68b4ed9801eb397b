package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/msomdec/color-hunt/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	collageIDPrefix     = "col_"
)

var (
	collageEntropyMu sync.Mutex
	collageEntropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewCollageID returns a sortable col_* ULID.
func NewCollageID() string {
	collageEntropyMu.Lock()
	defer collageEntropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), collageEntropy)
	return collageIDPrefix + strings.ToLower(id.String())
}

// HistoryService records finished collages and answers history queries.
type HistoryService struct {
	collages domain.CompletedCollageRepository
	sessions domain.HuntSessionRepository
	files    domain.FileStore
	now      func() time.Time
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(collages domain.CompletedCollageRepository, sessions domain.HuntSessionRepository, files domain.FileStore) *HistoryService {
	return &HistoryService{collages: collages, sessions: sessions, files: files, now: time.Now}
}

// Complete stores the collage image, records it in the user's history and
// marks the session completed.
func (s *HistoryService) Complete(ctx context.Context, userID, sessionID string, collage []byte) (*domain.CompletedCollage, error) {
	if err := validateImage("collage", collage); err != nil {
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

	id := NewCollageID()
	now := s.now().UTC()
	record := &domain.CompletedCollage{
		ID:         id,
		SessionID:  sessionID,
		UserID:     userID,
		Color:      session.Color,
		Date:       session.StartDate,
		StorageKey: "collages/" + id + ".jpg",
		CreatedAt:  now,
	}

	if err := s.files.Save(ctx, record.StorageKey, collage); err != nil {
		return nil, fmt.Errorf("save collage: %w", err)
	}
	if err := s.collages.Create(ctx, record); err != nil {
		s.files.Delete(ctx, record.StorageKey)
		return nil, fmt.Errorf("create collage record: %w", err)
	}
	if err := s.sessions.MarkCompleted(ctx, sessionID, now); err != nil {
		// Roll back so history never lists a collage for an open session.
		if derr := s.collages.Delete(ctx, id); derr != nil {
			slog.Warn("failed to remove orphaned collage record", "collage", id, "error", derr)
		}
		s.files.Delete(ctx, record.StorageKey)
		return nil, fmt.Errorf("complete session: %w", err)
	}

	slog.Info("collage completed", "user", userID, "session", sessionID, "collage", id, "color", session.Color)
	return record, nil
}

// ListCompletedCollages returns one page of the user's history, newest
// first, and whether more pages follow. It implements domain.HistoryLister.
func (s *HistoryService) ListCompletedCollages(ctx context.Context, userID string, filter domain.HistoryFilter) ([]domain.CompletedCollage, bool, error) {
	filter, err := normalizeHistoryFilter(filter)
	if err != nil {
		return nil, false, err
	}

	// Fetch one extra row to learn whether another page exists.
	page := filter
	page.Limit = filter.Limit + 1
	collages, err := s.collages.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, false, fmt.Errorf("list collages: %w", err)
	}
	hasMore := len(collages) > filter.Limit
	if hasMore {
		collages = collages[:filter.Limit]
	}
	return collages, hasMore, nil
}

func normalizeHistoryFilter(filter domain.HistoryFilter) (domain.HistoryFilter, error) {
	if filter.Color != "" {
		if _, ok := domain.ColorByName(filter.Color); !ok {
			return filter, fmt.Errorf("%w: unknown color %q", domain.ErrInvalidInput, filter.Color)
		}
	}
	if filter.Offset < 0 {
		return filter, fmt.Errorf("%w: offset must not be negative", domain.ErrInvalidInput)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultHistoryLimit
	case filter.Limit > maxHistoryLimit:
		filter.Limit = maxHistoryLimit
	}
	return filter, nil
}

// Stats returns per-color completion counts for the user.
func (s *HistoryService) Stats(ctx context.Context, userID string) ([]domain.ColorStat, error) {
	stats, err := s.collages.StatsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collage stats: %w", err)
	}
	return stats, nil
}

// File returns a completed collage image after an ownership check.
func (s *HistoryService) File(ctx context.Context, userID, collageID string) ([]byte, error) {
	record, err := s.collages.GetByID(ctx, collageID)
	if err != nil {
		return nil, fmt.Errorf("get collage: %w", err)
	}
	if record.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	data, err := s.files.Get(ctx, record.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("get collage file: %w", err)
	}
	return data, nil
}

// LocalHistory lists the completed sessions kept on this device. It
// implements domain.HistoryLister for hunting without a backend; collage
// IDs are the session IDs.
type LocalHistory struct {
	Sessions domain.SessionStore
}

func (h LocalHistory) ListCompletedCollages(ctx context.Context, _ string, filter domain.HistoryFilter) ([]domain.CompletedCollage, bool, error) {
	filter, err := normalizeHistoryFilter(filter)
	if err != nil {
		return nil, false, err
	}
	sessions, err := h.Sessions.ListByStatus(ctx, domain.SessionStatusCompleted)
	if err != nil {
		return nil, false, fmt.Errorf("list completed sessions: %w", err)
	}

	var collages []domain.CompletedCollage
	for _, session := range sessions {
		if filter.Color != "" && session.Color.Name != filter.Color {
			continue
		}
		created := session.UpdatedAt
		if session.CompletedAt != nil {
			created = *session.CompletedAt
		}
		collages = append(collages, domain.CompletedCollage{
			ID:        session.ID,
			SessionID: session.ID,
			Color:     session.Color.Name,
			Date:      session.Date,
			CreatedAt: created,
		})
	}
	slices.SortStableFunc(collages, func(a, b domain.CompletedCollage) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter.Offset >= len(collages) {
		return nil, false, nil
	}
	collages = collages[filter.Offset:]
	hasMore := len(collages) > filter.Limit
	if hasMore {
		collages = collages[:filter.Limit]
	}
	return collages, hasMore, nil
}
