package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// DateLayout is the format of hunt dates.
const DateLayout = "2006-01-02"

// ColorHistory reports the color of a user's latest completed hunt on a date.
type ColorHistory interface {
	LastColorOn(ctx context.Context, userID, date string) (string, error)
}

// ColorService picks hunt colors from the palette. It implements
// domain.ColorAssigner.
type ColorService struct {
	history ColorHistory
	now     func() time.Time
	pick    func(n int) int
}

// NewColorService creates a new ColorService. history may be nil.
func NewColorService(history ColorHistory) *ColorService {
	return &ColorService{
		history: history,
		now:     time.Now,
		pick:    rand.IntN,
	}
}

// RequestColor returns a random palette color for today. Without an explicit
// exclusion it avoids the color of the user's last completed hunt today.
func (s *ColorService) RequestColor(ctx context.Context, userID, exclude string) (*domain.ColorAssignment, error) {
	today := s.now().UTC().Format(DateLayout)

	if exclude == "" && s.history != nil && userID != "" {
		last, err := s.history.LastColorOn(ctx, userID, today)
		switch {
		case err == nil:
			exclude = last
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("last completed color: %w", err)
		}
	}

	choices := make([]domain.Color, 0, len(domain.Palette()))
	for _, c := range domain.Palette() {
		if c.Name != exclude {
			choices = append(choices, c)
		}
	}
	color := choices[s.pick(len(choices))]

	slog.Debug("color assigned", "user", userID, "color", color.Name, "excluded", exclude)
	return &domain.ColorAssignment{Color: color, Date: today}, nil
}

// LocalColorHistory answers ColorHistory from the local session store, for
// hunting without a backend.
type LocalColorHistory struct {
	Sessions domain.SessionStore
}

func (h LocalColorHistory) LastColorOn(ctx context.Context, _ string, date string) (string, error) {
	completed, err := h.Sessions.ListByStatus(ctx, domain.SessionStatusCompleted)
	if err != nil {
		return "", fmt.Errorf("list completed sessions: %w", err)
	}
	var latest *domain.Session
	for i := range completed {
		s := &completed[i]
		if s.Date != date || s.CompletedAt == nil {
			continue
		}
		if latest == nil || s.CompletedAt.After(*latest.CompletedAt) {
			latest = s
		}
	}
	if latest == nil {
		return "", domain.ErrNotFound
	}
	return latest.Color.Name, nil
}
