package domain

import (
	"context"
	"time"
)

type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// CaptureMode controls which positions a capture may target.
type CaptureMode string

const (
	// CaptureModeOrdered only accepts the next empty position (or a retake).
	CaptureModeOrdered CaptureMode = "ordered"
	// CaptureModeFree accepts any position inside the grid.
	CaptureModeFree CaptureMode = "free"
)

// ParseCaptureMode returns the mode named by s.
func ParseCaptureMode(s string) (CaptureMode, bool) {
	switch CaptureMode(s) {
	case CaptureModeOrdered:
		return CaptureModeOrdered, true
	case CaptureModeFree:
		return CaptureModeFree, true
	}
	return "", false
}

// Session is one color-hunt attempt on this device, from color assignment
// to collage completion.
type Session struct {
	ID          string
	Color       Color
	Date        string // Hunt date, YYYY-MM-DD
	Status      SessionStatus
	TargetCount int // N, fixed at creation
	CaptureMode CaptureMode
	Filled      int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// IsCompleted reports whether the session has been finalized.
func (s *Session) IsCompleted() bool {
	return s.Status == SessionStatusCompleted
}

// SessionStore persists sessions and the pointer to the active one.
type SessionStore interface {
	// Save upserts the session keyed by ID.
	Save(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	ListByStatus(ctx context.Context, status SessionStatus) ([]Session, error)
	Delete(ctx context.Context, id string) error

	SetActive(ctx context.Context, id string) error
	// GetActive returns ErrNotFound when no session is active.
	GetActive(ctx context.Context) (*Session, error)
	ClearActive(ctx context.Context) error
}
