package domain

import (
	"context"
	"time"
)

// HuntSession is the server-side copy of a device's session.
type HuntSession struct {
	ID          string
	UserID      string
	Color       string // Color name
	StartDate   string
	TargetCount int
	Status      SessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type HuntSessionRepository interface {
	Create(ctx context.Context, session *HuntSession) error
	GetByID(ctx context.Context, id string) (*HuntSession, error)
	// GetActiveByUser returns the most recent in-progress session.
	GetActiveByUser(ctx context.Context, userID string) (*HuntSession, error)
	Touch(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
}
