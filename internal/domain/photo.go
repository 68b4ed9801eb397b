package domain

import (
	"context"
	"time"
)

// Photo is one captured image occupying a position in a session's grid.
type Photo struct {
	ID        string
	SessionID string
	Position  int
	Image     []byte // Full resolution JPEG
	Thumbnail []byte // Thumbnail JPEG
	CreatedAt time.Time
}

// PhotoStore is the durable local photo store. Each call is its own
// atomic unit; callers sequence multi-record changes themselves.
type PhotoStore interface {
	// Put upserts the photo keyed by ID. When it returns nil the photo is durable.
	Put(ctx context.Context, photo *Photo) error
	// ListBySession returns the session's photos ordered by position ascending.
	ListBySession(ctx context.Context, sessionID string) ([]Photo, error)
	DeleteBySession(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, id string) error
	SetPosition(ctx context.Context, id string, position int) error
}
