package domain

import (
	"context"
	"time"
)

// CompletedCollage is a finished collage recorded by the backend.
type CompletedCollage struct {
	ID         string
	SessionID  string
	UserID     string
	Color      string
	Date       string
	StorageKey string
	CreatedAt  time.Time
}

// HistoryFilter narrows a completed-collage listing.
type HistoryFilter struct {
	Color  string
	Limit  int
	Offset int
}

// ColorStat counts completed collages per color.
type ColorStat struct {
	Color    string
	Count    int
	LastDate string
}

type CompletedCollageRepository interface {
	Create(ctx context.Context, collage *CompletedCollage) error
	GetByID(ctx context.Context, id string) (*CompletedCollage, error)
	ListByUser(ctx context.Context, userID string, filter HistoryFilter) ([]CompletedCollage, error)
	// LastColorOn returns the color of the user's latest collage on date,
	// or ErrNotFound.
	LastColorOn(ctx context.Context, userID, date string) (string, error)
	StatsByUser(ctx context.Context, userID string) ([]ColorStat, error)
	Delete(ctx context.Context, id string) error
}

// UploadedPhoto is the backend's answer to a photo upload.
type UploadedPhoto struct {
	PhotoID      string
	OriginalURL  string
	ThumbnailURL string
}

// RemoteSync pushes local progress to the backend. Every call is best-effort
// from the caller's point of view.
type RemoteSync interface {
	StartSession(ctx context.Context, session *Session) error
	UploadPhoto(ctx context.Context, sessionID string, position int, full, thumbnail []byte) (*UploadedPhoto, error)
	// DeletePhoto removes the photo stored at position. An empty position
	// is not an error.
	DeletePhoto(ctx context.Context, sessionID string, position int) error
	CompleteCollage(ctx context.Context, sessionID string, collage []byte) (string, error)
}

// HistoryLister reads a user's completed collages.
type HistoryLister interface {
	ListCompletedCollages(ctx context.Context, userID string, filter HistoryFilter) ([]CompletedCollage, bool, error)
}

// CollageStore keeps the finalized collage of each completed local session
// so it can be downloaded again after a reload.
type CollageStore interface {
	Save(ctx context.Context, sessionID string, data []byte) error
	// Get returns ErrNotFound when the session has no finalized collage.
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Delete(ctx context.Context, sessionID string) error
}
