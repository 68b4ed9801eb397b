package domain

import (
	"context"
	"time"
)

// PhotoKind selects one of the two stored renditions of a photo.
type PhotoKind string

const (
	PhotoKindOriginal  PhotoKind = "original"
	PhotoKindThumbnail PhotoKind = "thumbnail"
)

// HuntPhoto holds server-side metadata about an uploaded photo. The bytes
// live in a FileStore under ImageKey and ThumbnailKey.
type HuntPhoto struct {
	ID           string
	SessionID    string
	Position     int
	ImageKey     string
	ThumbnailKey string
	Size         int64 // Combined size of both renditions in bytes
	CreatedAt    time.Time
}

// Key returns the storage key of the requested rendition.
func (p *HuntPhoto) Key(kind PhotoKind) string {
	if kind == PhotoKindThumbnail {
		return p.ThumbnailKey
	}
	return p.ImageKey
}

// HuntPhotoRepository handles uploaded photo metadata persistence.
type HuntPhotoRepository interface {
	Create(ctx context.Context, photo *HuntPhoto) error
	GetByID(ctx context.Context, id string) (*HuntPhoto, error)
	GetByPosition(ctx context.Context, sessionID string, position int) (*HuntPhoto, error)
	ListBySession(ctx context.Context, sessionID string) ([]HuntPhoto, error)
	Delete(ctx context.Context, id string) error
	// GetOwnerUserID returns the device that owns the photo, resolved via
	// hunt_photos → hunt_sessions. Used for ownership checks.
	GetOwnerUserID(ctx context.Context, photoID string) (string, error)
}

// FileStore abstracts raw file byte storage.
// Implementations store BLOBs in SQLite or objects in S3.
type FileStore interface {
	// Save writes data under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
