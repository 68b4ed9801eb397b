package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// PhotoStore implements domain.PhotoStore using SQLite.
type PhotoStore struct {
	db *DB
}

// NewPhotoStore creates a new SQLite-backed PhotoStore.
func NewPhotoStore(db *DB) *PhotoStore {
	return &PhotoStore{db: db}
}

// Put upserts the photo. A failed write reopens the database once and
// retries before giving up with domain.ErrStorageUnavailable.
func (s *PhotoStore) Put(ctx context.Context, photo *domain.Photo) error {
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = time.Now().UTC()
	}

	err := s.put(ctx, photo)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("put photo %s: %w", photo.ID, err)
	}

	slog.Warn("photo write failed, reopening store", "photo", photo.ID, "session", photo.SessionID, "error", err)
	if rerr := s.db.Reopen(ctx); rerr != nil {
		return fmt.Errorf("%w: put photo %s: %w", domain.ErrStorageUnavailable, photo.ID, rerr)
	}
	if err := s.put(ctx, photo); err != nil {
		return fmt.Errorf("%w: put photo %s: %w", domain.ErrStorageUnavailable, photo.ID, err)
	}
	return nil
}

func (s *PhotoStore) put(ctx context.Context, photo *domain.Photo) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO photos (id, session_id, position, image, thumbnail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 session_id = excluded.session_id, position = excluded.position,
		 image = excluded.image, thumbnail = excluded.thumbnail`,
		photo.ID, photo.SessionID, photo.Position, photo.Image, photo.Thumbnail, photo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert photo: %w", err)
	}
	return nil
}

func (s *PhotoStore) ListBySession(ctx context.Context, sessionID string) ([]domain.Photo, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, session_id, position, image, thumbnail, created_at
		 FROM photos WHERE session_id = ?
		 ORDER BY position ASC, created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []domain.Photo
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Position, &p.Image, &p.Thumbnail, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (s *PhotoStore) DeleteBySession(ctx context.Context, sessionID string) error {
	if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM photos WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete session photos: %w", err)
	}
	return nil
}

func (s *PhotoStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Conn().ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return requireAffected(result)
}

func (s *PhotoStore) SetPosition(ctx context.Context, id string, position int) error {
	result, err := s.db.Conn().ExecContext(ctx, "UPDATE photos SET position = ? WHERE id = ?", position, id)
	if err != nil {
		return fmt.Errorf("set photo position: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
