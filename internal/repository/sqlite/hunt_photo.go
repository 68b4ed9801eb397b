package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// HuntPhotoRepository implements domain.HuntPhotoRepository using SQLite.
type HuntPhotoRepository struct {
	db *DB
}

// NewHuntPhotoRepository creates a new SQLite-backed HuntPhotoRepository.
func NewHuntPhotoRepository(db *DB) *HuntPhotoRepository {
	return &HuntPhotoRepository{db: db}
}

const huntPhotoColumns = `id, session_id, position, image_key, thumbnail_key, size, created_at`

func scanHuntPhoto(row rowScanner, p *domain.HuntPhoto) error {
	return row.Scan(&p.ID, &p.SessionID, &p.Position, &p.ImageKey, &p.ThumbnailKey, &p.Size, &p.CreatedAt)
}

func (r *HuntPhotoRepository) Create(ctx context.Context, photo *domain.HuntPhoto) error {
	now := time.Now().UTC()
	_, err := r.db.Conn().ExecContext(ctx,
		`INSERT INTO hunt_photos (`+huntPhotoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		photo.ID, photo.SessionID, photo.Position, photo.ImageKey, photo.ThumbnailKey, photo.Size, now,
	)
	if err != nil {
		return fmt.Errorf("insert hunt photo: %w", err)
	}
	photo.CreatedAt = now
	return nil
}

func (r *HuntPhotoRepository) GetByID(ctx context.Context, id string) (*domain.HuntPhoto, error) {
	p := &domain.HuntPhoto{}
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+huntPhotoColumns+` FROM hunt_photos WHERE id = ?`, id)
	if err := scanHuntPhoto(row, p); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get hunt photo: %w", err)
	}
	return p, nil
}

func (r *HuntPhotoRepository) GetByPosition(ctx context.Context, sessionID string, position int) (*domain.HuntPhoto, error) {
	p := &domain.HuntPhoto{}
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+huntPhotoColumns+` FROM hunt_photos WHERE session_id = ? AND position = ?`,
		sessionID, position)
	if err := scanHuntPhoto(row, p); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get hunt photo by position: %w", err)
	}
	return p, nil
}

func (r *HuntPhotoRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.HuntPhoto, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+huntPhotoColumns+` FROM hunt_photos WHERE session_id = ? ORDER BY position ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list hunt photos: %w", err)
	}
	defer rows.Close()

	var photos []domain.HuntPhoto
	for rows.Next() {
		var p domain.HuntPhoto
		if err := scanHuntPhoto(rows, &p); err != nil {
			return nil, fmt.Errorf("scan hunt photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *HuntPhotoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx, "DELETE FROM hunt_photos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete hunt photo: %w", err)
	}
	return requireAffected(result)
}

func (r *HuntPhotoRepository) GetOwnerUserID(ctx context.Context, photoID string) (string, error) {
	var userID string
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT s.user_id FROM hunt_photos p
		 JOIN hunt_sessions s ON s.id = p.session_id
		 WHERE p.id = ?`, photoID,
	).Scan(&userID)
	if err != nil {
		if notFound(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get photo owner: %w", err)
	}
	return userID, nil
}
