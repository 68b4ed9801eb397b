package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// CompletedCollageRepository implements domain.CompletedCollageRepository using SQLite.
type CompletedCollageRepository struct {
	db *DB
}

// NewCompletedCollageRepository creates a new SQLite-backed CompletedCollageRepository.
func NewCompletedCollageRepository(db *DB) *CompletedCollageRepository {
	return &CompletedCollageRepository{db: db}
}

const completedCollageColumns = `id, session_id, user_id, color, hunt_date, storage_key, created_at`

func scanCompletedCollage(row rowScanner, c *domain.CompletedCollage) error {
	return row.Scan(&c.ID, &c.SessionID, &c.UserID, &c.Color, &c.Date, &c.StorageKey, &c.CreatedAt)
}

func (r *CompletedCollageRepository) Create(ctx context.Context, collage *domain.CompletedCollage) error {
	if collage.CreatedAt.IsZero() {
		collage.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Conn().ExecContext(ctx,
		`INSERT INTO completed_collages (`+completedCollageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		collage.ID, collage.SessionID, collage.UserID, collage.Color, collage.Date,
		collage.StorageKey, collage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert completed collage: %w", err)
	}
	return nil
}

func (r *CompletedCollageRepository) GetByID(ctx context.Context, id string) (*domain.CompletedCollage, error) {
	c := &domain.CompletedCollage{}
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+completedCollageColumns+` FROM completed_collages WHERE id = ?`, id)
	if err := scanCompletedCollage(row, c); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get completed collage: %w", err)
	}
	return c, nil
}

func (r *CompletedCollageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx, "DELETE FROM completed_collages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete completed collage: %w", err)
	}
	return requireAffected(result)
}

// ListByUser returns the user's collages, newest first. An empty filter
// color matches every color.
func (r *CompletedCollageRepository) ListByUser(ctx context.Context, userID string, filter domain.HistoryFilter) ([]domain.CompletedCollage, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+completedCollageColumns+` FROM completed_collages
		 WHERE user_id = ? AND (? = '' OR color = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, filter.Color, filter.Color, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list completed collages: %w", err)
	}
	defer rows.Close()

	var collages []domain.CompletedCollage
	for rows.Next() {
		var c domain.CompletedCollage
		if err := scanCompletedCollage(rows, &c); err != nil {
			return nil, fmt.Errorf("scan completed collage: %w", err)
		}
		collages = append(collages, c)
	}
	return collages, rows.Err()
}

func (r *CompletedCollageRepository) LastColorOn(ctx context.Context, userID, date string) (string, error) {
	var color string
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT color FROM completed_collages
		 WHERE user_id = ? AND hunt_date = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, userID, date,
	).Scan(&color)
	if err != nil {
		if notFound(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("last collage color: %w", err)
	}
	return color, nil
}

func (r *CompletedCollageRepository) StatsByUser(ctx context.Context, userID string) ([]domain.ColorStat, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT color, COUNT(*), MAX(hunt_date) FROM completed_collages
		 WHERE user_id = ? GROUP BY color ORDER BY COUNT(*) DESC, color ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("collage stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.ColorStat
	for rows.Next() {
		var s domain.ColorStat
		if err := rows.Scan(&s.Color, &s.Count, &s.LastDate); err != nil {
			return nil, fmt.Errorf("scan collage stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
