package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// HuntSessionRepository implements domain.HuntSessionRepository using SQLite.
type HuntSessionRepository struct {
	db *DB
}

// NewHuntSessionRepository creates a new SQLite-backed HuntSessionRepository.
func NewHuntSessionRepository(db *DB) *HuntSessionRepository {
	return &HuntSessionRepository{db: db}
}

const huntSessionColumns = `id, user_id, color, start_date, target_count, status,
	created_at, updated_at, completed_at`

func scanHuntSession(row rowScanner, s *domain.HuntSession) error {
	return row.Scan(&s.ID, &s.UserID, &s.Color, &s.StartDate, &s.TargetCount, &s.Status,
		&s.CreatedAt, &s.UpdatedAt, &s.CompletedAt)
}

// Create inserts the session. A client-supplied ID that already exists for
// the same user is treated as a resend and refreshes the row instead.
func (r *HuntSessionRepository) Create(ctx context.Context, session *domain.HuntSession) error {
	now := time.Now().UTC()
	if session.Status == "" {
		session.Status = domain.SessionStatusInProgress
	}
	result, err := r.db.Conn().ExecContext(ctx,
		`INSERT INTO hunt_sessions (`+huntSessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
		 WHERE hunt_sessions.user_id = excluded.user_id`,
		session.ID, session.UserID, session.Color, session.StartDate, session.TargetCount,
		session.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert hunt session: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("%w: session %s belongs to another device", domain.ErrUnauthorized, session.ID)
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	return nil
}

func (r *HuntSessionRepository) GetByID(ctx context.Context, id string) (*domain.HuntSession, error) {
	s := &domain.HuntSession{}
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+huntSessionColumns+` FROM hunt_sessions WHERE id = ?`, id)
	if err := scanHuntSession(row, s); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get hunt session: %w", err)
	}
	return s, nil
}

func (r *HuntSessionRepository) GetActiveByUser(ctx context.Context, userID string) (*domain.HuntSession, error) {
	s := &domain.HuntSession{}
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+huntSessionColumns+` FROM hunt_sessions
		 WHERE user_id = ? AND status = 'in_progress'
		 ORDER BY updated_at DESC LIMIT 1`, userID)
	if err := scanHuntSession(row, s); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get active hunt session: %w", err)
	}
	return s, nil
}

func (r *HuntSessionRepository) Touch(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx,
		"UPDATE hunt_sessions SET updated_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch hunt session: %w", err)
	}
	return requireAffected(result)
}

func (r *HuntSessionRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.Conn().ExecContext(ctx,
		`UPDATE hunt_sessions SET status = 'completed', completed_at = ?, updated_at = ?
		 WHERE id = ?`, at, at, id)
	if err != nil {
		return fmt.Errorf("complete hunt session: %w", err)
	}
	return requireAffected(result)
}
