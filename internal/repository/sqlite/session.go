package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// SessionStore implements domain.SessionStore using SQLite.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SQLite-backed SessionStore.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, color, color_hex, color_english, color_korean, hunt_date, status,
	target_count, capture_mode, filled, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, s *domain.Session) error {
	return row.Scan(&s.ID, &s.Color.Name, &s.Color.Hex, &s.Color.English, &s.Color.Korean,
		&s.Date, &s.Status, &s.TargetCount, &s.CaptureMode, &s.Filled,
		&s.CreatedAt, &s.UpdatedAt, &s.CompletedAt)
}

// Save upserts the session. CreatedAt and UpdatedAt default to now when unset.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 status = excluded.status, filled = excluded.filled,
		 updated_at = excluded.updated_at, completed_at = excluded.completed_at`,
		session.ID, session.Color.Name, session.Color.Hex, session.Color.English, session.Color.Korean,
		session.Date, session.Status, session.TargetCount, session.CaptureMode, session.Filled,
		session.CreatedAt, session.UpdatedAt, session.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	session := &domain.Session{}
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err := scanSession(row, session); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListByStatus returns sessions with the given status, most recently updated first.
func (s *SessionStore) ListByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = ? ORDER BY updated_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		if err := scanSession(rows, &session); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Conn().ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(result)
}

func (s *SessionStore) SetActive(ctx context.Context, id string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO active_session (slot, session_id) VALUES (1, ?)
		 ON CONFLICT(slot) DO UPDATE SET session_id = excluded.session_id`, id)
	if err != nil {
		return fmt.Errorf("set active session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetActive(ctx context.Context) (*domain.Session, error) {
	session := &domain.Session{}
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE id = (SELECT session_id FROM active_session WHERE slot = 1)`)
	if err := scanSession(row, session); err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) ClearActive(ctx context.Context) error {
	if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM active_session"); err != nil {
		return fmt.Errorf("clear active session: %w", err)
	}
	return nil
}
