package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// CollageStore implements domain.CollageStore using SQLite BLOBs.
type CollageStore struct {
	db *DB
}

// NewCollageStore creates a new SQLite-backed CollageStore.
func NewCollageStore(db *DB) *CollageStore {
	return &CollageStore{db: db}
}

func (s *CollageStore) Save(ctx context.Context, sessionID string, data []byte) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO collages (session_id, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET data = excluded.data`,
		sessionID, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save collage: %w", err)
	}
	return nil
}

func (s *CollageStore) Get(ctx context.Context, sessionID string) ([]byte, error) {
	var data []byte
	err := s.db.Conn().QueryRowContext(ctx,
		"SELECT data FROM collages WHERE session_id = ?", sessionID,
	).Scan(&data)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get collage: %w", err)
	}
	return data, nil
}

func (s *CollageStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM collages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete collage: %w", err)
	}
	return nil
}
