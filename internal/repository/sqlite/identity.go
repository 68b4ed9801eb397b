package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// IdentityStore implements domain.IdentityStore using SQLite.
type IdentityStore struct {
	db *DB
}

// NewIdentityStore creates a new SQLite-backed IdentityStore.
func NewIdentityStore(db *DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func (s *IdentityStore) Get(ctx context.Context) (*domain.Identity, error) {
	id := &domain.Identity{}
	err := s.db.Conn().QueryRowContext(ctx,
		"SELECT user_id, token, created_at FROM identity WHERE slot = 1",
	).Scan(&id.UserID, &id.Token, &id.CreatedAt)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return id, nil
}

func (s *IdentityStore) Save(ctx context.Context, identity *domain.Identity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO identity (slot, user_id, token, created_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET user_id = excluded.user_id, token = excluded.token`,
		identity.UserID, identity.Token, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}
