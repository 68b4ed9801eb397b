package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/metrics"
)

// FileStore implements domain.FileStore using SQLite BLOBs.
type FileStore struct {
	db *DB
}

// NewFileStore creates a new SQLite-backed FileStore.
func NewFileStore(db *DB) *FileStore {
	return &FileStore{db: db}
}

func (s *FileStore) Save(ctx context.Context, key string, data []byte) (err error) {
	defer func(start time.Time) { metrics.ObserveStorage("save", start, err) }(time.Now())

	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO file_blobs (storage_key, data) VALUES (?, ?)
		 ON CONFLICT(storage_key) DO UPDATE SET data = excluded.data`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("save file blob: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (_ []byte, err error) {
	defer func(start time.Time) { metrics.ObserveStorage("get", start, err) }(time.Now())

	var data []byte
	err = s.db.Conn().QueryRowContext(ctx,
		"SELECT data FROM file_blobs WHERE storage_key = ?", key,
	).Scan(&data)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get file blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { metrics.ObserveStorage("delete", start, err) }(time.Now())

	_, err = s.db.Conn().ExecContext(ctx,
		"DELETE FROM file_blobs WHERE storage_key = ?", key,
	)
	if err != nil {
		return fmt.Errorf("delete file blob: %w", err)
	}
	return nil
}
