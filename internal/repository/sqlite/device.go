package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
)

// DeviceRepository implements domain.DeviceRepository using SQLite.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new SQLite-backed DeviceRepository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	now := time.Now().UTC()
	_, err := r.db.Conn().ExecContext(ctx,
		"INSERT INTO devices (id, created_at, last_seen_at) VALUES (?, ?, ?)",
		device.ID, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: device %s already registered", domain.ErrInvalidInput, device.ID)
		}
		return fmt.Errorf("insert device: %w", err)
	}
	device.CreatedAt = now
	device.LastSeenAt = now
	return nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	d := &domain.Device{}
	err := r.db.Conn().QueryRowContext(ctx,
		"SELECT id, created_at, last_seen_at FROM devices WHERE id = ?", id,
	).Scan(&d.ID, &d.CreatedAt, &d.LastSeenAt)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func (r *DeviceRepository) Touch(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx,
		"UPDATE devices SET last_seen_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return requireAffected(result)
}
