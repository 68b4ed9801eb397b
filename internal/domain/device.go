package domain

import (
	"context"
	"time"
)

// Device is an anonymous user of the backend. Its ID doubles as the user ID
// in every other record.
type Device struct {
	ID         string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// DeviceRepository defines persistence operations for devices.
type DeviceRepository interface {
	Create(ctx context.Context, device *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	Touch(ctx context.Context, id string) error
}

// Identity is the locally cached device identity of the client.
type Identity struct {
	UserID    string
	Token     string
	CreatedAt time.Time
}

// IdentityStore keeps the client's single identity row.
type IdentityStore interface {
	Get(ctx context.Context) (*Identity, error)
	Save(ctx context.Context, identity *Identity) error
}
