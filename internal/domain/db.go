package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// Each implementation owns its own migration files and strategy.
// Reopen closes and re-establishes the connection; stores call it once
// before giving up with ErrStorageUnavailable.
type Database interface {
	Migrate(ctx context.Context) error
	Reopen(ctx context.Context) error
	Close() error
}
