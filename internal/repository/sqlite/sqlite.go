package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/msomdec/color-hunt/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle so repositories survive a Reopen: they always
// ask DB for the current connection instead of caching it.
type DB struct {
	path string

	mu   sync.RWMutex
	conn *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	conn, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	return &DB{path: dbPath, conn: conn}, nil
}

func open(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance.
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// A single connection gives read-after-write consistency for free.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return conn, nil
}

// Conn returns the current connection pool.
func (d *DB) Conn() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.conn
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Migrate applies all pending schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, d.Conn())
}

// Reopen closes the current connection and opens a fresh one on the same
// file, then re-applies migrations.
func (d *DB) Reopen(ctx context.Context) error {
	d.mu.Lock()
	if err := d.conn.Close(); err != nil {
		slog.Warn("close database before reopen", "path", d.path, "error", err)
	}
	// On failure the closed handle stays in place and keeps returning
	// sql.ErrConnDone-style errors until the next Reopen.
	conn, err := open(d.path)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("reopen database: %w", err)
	}
	d.conn = conn
	d.mu.Unlock()

	slog.Info("database reopened", "path", d.path)
	return d.Migrate(ctx)
}

// Close closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.Close()
}


func (d *DB) Sessions() *SessionStore {
	return NewSessionStore(d)
}

func (d *DB) Photos() *PhotoStore {
	return NewPhotoStore(d)
}

func (d *DB) Collages() *CollageStore {
	return NewCollageStore(d)
}

func (d *DB) Identity() *IdentityStore {
	return NewIdentityStore(d)
}

func (d *DB) FileStore() *FileStore {
	return NewFileStore(d)
}

func (d *DB) Devices() *DeviceRepository {
	return NewDeviceRepository(d)
}

func (d *DB) HuntSessions() *HuntSessionRepository {
	return NewHuntSessionRepository(d)
}

func (d *DB) HuntPhotos() *HuntPhotoRepository {
	return NewHuntPhotoRepository(d)
}

func (d *DB) CompletedCollages() *CompletedCollageRepository {
	return NewCompletedCollageRepository(d)
}
