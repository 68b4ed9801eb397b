// Package config loads server and client settings from the environment.
// An optional .env file in the working directory is read first.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/msomdec/color-hunt/internal/domain"
)

// Server holds the environment driven configuration for the backend.
type Server struct {
	Port         int    `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"color-hunt.db"`
	JWTSecret    string `env:"JWT_SECRET,notEmpty"`
	// Default to secure cookies; disable only for local development.
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Requests per minute allowed per device on write endpoints.
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// Storage backend selection: "sqlite" or "s3".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"sqlite"`

	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3AccessKeyID  string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
}

// Client holds the configuration of the colorhunt CLI.
type Client struct {
	DatabasePath  string        `env:"COLORHUNT_DB" envDefault:"colorhunt.db"`
	BackendURL    string        `env:"COLORHUNT_BACKEND_URL"`
	RemoteTimeout time.Duration `env:"COLORHUNT_REMOTE_TIMEOUT" envDefault:"10s"`
	TargetCount   int           `env:"COLORHUNT_TARGET_COUNT" envDefault:"9"`
	CaptureMode   string        `env:"COLORHUNT_CAPTURE_MODE" envDefault:"ordered"`
	GridColumns   int           `env:"COLORHUNT_GRID_COLUMNS" envDefault:"3"`
	GridRows      int           `env:"COLORHUNT_GRID_ROWS" envDefault:"3"`
	CellSize      int           `env:"COLORHUNT_CELL_SIZE" envDefault:"300"`
	Language      string        `env:"COLORHUNT_LANG" envDefault:"en"`
	LogLevel      string        `env:"COLORHUNT_LOG_LEVEL" envDefault:"warn"`
	OutputDir     string        `env:"COLORHUNT_OUTPUT_DIR" envDefault:"."`
}

// LoadServer parses environment variables into Server and validates them.
func LoadServer() (*Server, error) {
	loadDotEnv()

	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	switch cfg.StorageBackend {
	case "sqlite":
	case "s3":
		cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORAGE_BACKEND is s3")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.RateLimit <= 0 {
		return nil, errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Server) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoadClient parses environment variables into Client and validates them.
func LoadClient() (*Client, error) {
	loadDotEnv()

	cfg := &Client{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the hunt settings. It is exported so flags that override
// the environment can be re-checked.
func (c *Client) Validate() error {
	if c.TargetCount <= 0 {
		return fmt.Errorf("target count must be positive, got %d", c.TargetCount)
	}
	if _, ok := domain.ParseCaptureMode(c.CaptureMode); !ok {
		return fmt.Errorf("unknown capture mode %q", c.CaptureMode)
	}
	if c.GridColumns <= 0 || c.GridRows <= 0 {
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", c.GridColumns, c.GridRows)
	}
	if c.GridColumns*c.GridRows < c.TargetCount {
		return fmt.Errorf("grid %dx%d cannot hold %d photos", c.GridColumns, c.GridRows, c.TargetCount)
	}
	if c.CellSize < 16 {
		return fmt.Errorf("cell size %d is too small", c.CellSize)
	}
	return nil
}

// Mode returns the parsed capture mode. Validate must have passed.
func (c *Client) Mode() domain.CaptureMode {
	mode, _ := domain.ParseCaptureMode(c.CaptureMode)
	return mode
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}
}
