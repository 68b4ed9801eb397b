package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limited")

	// ErrStorageUnavailable means the durable store could not be opened or
	// written, even after one reopen.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrFrameNotReady means the frame source has zero dimensions.
	ErrFrameNotReady = errors.New("frame not ready")

	ErrNoPhotosAvailable = errors.New("no photos available")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidPosition   = errors.New("invalid position")
	ErrSessionCompleted  = errors.New("session already completed")
	ErrIncomplete        = errors.New("session incomplete")
	ErrCapturePending    = errors.New("capture already pending for position")
	ErrCaptureCancelled  = errors.New("capture cancelled")
)
