package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/metrics"
)

type syncJob struct {
	op  string
	run func(ctx context.Context) error
}

// SyncService pushes local progress to the backend in the background. Jobs
// run one at a time in submission order so a session is created remotely
// before its photos arrive. Failures are logged and counted; local state
// never waits on the network.
type SyncService struct {
	remote  domain.RemoteSync
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	jobs   chan syncJob
	done   chan struct{}
}

// NewSyncService starts a sync worker with room for buffer queued jobs.
func NewSyncService(remote domain.RemoteSync, timeout time.Duration, buffer int) *SyncService {
	s := &SyncService{
		remote:  remote,
		timeout: timeout,
		jobs:    make(chan syncJob, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *SyncService) run() {
	defer close(s.done)
	for job := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := job.run(ctx)
		cancel()
		metrics.RecordSync(job.op, err)
		if err != nil {
			slog.Warn("remote sync failed", "op", job.op, "error", err)
		}
	}
}

// enqueue never blocks. A full queue drops the job.
func (s *SyncService) enqueue(op string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.jobs <- syncJob{op: op, run: run}:
	default:
		metrics.RecordSync(op, context.DeadlineExceeded)
		slog.Warn("sync queue full, dropping", "op", op)
	}
}

func (s *SyncService) SessionStarted(session *domain.Session) {
	cp := *session
	s.enqueue("start_session", func(ctx context.Context) error {
		return s.remote.StartSession(ctx, &cp)
	})
}

func (s *SyncService) PhotoCaptured(session *domain.Session, photo *domain.Photo) {
	sessionID, position := session.ID, photo.Position
	full, thumb := photo.Image, photo.Thumbnail
	s.enqueue("upload_photo", func(ctx context.Context) error {
		uploaded, err := s.remote.UploadPhoto(ctx, sessionID, position, full, thumb)
		if err != nil {
			return err
		}
		slog.Debug("photo synced", "session", sessionID, "position", position, "remote", uploaded.PhotoID)
		return nil
	})
}

// PhotoDeleted mirrors a local delete and its compaction. Moved photos are
// uploaded at their new positions, which replaces what the backend holds
// there, and then every position left vacant is cleared.
func (s *SyncService) PhotoDeleted(session *domain.Session, removed domain.Photo, moved []domain.Photo) {
	sessionID := session.ID
	moved = slices.Clone(moved)
	s.enqueue("delete_photo", func(ctx context.Context) error {
		for _, p := range moved {
			if _, err := s.remote.UploadPhoto(ctx, sessionID, p.Position, p.Image, p.Thumbnail); err != nil {
				return err
			}
		}
		for _, position := range vacated(removed, moved) {
			if err := s.remote.DeletePhoto(ctx, sessionID, position); err != nil {
				return err
			}
		}
		slog.Debug("photo delete synced", "session", sessionID, "position", removed.Position, "moved", len(moved))
		return nil
	})
}

// vacated returns the positions that held a photo before the delete and
// hold none after it, in ascending order.
func vacated(removed domain.Photo, moved []domain.Photo) []int {
	before := []int{removed.Position}
	after := make(map[int]bool, len(moved))
	for _, p := range moved {
		before = append(before, p.Position+1)
		after[p.Position] = true
	}
	var out []int
	for _, position := range before {
		if !after[position] {
			out = append(out, position)
		}
	}
	slices.Sort(out)
	return out
}

func (s *SyncService) CollageCompleted(sessionID string, collage []byte) {
	s.enqueue("complete_collage", func(ctx context.Context) error {
		id, err := s.remote.CompleteCollage(ctx, sessionID, collage)
		if err != nil {
			return err
		}
		slog.Info("collage synced", "session", sessionID, "collage", id)
		return nil
	})
}

// Close stops accepting jobs and waits for the queue to drain or ctx to end.
func (s *SyncService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
