package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/msomdec/color-hunt/internal/capture"
	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/flush"
	"github.com/msomdec/color-hunt/internal/repository/sqlite"
	"github.com/msomdec/color-hunt/internal/service"
)

var testColor = domain.Color{Name: "red", Hex: "#FFB3B3", English: "Soft Coral", Korean: "빨강"}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestHunt(t *testing.T, mode domain.CaptureMode, target int) (*service.HuntService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	return service.NewHuntService(service.HuntConfig{TargetCount: target, CaptureMode: mode},
		db.Sessions(), db.Photos(), db.Collages(), nil, nil), db
}

func shot(label string) *capture.Output {
	return &capture.Output{Full: []byte("full-" + label), Thumbnail: []byte("thumb-" + label)}
}

// assertDense checks positions in memory and in the store are exactly 0..filled-1.
func assertDense(t *testing.T, hunts *service.HuntService, db *sqlite.DB, sessionID string) {
	t.Helper()
	ctx := context.Background()
	session, err := hunts.Session(ctx, sessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	photos, err := hunts.Photos(ctx, sessionID)
	if err != nil {
		t.Fatalf("Photos: %v", err)
	}
	stored, err := db.Photos().ListBySession(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(photos) != session.Filled || len(stored) != session.Filled {
		t.Fatalf("filled=%d but %d photos in memory, %d stored", session.Filled, len(photos), len(stored))
	}
	for i := range photos {
		if photos[i].Position != i || stored[i].Position != i || photos[i].ID != stored[i].ID {
			t.Fatalf("position %d: memory %s@%d, store %s@%d", i,
				photos[i].ID, photos[i].Position, stored[i].ID, stored[i].Position)
		}
	}
}

func TestHunt_StartPersistsSession(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()

	s, err := hunts.Start(ctx, testColor, "2026-06-01")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.ID == "" || s.Status != domain.SessionStatusInProgress || s.TargetCount != 9 || s.Filled != 0 {
		t.Fatalf("unexpected session %+v", s)
	}

	active, err := db.Sessions().GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.ID != s.ID || active.Color != testColor || active.Date != "2026-06-01" {
		t.Fatalf("unexpected active session %+v", active)
	}
}

func TestHunt_StartRejectsBadConfig(t *testing.T) {
	hunts, _ := newTestHunt(t, domain.CaptureModeOrdered, 0)
	if _, err := hunts.Start(context.Background(), testColor, "2026-06-01"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHunt_OrderedRejectsSkippingAhead(t *testing.T) {
	hunts, _ := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	if _, err := hunts.Capture(ctx, s.ID, 0, shot("0")); err != nil {
		t.Fatalf("Capture 0: %v", err)
	}
	if _, err := hunts.Capture(ctx, s.ID, 2, shot("2")); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition for position 2, got %v", err)
	}
	if _, err := hunts.Capture(ctx, s.ID, 1, shot("1")); err != nil {
		t.Fatalf("Capture 1: %v", err)
	}

	got, _ := hunts.Session(ctx, s.ID)
	if got.Filled != 2 {
		t.Fatalf("expected filled=2, got %d", got.Filled)
	}
}

func TestHunt_OutOfRangePosition(t *testing.T) {
	for _, mode := range []domain.CaptureMode{domain.CaptureModeOrdered, domain.CaptureModeFree} {
		t.Run(string(mode), func(t *testing.T) {
			hunts, _ := newTestHunt(t, mode, 9)
			ctx := context.Background()
			s, _ := hunts.Start(ctx, testColor, "2026-06-01")

			for _, p := range []int{-1, 9, 100} {
				if _, err := hunts.Capture(ctx, s.ID, p, shot("x")); !errors.Is(err, domain.ErrInvalidPosition) {
					t.Fatalf("position %d: expected ErrInvalidPosition, got %v", p, err)
				}
			}
		})
	}
}

func TestHunt_FreeModeAnyEmptyPosition(t *testing.T) {
	hunts, _ := newTestHunt(t, domain.CaptureModeFree, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	if _, err := hunts.Capture(ctx, s.ID, 4, shot("4")); err != nil {
		t.Fatalf("Capture 4: %v", err)
	}
	if _, err := hunts.Capture(ctx, s.ID, 8, shot("8")); err != nil {
		t.Fatalf("Capture 8: %v", err)
	}

	progress, err := hunts.Progress(ctx, s.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress.Filled != 2 || progress.Next != 0 || progress.CanComplete {
		t.Fatalf("unexpected progress %+v", progress)
	}

	photos, _ := hunts.Photos(ctx, s.ID)
	if len(photos) != 2 || photos[0].Position != 4 || photos[1].Position != 8 {
		t.Fatalf("expected photos at 4 and 8, got %+v", photos)
	}
}

func TestHunt_FreeModeDeleteCompacts(t *testing.T) {
	hunts, _ := newTestHunt(t, domain.CaptureModeFree, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	for _, p := range []int{1, 3, 5} {
		hunts.Capture(ctx, s.ID, p, shot(fmt.Sprint(p)))
	}
	if err := hunts.DeletePhoto(ctx, s.ID, 3); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	photos, _ := hunts.Photos(ctx, s.ID)
	if len(photos) != 2 || photos[0].Position != 1 || photos[1].Position != 4 {
		t.Fatalf("expected photos at 1 and 4, got %+v", photos)
	}
}

func TestHunt_RetakeReplacesInPlace(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	var ids []string
	for i := 0; i < 3; i++ {
		p, err := hunts.Capture(ctx, s.ID, i, shot(fmt.Sprint(i)))
		if err != nil {
			t.Fatalf("Capture %d: %v", i, err)
		}
		ids = append(ids, p.ID)
	}

	retake, err := hunts.Capture(ctx, s.ID, 1, shot("retake"))
	if err != nil {
		t.Fatalf("retake: %v", err)
	}
	if retake.ID == ids[1] {
		t.Fatal("retake must get a new id")
	}

	got, _ := hunts.Session(ctx, s.ID)
	if got.Filled != 3 {
		t.Fatalf("expected filled=3 after retake, got %d", got.Filled)
	}
	stored, _ := db.Photos().ListBySession(ctx, s.ID)
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored photos, got %d", len(stored))
	}
	if stored[0].ID != ids[0] || stored[1].ID != retake.ID || stored[2].ID != ids[2] {
		t.Fatalf("unexpected stored ids %s %s %s", stored[0].ID, stored[1].ID, stored[2].ID)
	}
	if string(stored[1].Image) != "full-retake" {
		t.Fatalf("expected retaken bytes, got %q", stored[1].Image)
	}
}

func TestHunt_DeleteCompacts(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	var ids []string
	for i := 0; i < 3; i++ {
		p, _ := hunts.Capture(ctx, s.ID, i, shot(fmt.Sprint(i)))
		ids = append(ids, p.ID)
	}

	if err := hunts.DeletePhoto(ctx, s.ID, 1); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}

	photos, _ := hunts.Photos(ctx, s.ID)
	if len(photos) != 2 || photos[1].ID != ids[2] || photos[1].Position != 1 {
		t.Fatalf("expected former position 2 at 1, got %+v", photos)
	}
	got, _ := hunts.Session(ctx, s.ID)
	if got.Filled != 2 {
		t.Fatalf("expected filled=2, got %d", got.Filled)
	}
	assertDense(t, hunts, db, s.ID)

	if err := hunts.DeletePhoto(ctx, s.ID, 5); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition for empty slot, got %v", err)
	}
}

func TestHunt_PositionsStayDense(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")
	rng := rand.New(rand.NewPCG(7, 11))

	for step := 0; step < 80; step++ {
		current, _ := hunts.Session(ctx, s.ID)
		switch op := rng.IntN(3); {
		case op < 2 && current.Filled < 9:
			// New capture or retake of a filled slot.
			pos := rng.IntN(current.Filled + 1)
			if _, err := hunts.Capture(ctx, s.ID, pos, shot(fmt.Sprint(step))); err != nil {
				t.Fatalf("step %d capture %d: %v", step, pos, err)
			}
		case current.Filled > 0:
			pos := rng.IntN(current.Filled)
			if err := hunts.DeletePhoto(ctx, s.ID, pos); err != nil {
				t.Fatalf("step %d delete %d: %v", step, pos, err)
			}
		}
		assertDense(t, hunts, db, s.ID)
	}
}

func TestHunt_NoPrematureCompletion(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 3)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	if _, err := hunts.Complete(ctx, s.ID, []byte("collage")); !errors.Is(err, domain.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete at 0 photos, got %v", err)
	}
	for i := 0; i < 3; i++ {
		hunts.Capture(ctx, s.ID, i, shot(fmt.Sprint(i)))
	}
	hunts.DeletePhoto(ctx, s.ID, 0)
	if _, err := hunts.Complete(ctx, s.ID, []byte("collage")); !errors.Is(err, domain.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete after delete, got %v", err)
	}

	// Reaching the target does not complete on its own.
	hunts.Capture(ctx, s.ID, 2, shot("2"))
	got, _ := hunts.Session(ctx, s.ID)
	if got.IsCompleted() {
		t.Fatal("session completed without explicit confirmation")
	}
	progress, _ := hunts.Progress(ctx, s.ID)
	if !progress.CanComplete || progress.Percent != 100 || progress.Next != -1 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	done, err := hunts.Complete(ctx, s.ID, []byte("collage"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done.IsCompleted() || done.CompletedAt == nil {
		t.Fatalf("unexpected completed session %+v", done)
	}
	stored, _ := db.Sessions().GetByID(ctx, s.ID)
	if !stored.IsCompleted() {
		t.Fatal("completion not persisted")
	}
	data, err := hunts.Collage(ctx, s.ID)
	if err != nil || string(data) != "collage" {
		t.Fatalf("Collage: %q, %v", data, err)
	}

	if _, err := hunts.Complete(ctx, s.ID, []byte("again")); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
	if _, err := hunts.Capture(ctx, s.ID, 0, shot("late")); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted on capture, got %v", err)
	}
	if err := hunts.DeletePhoto(ctx, s.ID, 0); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted on delete, got %v", err)
	}
}

func TestHunt_PendingAndCancelledCapture(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	ticket, err := hunts.BeginCapture(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}
	if _, err := hunts.BeginCapture(ctx, s.ID, 0); !errors.Is(err, domain.ErrCapturePending) {
		t.Fatalf("expected ErrCapturePending, got %v", err)
	}
	if _, err := hunts.Capture(ctx, s.ID, 0, shot("direct")); !errors.Is(err, domain.ErrCapturePending) {
		t.Fatalf("expected ErrCapturePending for direct capture, got %v", err)
	}

	hunts.CancelCapture(ticket)
	if _, err := hunts.CommitCapture(ctx, ticket, shot("late")); !errors.Is(err, domain.ErrCaptureCancelled) {
		t.Fatalf("expected ErrCaptureCancelled, got %v", err)
	}
	stored, _ := db.Photos().ListBySession(ctx, s.ID)
	if len(stored) != 0 {
		t.Fatalf("cancelled capture was written: %+v", stored)
	}

	// A new ticket for the same slot works, and an old one cannot hijack it.
	fresh, err := hunts.BeginCapture(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("BeginCapture again: %v", err)
	}
	if _, err := hunts.CommitCapture(ctx, ticket, shot("stale")); !errors.Is(err, domain.ErrCaptureCancelled) {
		t.Fatalf("expected stale ticket to be discarded, got %v", err)
	}
	photo, err := hunts.CommitCapture(ctx, fresh, shot("fresh"))
	if err != nil {
		t.Fatalf("CommitCapture: %v", err)
	}
	if photo.Position != 0 || string(photo.Image) != "full-fresh" {
		t.Fatalf("unexpected photo %+v", photo)
	}
}

func TestHunt_StartSupersedesInProgress(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()

	first, _ := hunts.Start(ctx, testColor, "2026-06-01")
	hunts.Capture(ctx, first.ID, 0, shot("0"))

	second, err := hunts.Start(ctx, domain.Color{Name: "blue"}, "2026-06-01")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	active, _ := hunts.Active(ctx)
	if active.ID != second.ID {
		t.Fatalf("expected second session active, got %s", active.ID)
	}
	stored, _ := db.Photos().ListBySession(ctx, first.ID)
	if len(stored) != 1 {
		t.Fatalf("superseded in-progress session lost its photos")
	}
}

func TestHunt_StartNewReleasesPrior(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 1)
	ctx := context.Background()

	first, _ := hunts.Start(ctx, testColor, "2026-06-01")
	hunts.Capture(ctx, first.ID, 0, shot("0"))
	if _, err := hunts.Complete(ctx, first.ID, []byte("collage")); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	second, err := hunts.StartNew(ctx, domain.Color{Name: "green"}, "2026-06-02")
	if err != nil {
		t.Fatalf("StartNew: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("session id reused")
	}
	stored, _ := db.Photos().ListBySession(ctx, first.ID)
	if len(stored) != 0 {
		t.Fatalf("expected prior photos released, got %d", len(stored))
	}
	if _, err := db.Sessions().GetByID(ctx, first.ID); err != nil {
		t.Fatalf("prior session row should remain as history: %v", err)
	}
}

func TestHunt_ResumeAfterRestart(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")
	for i := 0; i < 2; i++ {
		hunts.Capture(ctx, s.ID, i, shot(fmt.Sprint(i)))
	}

	// A duplicate row at position 1 left by an interrupted retake.
	dup := &domain.Photo{ID: "dup", SessionID: s.ID, Position: 1, Image: []byte("newer"), Thumbnail: []byte("t")}
	if err := db.Photos().Put(ctx, dup); err != nil {
		t.Fatalf("Put: %v", err)
	}

	restarted := service.NewHuntService(service.HuntConfig{TargetCount: 9, CaptureMode: domain.CaptureModeOrdered},
		db.Sessions(), db.Photos(), db.Collages(), nil, nil)
	active, err := restarted.Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.ID != s.ID || active.Filled != 2 {
		t.Fatalf("unexpected resumed session %+v", active)
	}
	photos, _ := restarted.Photos(ctx, s.ID)
	if len(photos) != 2 || photos[1].ID != "dup" {
		t.Fatalf("expected newest photo kept at position 1, got %+v", photos)
	}
	stored, _ := db.Photos().ListBySession(ctx, s.ID)
	if len(stored) != 2 {
		t.Fatalf("expected duplicate removed from store, got %d rows", len(stored))
	}
}

func TestHunt_NoActiveSession(t *testing.T) {
	hunts, _ := newTestHunt(t, domain.CaptureModeOrdered, 9)
	if _, err := hunts.Active(context.Background()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := hunts.Capture(context.Background(), "nope", 0, shot("x")); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

// failingPhotos rejects every Put.
type failingPhotos struct {
	domain.PhotoStore
}

func (failingPhotos) Put(context.Context, *domain.Photo) error {
	return fmt.Errorf("%w: quota exceeded", domain.ErrStorageUnavailable)
}

func TestHunt_StorageFailureKeepsCount(t *testing.T) {
	db := newTestDB(t)
	hunts := service.NewHuntService(service.HuntConfig{TargetCount: 9, CaptureMode: domain.CaptureModeOrdered},
		db.Sessions(), failingPhotos{db.Photos()}, db.Collages(), nil, nil)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")

	if _, err := hunts.Capture(ctx, s.ID, 0, shot("0")); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	got, _ := hunts.Session(ctx, s.ID)
	if got.Filled != 0 {
		t.Fatalf("count advanced on failed write: %d", got.Filled)
	}
}

func TestHunt_Abandon(t *testing.T) {
	hunts, db := newTestHunt(t, domain.CaptureModeOrdered, 9)
	ctx := context.Background()
	s, _ := hunts.Start(ctx, testColor, "2026-06-01")
	hunts.Capture(ctx, s.ID, 0, shot("0"))

	if err := hunts.Abandon(ctx, s.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if _, err := db.Sessions().GetByID(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected session deleted, got %v", err)
	}
	if _, err := hunts.Active(ctx); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestHunt_AbandonedSessionStaysDeletedAfterFlush(t *testing.T) {
	for _, completed := range []bool{false, true} {
		t.Run(fmt.Sprintf("completed=%v", completed), func(t *testing.T) {
			db := newTestDB(t)
			coord := flush.NewCoordinator(db.Sessions(), db.Photos())
			hunts := service.NewHuntService(service.HuntConfig{TargetCount: 1, CaptureMode: domain.CaptureModeOrdered},
				db.Sessions(), db.Photos(), db.Collages(), coord, nil)
			ctx := context.Background()

			s, err := hunts.Start(ctx, testColor, "2026-06-01")
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			if _, err := hunts.Capture(ctx, s.ID, 0, shot("0")); err != nil {
				t.Fatalf("Capture: %v", err)
			}
			if completed {
				if _, err := hunts.Complete(ctx, s.ID, []byte("collage")); err != nil {
					t.Fatalf("Complete: %v", err)
				}
			}
			if err := hunts.Abandon(ctx, s.ID); err != nil {
				t.Fatalf("Abandon: %v", err)
			}

			report := coord.HandleEvent(ctx, flush.EventUnload)
			if report.SessionSaved || report.PhotosWritten != 0 {
				t.Fatalf("flush wrote abandoned state: %+v", report)
			}
			if _, err := db.Sessions().GetByID(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected session to stay deleted, got %v", err)
			}
			if stored, _ := db.Photos().ListBySession(ctx, s.ID); len(stored) != 0 {
				t.Fatalf("expected no photos, got %d", len(stored))
			}
		})
	}
}

func TestHunt_ReleaseDropsFlushSnapshot(t *testing.T) {
	db := newTestDB(t)
	coord := flush.NewCoordinator(db.Sessions(), db.Photos())
	hunts := service.NewHuntService(service.HuntConfig{TargetCount: 1, CaptureMode: domain.CaptureModeOrdered},
		db.Sessions(), db.Photos(), db.Collages(), coord, nil)
	ctx := context.Background()

	s, _ := hunts.Start(ctx, testColor, "2026-06-01")
	hunts.Capture(ctx, s.ID, 0, shot("0"))
	if _, err := hunts.Complete(ctx, s.ID, []byte("collage")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := hunts.Release(ctx, s.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if report := coord.Flush(ctx); report.SessionSaved || report.PhotosWritten != 0 {
		t.Fatalf("flush wrote released state: %+v", report)
	}
	if stored, _ := db.Photos().ListBySession(ctx, s.ID); len(stored) != 0 {
		t.Fatalf("expected released photos to stay gone, got %d", len(stored))
	}
}

func TestNextPosition(t *testing.T) {
	photos := []domain.Photo{{Position: 0}, {Position: 1}, {Position: 3}}
	if got := service.NextPosition(4, photos); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := service.NextPosition(2, photos); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}
