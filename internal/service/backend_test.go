package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/repository/sqlite"
	"github.com/msomdec/color-hunt/internal/service"
)

func testJPEG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

type backend struct {
	db       *sqlite.DB
	sessions *service.SessionService
	photos   *service.PhotoService
	history  *service.HistoryService
}

func newTestBackend(t *testing.T) *backend {
	t.Helper()
	db := newTestDB(t)
	files := db.FileStore()
	return &backend{
		db:       db,
		sessions: service.NewSessionService(db.HuntSessions(), db.HuntPhotos()),
		photos:   service.NewPhotoService(db.HuntPhotos(), files, db.HuntSessions()),
		history:  service.NewHistoryService(db.CompletedCollages(), db.HuntSessions(), files),
	}
}

func (b *backend) device(t *testing.T) string {
	t.Helper()
	d := &domain.Device{ID: uuid.NewString()}
	if err := b.db.Devices().Create(context.Background(), d); err != nil {
		t.Fatalf("Create device: %v", err)
	}
	return d.ID
}

func TestSessionService_StartAndCurrent(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user := b.device(t)

	if _, _, err := b.sessions.Current(ctx, user); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	id := uuid.NewString()
	s, err := b.sessions.Start(ctx, user, id, "green", 9)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.ID != id || s.Color != "green" || s.TargetCount != 9 {
		t.Fatalf("unexpected session %+v", s)
	}

	// Resend is idempotent.
	if _, err := b.sessions.Start(ctx, user, id, "green", 9); err != nil {
		t.Fatalf("resend Start: %v", err)
	}

	current, photos, err := b.sessions.Current(ctx, user)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.ID != id || len(photos) != 0 {
		t.Fatalf("unexpected current %+v with %d photos", current, len(photos))
	}
}

func TestSessionService_StartValidation(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user := b.device(t)

	tests := []struct {
		name   string
		id     string
		color  string
		target int
	}{
		{"unknown color", "", "teal", 9},
		{"zero target", "", "red", 0},
		{"huge target", "", "red", 1000},
		{"bad id", "not-a-uuid", "red", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.sessions.Start(ctx, user, tt.id, tt.color, tt.target)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSessionService_ForeignSessionID(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	alice, bob := b.device(t), b.device(t)

	id := uuid.NewString()
	if _, err := b.sessions.Start(ctx, alice, id, "red", 9); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := b.sessions.Start(ctx, bob, id, "red", 9); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := b.sessions.Get(ctx, bob, id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized from Get, got %v", err)
	}
}

func TestPhotoService_UploadReplacesPosition(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user := b.device(t)
	s, err := b.sessions.Start(ctx, user, "", "blue", 4)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	first, err := b.photos.Upload(ctx, user, s.ID, 0, testJPEG(t, 10), testJPEG(t, 20))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(first.ImageKey, "photos/"+first.ID) || !strings.HasSuffix(first.ThumbnailKey, "_thumbnail.jpg") {
		t.Fatalf("unexpected keys %q %q", first.ImageKey, first.ThumbnailKey)
	}

	retake, err := b.photos.Upload(ctx, user, s.ID, 0, testJPEG(t, 200), testJPEG(t, 210))
	if err != nil {
		t.Fatalf("retake Upload: %v", err)
	}

	photos, err := b.photos.ListBySession(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != retake.ID {
		t.Fatalf("expected only the retake, got %+v", photos)
	}
	if _, err := b.db.FileStore().Get(ctx, first.ImageKey); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected old image removed, got %v", err)
	}

	data, contentType, err := b.photos.GetFile(ctx, user, retake.ID, domain.PhotoKindThumbnail)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if contentType != "image/jpeg" || len(data) == 0 {
		t.Fatalf("unexpected file %s (%d bytes)", contentType, len(data))
	}
}

func TestPhotoService_UploadValidation(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user, other := b.device(t), b.device(t)
	s, err := b.sessions.Start(ctx, user, "", "blue", 4)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	img := testJPEG(t, 1)

	if _, err := b.photos.Upload(ctx, user, s.ID, 0, []byte("plain text"), img); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for text, got %v", err)
	}
	if _, err := b.photos.Upload(ctx, user, s.ID, 4, img, img); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
	if _, err := b.photos.Upload(ctx, other, s.ID, 0, img, img); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := b.photos.Upload(ctx, user, uuid.NewString(), 0, img, img); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPhotoService_DeleteOwnership(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user, other := b.device(t), b.device(t)
	s, err := b.sessions.Start(ctx, user, "", "blue", 4)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	p, err := b.photos.Upload(ctx, user, s.ID, 1, testJPEG(t, 1), testJPEG(t, 2))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := b.photos.Delete(ctx, other, p.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := b.photos.Delete(ctx, user, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := b.photos.GetFile(ctx, user, p.ID, domain.PhotoKindOriginal); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestHistoryService_CompleteAndList(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user := b.device(t)

	var ids []string
	for _, c := range []string{"red", "blue", "red"} {
		s, err := b.sessions.Start(ctx, user, "", c, 9)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		record, err := b.history.Complete(ctx, user, s.ID, testJPEG(t, 9))
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if !strings.HasPrefix(record.ID, "col_") {
			t.Fatalf("expected col_ id, got %q", record.ID)
		}
		if _, err := b.history.Complete(ctx, user, s.ID, testJPEG(t, 9)); !errors.Is(err, domain.ErrSessionCompleted) {
			t.Fatalf("expected ErrSessionCompleted on second complete, got %v", err)
		}
		ids = append(ids, record.ID)
	}

	page, hasMore, err := b.history.ListCompletedCollages(ctx, user, domain.HistoryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListCompletedCollages: %v", err)
	}
	if len(page) != 2 || !hasMore {
		t.Fatalf("expected 2 results with more, got %d hasMore=%v", len(page), hasMore)
	}
	if page[0].ID != ids[2] {
		t.Fatalf("expected newest first %s, got %s", ids[2], page[0].ID)
	}

	reds, hasMore, err := b.history.ListCompletedCollages(ctx, user, domain.HistoryFilter{Color: "red"})
	if err != nil {
		t.Fatalf("ListCompletedCollages red: %v", err)
	}
	if len(reds) != 2 || hasMore {
		t.Fatalf("expected 2 red collages, got %d hasMore=%v", len(reds), hasMore)
	}

	if _, _, err := b.history.ListCompletedCollages(ctx, user, domain.HistoryFilter{Color: "teal"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown color, got %v", err)
	}

	stats, err := b.history.Stats(ctx, user)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 || stats[0].Color != "red" || stats[0].Count != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	data, err := b.history.File(ctx, user, ids[0])
	if err != nil || len(data) == 0 {
		t.Fatalf("File: %d bytes, %v", len(data), err)
	}
}

type failingCompletion struct {
	domain.HuntSessionRepository
}

func (failingCompletion) MarkCompleted(context.Context, string, time.Time) error {
	return errors.New("database is locked")
}

func TestHistoryService_CompleteRollsBackWhenSessionUpdateFails(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user := b.device(t)
	s, err := b.sessions.Start(ctx, user, "", "red", 9)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	broken := service.NewHistoryService(b.db.CompletedCollages(), failingCompletion{b.db.HuntSessions()}, b.db.FileStore())
	if _, err := broken.Complete(ctx, user, s.ID, testJPEG(t, 9)); err == nil {
		t.Fatal("expected error when the session cannot be completed")
	}

	collages, _, err := b.history.ListCompletedCollages(ctx, user, domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("ListCompletedCollages: %v", err)
	}
	if len(collages) != 0 {
		t.Fatalf("expected no history entry, got %+v", collages)
	}
	var blobs int
	if err := b.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM file_blobs").Scan(&blobs); err != nil {
		t.Fatalf("count blobs: %v", err)
	}
	if blobs != 0 {
		t.Fatalf("expected collage file removed, %d blobs left", blobs)
	}

	// A retry records exactly one collage.
	if _, err := b.history.Complete(ctx, user, s.ID, testJPEG(t, 9)); err != nil {
		t.Fatalf("Complete retry: %v", err)
	}
	collages, _, _ = b.history.ListCompletedCollages(ctx, user, domain.HistoryFilter{})
	if len(collages) != 1 {
		t.Fatalf("expected 1 collage after retry, got %d", len(collages))
	}
}

func TestColorService_BackendHistoryExclusion(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	user := b.device(t)

	s, err := b.sessions.Start(ctx, user, "", "yellow", 9)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := b.history.Complete(ctx, user, s.ID, testJPEG(t, 3)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	colors := service.NewColorService(b.db.CompletedCollages())
	for i := 0; i < 100; i++ {
		got, err := colors.RequestColor(ctx, user, "")
		if err != nil {
			t.Fatalf("RequestColor: %v", err)
		}
		if got.Color.Name == "yellow" {
			t.Fatal("color completed today was assigned again")
		}
	}
}

func TestRemoteProgress(t *testing.T) {
	session := &domain.HuntSession{TargetCount: 4, Status: domain.SessionStatusInProgress}
	p := service.RemoteProgress(session, []domain.HuntPhoto{{Position: 0}, {Position: 2}})
	if p.Filled != 2 || p.Percent != 50 || p.Next != 1 || p.CanComplete {
		t.Fatalf("unexpected progress %+v", p)
	}
}
