package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/repository/sqlite"
)

func testPhoto(id, sessionID string, position int) *domain.Photo {
	return &domain.Photo{
		ID:        id,
		SessionID: sessionID,
		Position:  position,
		Image:     []byte("full-" + id),
		Thumbnail: []byte("thumb-" + id),
	}
}

func TestPhotoStore_PutAndList(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewPhotoStore(db)
	ctx := context.Background()

	for _, p := range []*domain.Photo{
		testPhoto("c", "s1", 2),
		testPhoto("a", "s1", 0),
		testPhoto("b", "s1", 1),
		testPhoto("x", "s2", 0),
	} {
		if err := store.Put(ctx, p); err != nil {
			t.Fatalf("Put %s: %v", p.ID, err)
		}
	}

	photos, err := store.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(photos) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(photos))
	}
	for i, want := range []string{"a", "b", "c"} {
		if photos[i].ID != want || photos[i].Position != i {
			t.Fatalf("photo %d: expected %s at %d, got %s at %d", i, want, i, photos[i].ID, photos[i].Position)
		}
	}
	if string(photos[0].Image) != "full-a" || string(photos[0].Thumbnail) != "thumb-a" {
		t.Fatalf("unexpected bytes: %q / %q", photos[0].Image, photos[0].Thumbnail)
	}
}

func TestPhotoStore_PutIsUpsert(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewPhotoStore(db)
	ctx := context.Background()

	p := testPhoto("a", "s1", 0)
	if err := store.Put(ctx, p); err != nil {
		t.Fatalf("Put: %v", err)
	}
	p.Image = []byte("replaced")
	if err := store.Put(ctx, p); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	photos, err := store.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(photos) != 1 || string(photos[0].Image) != "replaced" {
		t.Fatalf("expected one replaced photo, got %+v", photos)
	}
}

func TestPhotoStore_DeleteAndSetPosition(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewPhotoStore(db)
	ctx := context.Background()

	store.Put(ctx, testPhoto("a", "s1", 0))
	store.Put(ctx, testPhoto("b", "s1", 1))

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.SetPosition(ctx, "b", 0); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if err := store.SetPosition(ctx, "missing", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	photos, _ := store.ListBySession(ctx, "s1")
	if len(photos) != 1 || photos[0].ID != "b" || photos[0].Position != 0 {
		t.Fatalf("unexpected photos after delete: %+v", photos)
	}

	if err := store.DeleteBySession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteBySession: %v", err)
	}
	photos, _ = store.ListBySession(ctx, "s1")
	if len(photos) != 0 {
		t.Fatalf("expected no photos, got %d", len(photos))
	}
}

func TestPhotoStore_PutReopensClosedStore(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewPhotoStore(db)
	ctx := context.Background()

	// A closed handle stands in for a store that is not open yet.
	db.Close()

	if err := store.Put(ctx, testPhoto("a", "s1", 0)); err != nil {
		t.Fatalf("Put after close: %v", err)
	}
	photos, err := store.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("expected 1 photo, got %d", len(photos))
	}
}

func TestPhotoStore_PutStorageUnavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	store := sqlite.NewPhotoStore(db)

	db.Close()
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	err = store.Put(ctx, testPhoto("a", "s1", 0))
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
