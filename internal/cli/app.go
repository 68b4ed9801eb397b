// Package cli hosts the color-hunt client core behind a cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/msomdec/color-hunt/internal/capture"
	"github.com/msomdec/color-hunt/internal/collage"
	"github.com/msomdec/color-hunt/internal/config"
	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/flush"
	"github.com/msomdec/color-hunt/internal/remote"
	"github.com/msomdec/color-hunt/internal/repository/sqlite"
	"github.com/msomdec/color-hunt/internal/service"
)

// localUser is the user ID of a device that has never talked to a backend.
const localUser = "local"

// syncBuffer bounds the number of queued remote sync jobs.
const syncBuffer = 64

// App is the wired client: local store, hunt state, collage rendering, and
// the optional backend.
type App struct {
	cfg      *config.Client
	db       *sqlite.DB
	tr       *service.Translator
	pipeline capture.Pipeline

	hunts    *service.HuntService
	collages *service.CollageService
	flush    *flush.Coordinator

	colors  domain.ColorAssigner
	history domain.HistoryLister

	remote *remote.Client
	sync   *service.SyncService
}

// Open opens the local database, applies migrations, and wires the client.
// A backend is used only when cfg.BackendURL is set.
func Open(ctx context.Context, cfg *config.Client) (*App, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	app := &App{
		cfg:      cfg,
		db:       db,
		tr:       service.NewTranslator(cfg.Language),
		pipeline: capture.DefaultPipeline(),
		flush:    flush.NewCoordinator(db.Sessions(), db.Photos()),
	}

	local := service.NewColorService(service.LocalColorHistory{Sessions: db.Sessions()})
	localHistory := service.LocalHistory{Sessions: db.Sessions()}

	var huntObserver service.HuntObserver
	var collageObserver service.CollageObserver
	if cfg.BackendURL != "" {
		app.remote = remote.New(cfg.BackendURL, cfg.RemoteTimeout, db.Identity())
		app.sync = service.NewSyncService(app.remote, cfg.RemoteTimeout, syncBuffer)
		huntObserver, collageObserver = app.sync, app.sync
		app.colors = fallbackColors{primary: app.remote, fallback: local}
		app.history = fallbackHistory{primary: app.remote, fallback: localHistory}
	} else {
		app.colors = local
		app.history = localHistory
	}

	app.hunts = service.NewHuntService(
		service.HuntConfig{TargetCount: cfg.TargetCount, CaptureMode: cfg.Mode()},
		db.Sessions(), db.Photos(), db.Collages(),
		app.flush, huntObserver,
	)
	compositor := collage.NewCompositor(cfg.GridColumns, cfg.GridRows, cfg.CellSize)
	app.collages = service.NewCollageService(app.hunts, compositor, app.tr, collageObserver)

	slog.Debug("client opened", "db", cfg.DatabasePath, "backend", cfg.BackendURL != "")
	return app, nil
}

// Close drains the sync queue, flushes unsaved state, and closes the
// database. ctx bounds the wait for the sync queue.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.sync != nil {
		if err := a.sync.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain sync queue: %w", err))
		}
	}
	report := a.flush.Flush(context.WithoutCancel(ctx))
	if report.Failures > 0 {
		errs = append(errs, fmt.Errorf("flush: %d writes failed", report.Failures))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

// userID returns the backend identity when one is cached.
func (a *App) userID(ctx context.Context) string {
	if a.remote == nil {
		return localUser
	}
	id, err := a.db.Identity().Get(ctx)
	if err != nil {
		return localUser
	}
	return id.UserID
}

func (a *App) today() string {
	return time.Now().UTC().Format(service.DateLayout)
}

// active returns the active session and its photos.
func (a *App) active(ctx context.Context) (*domain.Session, []domain.Photo, error) {
	session, err := a.hunts.Active(ctx)
	if err != nil {
		return nil, nil, err
	}
	photos, err := a.hunts.Photos(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, photos, nil
}

// fallbackColors asks the backend first and picks locally when it fails, so
// a hunt can always start.
type fallbackColors struct {
	primary  domain.ColorAssigner
	fallback domain.ColorAssigner
}

func (c fallbackColors) RequestColor(ctx context.Context, userID, exclude string) (*domain.ColorAssignment, error) {
	assignment, err := c.primary.RequestColor(ctx, userID, exclude)
	if err == nil {
		return assignment, nil
	}
	slog.Warn("backend color request failed, picking locally", "error", err)
	return c.fallback.RequestColor(ctx, localUser, exclude)
}

type fallbackHistory struct {
	primary  domain.HistoryLister
	fallback domain.HistoryLister
}

func (h fallbackHistory) ListCompletedCollages(ctx context.Context, userID string, filter domain.HistoryFilter) ([]domain.CompletedCollage, bool, error) {
	collages, hasMore, err := h.primary.ListCompletedCollages(ctx, userID, filter)
	if err == nil {
		return collages, hasMore, nil
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return nil, false, err
	}
	slog.Warn("backend history unavailable, listing local sessions", "error", err)
	return h.fallback.ListCompletedCollages(ctx, userID, filter)
}
