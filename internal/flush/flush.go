// Package flush writes unsaved session state to the local store before the
// process is suspended or torn down.
package flush

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"sync"
	"syscall"

	"github.com/msomdec/color-hunt/internal/domain"
)

// Event is a host lifecycle signal.
type Event int

const (
	EventVisible Event = iota
	EventHidden
	EventPageHide
	EventUnload
)

func (e Event) String() string {
	switch e {
	case EventVisible:
		return "visible"
	case EventHidden:
		return "hidden"
	case EventPageHide:
		return "pagehide"
	case EventUnload:
		return "unload"
	}
	return "unknown"
}

// Report describes what one Flush wrote.
type Report struct {
	SessionSaved  bool
	PhotosWritten int
	Failures      int
}

// Coordinator holds a snapshot of the current session and its photos and
// writes whatever the store has not confirmed.
type Coordinator struct {
	sessions domain.SessionStore
	photos   domain.PhotoStore

	mu        sync.Mutex
	session   *domain.Session
	snapshot  []domain.Photo
	persisted map[string]int // Photo ID → position confirmed in the store
}

// NewCoordinator creates a Coordinator writing to the given stores.
func NewCoordinator(sessions domain.SessionStore, photos domain.PhotoStore) *Coordinator {
	return &Coordinator{
		sessions:  sessions,
		photos:    photos,
		persisted: make(map[string]int),
	}
}

// Register replaces the snapshot. Both arguments are copied. Registering a
// different session drops what was known about the previous one.
func (c *Coordinator) Register(session *domain.Session, photos []domain.Photo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session == nil {
		c.session, c.snapshot = nil, nil
		clear(c.persisted)
		return
	}
	if c.session != nil && c.session.ID != session.ID {
		clear(c.persisted)
	}
	cp := *session
	c.session = &cp
	c.snapshot = slices.Clone(photos)
}

// Forget drops the snapshot if it belongs to sessionID. It is called when
// the session is deleted or released so a later Flush cannot write it back.
func (c *Coordinator) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.ID != sessionID {
		return
	}
	c.session, c.snapshot = nil, nil
	clear(c.persisted)
}

// MarkPersisted records that the store holds each photo at its position.
func (c *Coordinator) MarkPersisted(photos ...domain.Photo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range photos {
		c.persisted[p.ID] = p.Position
	}
}

// Pending returns the number of snapshot photos not confirmed in the store.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.unconfirmed())
}

func (c *Coordinator) unconfirmed() []domain.Photo {
	var out []domain.Photo
	for _, p := range c.snapshot {
		if pos, ok := c.persisted[p.ID]; !ok || pos != p.Position {
			out = append(out, p)
		}
	}
	return out
}

// Flush writes the session record and then every unconfirmed photo. It is
// idempotent and never fails: write errors are logged and counted.
func (c *Coordinator) Flush(ctx context.Context) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	var report Report
	if c.session == nil {
		return report
	}

	session := *c.session
	if err := c.sessions.Save(ctx, &session); err != nil {
		slog.Error("flush session failed", "session", session.ID, "error", err)
		report.Failures++
	} else {
		report.SessionSaved = true
	}

	for _, p := range c.unconfirmed() {
		photo := p
		if err := c.photos.Put(ctx, &photo); err != nil {
			slog.Error("flush photo failed", "session", session.ID, "photo", p.ID, "position", p.Position, "error", err)
			report.Failures++
			continue
		}
		c.persisted[p.ID] = p.Position
		report.PhotosWritten++
	}

	slog.Debug("flush complete", "session", session.ID, "photos", report.PhotosWritten, "failures", report.Failures)
	return report
}

// HandleEvent flushes synchronously for every event that may precede
// suspension or teardown. The flush has finished when it returns.
func (c *Coordinator) HandleEvent(ctx context.Context, ev Event) Report {
	if ev == EventVisible {
		return Report{}
	}
	slog.Debug("lifecycle event", "event", ev.String())
	return c.Flush(ctx)
}

// EventForSignal maps process signals to lifecycle events.
func EventForSignal(sig os.Signal) Event {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP:
		return EventUnload
	}
	return EventVisible
}

// Watch handles signals until ctx is done or signals is closed. Each
// signal is handled before the next is read.
func (c *Coordinator) Watch(ctx context.Context, signals <-chan os.Signal, onUnload func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			ev := EventForSignal(sig)
			c.HandleEvent(context.WithoutCancel(ctx), ev)
			if ev == EventUnload && onUnload != nil {
				onUnload()
			}
		}
	}
}
