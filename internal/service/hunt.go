package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/color-hunt/internal/capture"
	"github.com/msomdec/color-hunt/internal/domain"
)

// HuntConfig fixes the shape of every session the service starts.
type HuntConfig struct {
	TargetCount int
	CaptureMode domain.CaptureMode
}

// FlushRegistrar is told about every mutation so unsaved state can be
// written out when the process is about to go away.
type FlushRegistrar interface {
	Register(session *domain.Session, photos []domain.Photo)
	MarkPersisted(photos ...domain.Photo)
	Forget(sessionID string)
}

// HuntObserver is notified after local state changes are durable. Calls
// must not block.
type HuntObserver interface {
	SessionStarted(session *domain.Session)
	PhotoCaptured(session *domain.Session, photo *domain.Photo)
	// PhotoDeleted reports a removed photo and the photos that moved down
	// one position to close the gap, with their new positions.
	PhotoDeleted(session *domain.Session, removed domain.Photo, moved []domain.Photo)
}

// CaptureTicket marks a position as pending while a capture is in flight.
type CaptureTicket struct {
	SessionID string
	Position  int
	seq       uint64
}

// HuntService owns the lifecycle of color-hunt sessions on this device:
// starting, capturing into positions, deleting with compaction, and
// completion.
type HuntService struct {
	cfg      HuntConfig
	sessions domain.SessionStore
	photos   domain.PhotoStore
	collages domain.CollageStore
	flush    FlushRegistrar
	observer HuntObserver
	now      func() time.Time

	mu    sync.Mutex
	hunts map[string]*hunt
}

// hunt is the in-memory state of one session. mu serializes every
// mutation so store writes and count updates happen as one unit.
type hunt struct {
	mu      sync.Mutex
	session domain.Session
	photos  []domain.Photo // Sorted by position, one per filled slot
	pending map[int]uint64
	seq     uint64
}

// NewHuntService creates a new HuntService. registrar and observer may be nil.
func NewHuntService(cfg HuntConfig, sessions domain.SessionStore, photos domain.PhotoStore, collages domain.CollageStore, registrar FlushRegistrar, observer HuntObserver) *HuntService {
	return &HuntService{
		cfg:      cfg,
		sessions: sessions,
		photos:   photos,
		collages: collages,
		flush:    registrar,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
		hunts:    make(map[string]*hunt),
	}
}

// Start creates a new in-progress session and makes it the active one. A
// previously active session is superseded: if it was completed its photos
// are released, otherwise it is left intact and can be resumed by ID.
func (s *HuntService) Start(ctx context.Context, color domain.Color, date string) (*domain.Session, error) {
	if err := s.validateConfig(); err != nil {
		return nil, err
	}
	if color.Name == "" {
		return nil, fmt.Errorf("%w: color is required", domain.ErrInvalidInput)
	}

	prev, err := s.sessions.GetActive(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("get active session: %w", err)
	case prev.IsCompleted():
		if err := s.release(ctx, prev.ID); err != nil {
			return nil, err
		}
	}

	return s.create(ctx, color, date)
}

// StartNew fully releases the active session, whatever its state, and then
// starts a fresh one. The released session row is kept as history.
func (s *HuntService) StartNew(ctx context.Context, color domain.Color, date string) (*domain.Session, error) {
	if err := s.validateConfig(); err != nil {
		return nil, err
	}
	prev, err := s.sessions.GetActive(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("get active session: %w", err)
	default:
		if err := s.release(ctx, prev.ID); err != nil {
			return nil, err
		}
	}
	return s.Start(ctx, color, date)
}

func (s *HuntService) validateConfig() error {
	if s.cfg.TargetCount <= 0 {
		return fmt.Errorf("%w: target count must be positive", domain.ErrInvalidInput)
	}
	if _, ok := domain.ParseCaptureMode(string(s.cfg.CaptureMode)); !ok {
		return fmt.Errorf("%w: unknown capture mode %q", domain.ErrInvalidInput, s.cfg.CaptureMode)
	}
	return nil
}

func (s *HuntService) create(ctx context.Context, color domain.Color, date string) (*domain.Session, error) {
	now := s.now()
	session := domain.Session{
		ID:          uuid.NewString(),
		Color:       color,
		Date:        date,
		Status:      domain.SessionStatusInProgress,
		TargetCount: s.cfg.TargetCount,
		CaptureMode: s.cfg.CaptureMode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Save(ctx, &session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if err := s.sessions.SetActive(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("set active session: %w", err)
	}

	h := &hunt{session: session, pending: make(map[int]uint64)}
	s.mu.Lock()
	s.hunts[session.ID] = h
	s.mu.Unlock()

	if s.flush != nil {
		s.flush.Register(&session, nil)
	}
	if s.observer != nil {
		cp := session
		s.observer.SessionStarted(&cp)
	}
	slog.Info("hunt started", "session", session.ID, "color", color.Name, "target", session.TargetCount, "mode", session.CaptureMode)
	return &session, nil
}

// release drops a session's photos and the active pointer.
func (s *HuntService) release(ctx context.Context, id string) error {
	if err := s.photos.DeleteBySession(ctx, id); err != nil {
		return fmt.Errorf("release session photos: %w", err)
	}
	if err := s.sessions.ClearActive(ctx); err != nil {
		return fmt.Errorf("clear active session: %w", err)
	}
	s.forget(id)
	slog.Info("hunt released", "session", id)
	return nil
}

// Active returns the active session, loading it from storage after a
// restart. It returns domain.ErrSessionNotFound when there is none.
func (s *HuntService) Active(ctx context.Context) (*domain.Session, error) {
	active, err := s.sessions.GetActive(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	h, err := s.load(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := h.session
	return &cp, nil
}

// Session returns a snapshot of the session.
func (s *HuntService) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := h.session
	return &cp, nil
}

// Photos returns the session's photos ordered by position.
func (s *HuntService) Photos(ctx context.Context, sessionID string) ([]domain.Photo, error) {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.photos), nil
}

// Settled returns the session and its photos once no capture is in flight.
// It returns domain.ErrCapturePending while any position is pending.
func (s *HuntService) Settled(ctx context.Context, sessionID string) (*domain.Session, []domain.Photo, error) {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) > 0 {
		return nil, nil, fmt.Errorf("%w: %d in flight", domain.ErrCapturePending, len(h.pending))
	}
	cp := h.session
	return &cp, slices.Clone(h.photos), nil
}

// load returns the cached hunt or rebuilds it from storage. Stored photos
// win over the stored count: duplicates at one position keep the newest
// record and Filled is recomputed.
func (s *HuntService) load(ctx context.Context, id string) (*hunt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hunts[id]; ok {
		return h, nil
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Error("session not found", "session", id)
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	stored, err := s.photos.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}

	photos := make([]domain.Photo, 0, len(stored))
	for _, p := range stored {
		if n := len(photos); n > 0 && photos[n-1].Position == p.Position {
			stale := photos[n-1]
			photos[n-1] = p
			if err := s.photos.Delete(ctx, stale.ID); err != nil {
				slog.Warn("failed to remove duplicate photo", "session", id, "photo", stale.ID, "error", err)
			}
			continue
		}
		photos = append(photos, p)
	}
	if session.Filled != len(photos) {
		slog.Warn("stored count disagrees with photos, using photos", "session", id, "filled", session.Filled, "photos", len(photos))
		session.Filled = len(photos)
	}

	h := &hunt{session: *session, photos: photos, pending: make(map[int]uint64)}
	s.hunts[id] = h
	if s.flush != nil {
		s.flush.Register(&h.session, h.photos)
		s.flush.MarkPersisted(h.photos...)
	}
	return h, nil
}

// checkPosition enforces the capture policy for position p.
func (h *hunt) checkPosition(p int) error {
	if h.session.IsCompleted() {
		return domain.ErrSessionCompleted
	}
	if p < 0 || p >= h.session.TargetCount {
		return fmt.Errorf("%w: %d outside [0, %d)", domain.ErrInvalidPosition, p, h.session.TargetCount)
	}
	if h.session.CaptureMode == domain.CaptureModeOrdered && p > h.session.Filled {
		return fmt.Errorf("%w: must capture position %d next", domain.ErrInvalidPosition, h.session.Filled)
	}
	return nil
}

func (h *hunt) indexOf(position int) int {
	for i, p := range h.photos {
		if p.Position == position {
			return i
		}
	}
	return -1
}

// BeginCapture marks position as pending. The returned ticket must be
// committed or cancelled.
func (s *HuntService) BeginCapture(ctx context.Context, sessionID string, position int) (*CaptureTicket, error) {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkPosition(position); err != nil {
		return nil, err
	}
	if _, ok := h.pending[position]; ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrCapturePending, position)
	}
	h.seq++
	h.pending[position] = h.seq
	return &CaptureTicket{SessionID: sessionID, Position: position, seq: h.seq}, nil
}

// CancelCapture abandons a pending capture. A late CommitCapture with the
// same ticket is discarded.
func (s *HuntService) CancelCapture(ticket *CaptureTicket) {
	s.mu.Lock()
	h, ok := s.hunts[ticket.SessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending[ticket.Position] == ticket.seq {
		delete(h.pending, ticket.Position)
	}
}

// CommitCapture stores the output of a pending capture. It returns
// domain.ErrCaptureCancelled if the ticket was cancelled or superseded.
func (s *HuntService) CommitCapture(ctx context.Context, ticket *CaptureTicket, out *capture.Output) (*domain.Photo, error) {
	h, err := s.load(ctx, ticket.SessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if seq, ok := h.pending[ticket.Position]; !ok || seq != ticket.seq {
		slog.Info("discarding cancelled capture", "session", ticket.SessionID, "position", ticket.Position)
		return nil, domain.ErrCaptureCancelled
	}
	delete(h.pending, ticket.Position)
	return s.store(ctx, h, ticket.Position, out)
}

// Capture stores out at position. A filled position is retaken: the old
// record is replaced and Filled is unchanged.
func (s *HuntService) Capture(ctx context.Context, sessionID string, position int, out *capture.Output) (*domain.Photo, error) {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.pending[position]; ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrCapturePending, position)
	}
	return s.store(ctx, h, position, out)
}

// store runs with h.mu held.
func (s *HuntService) store(ctx context.Context, h *hunt, position int, out *capture.Output) (*domain.Photo, error) {
	if err := h.checkPosition(position); err != nil {
		return nil, err
	}
	if out == nil || len(out.Full) == 0 || len(out.Thumbnail) == 0 {
		return nil, fmt.Errorf("%w: empty capture", domain.ErrInvalidInput)
	}

	now := s.now()
	photo := domain.Photo{
		ID:        uuid.NewString(),
		SessionID: h.session.ID,
		Position:  position,
		Image:     out.Full,
		Thumbnail: out.Thumbnail,
		CreatedAt: now,
	}

	// The count only moves once the photo is durable.
	if err := s.photos.Put(ctx, &photo); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	if i := h.indexOf(position); i >= 0 {
		old := h.photos[i]
		h.photos[i] = photo
		if err := s.photos.Delete(ctx, old.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("failed to remove retaken photo", "session", h.session.ID, "photo", old.ID, "error", err)
		}
	} else {
		h.photos = append(h.photos, photo)
		slices.SortFunc(h.photos, func(a, b domain.Photo) int { return a.Position - b.Position })
		h.session.Filled++
	}
	h.session.UpdatedAt = now

	s.persistSession(ctx, h)
	if s.flush != nil {
		s.flush.MarkPersisted(photo)
	}
	if s.observer != nil {
		cp := h.session
		s.observer.PhotoCaptured(&cp, &photo)
	}

	slog.Debug("photo captured", "session", h.session.ID, "position", position, "filled", h.session.Filled)
	return &photo, nil
}

// persistSession registers the current state for flushing and saves the
// session. A failed save is left to the flush; the photos are already durable.
func (s *HuntService) persistSession(ctx context.Context, h *hunt) {
	if s.flush != nil {
		s.flush.Register(&h.session, h.photos)
	}
	if err := s.sessions.Save(ctx, &h.session); err != nil {
		slog.Warn("session save failed, deferring to flush", "session", h.session.ID, "error", err)
	}
}

// DeletePhoto removes the photo at position and shifts every later photo
// down by one so positions stay dense.
func (s *HuntService) DeletePhoto(ctx context.Context, sessionID string, position int) error {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session.IsCompleted() {
		return domain.ErrSessionCompleted
	}
	if _, ok := h.pending[position]; ok {
		return fmt.Errorf("%w: %d", domain.ErrCapturePending, position)
	}
	i := h.indexOf(position)
	if i < 0 {
		slog.Error("delete of empty position", "session", sessionID, "position", position)
		return fmt.Errorf("%w: no photo at %d", domain.ErrInvalidPosition, position)
	}

	if err := s.photos.Delete(ctx, h.photos[i].ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete photo: %w", err)
	}
	removed := h.photos[i]
	h.photos = slices.Delete(h.photos, i, i+1)
	h.session.Filled--

	var shifted, written []domain.Photo
	for j := range h.photos {
		p := &h.photos[j]
		if p.Position <= position {
			continue
		}
		p.Position--
		shifted = append(shifted, *p)
		if err := s.photos.SetPosition(ctx, p.ID, p.Position); err != nil {
			// The flush rewrites photos whose stored position is stale.
			slog.Warn("compaction write failed, deferring to flush", "session", sessionID, "photo", p.ID, "error", err)
			continue
		}
		written = append(written, *p)
	}
	h.session.UpdatedAt = s.now()

	s.persistSession(ctx, h)
	if s.flush != nil {
		s.flush.MarkPersisted(written...)
	}
	if s.observer != nil {
		cp := h.session
		s.observer.PhotoDeleted(&cp, removed, shifted)
	}
	slog.Debug("photo deleted", "session", sessionID, "position", position, "filled", h.session.Filled)
	return nil
}

// Complete finalizes the session with its collage. It is only allowed once
// every position is filled and no capture is pending.
func (s *HuntService) Complete(ctx context.Context, sessionID string, collage []byte) (*domain.Session, error) {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session.IsCompleted() {
		return nil, domain.ErrSessionCompleted
	}
	if h.session.Filled < h.session.TargetCount {
		return nil, fmt.Errorf("%w: %d of %d photos", domain.ErrIncomplete, h.session.Filled, h.session.TargetCount)
	}
	if len(h.pending) > 0 {
		return nil, domain.ErrCapturePending
	}
	if len(collage) == 0 {
		return nil, fmt.Errorf("%w: empty collage", domain.ErrInvalidInput)
	}

	if err := s.collages.Save(ctx, sessionID, collage); err != nil {
		return nil, fmt.Errorf("save collage: %w", err)
	}

	completed := h.session
	now := s.now()
	completed.Status = domain.SessionStatusCompleted
	completed.CompletedAt = &now
	completed.UpdatedAt = now
	if err := s.sessions.Save(ctx, &completed); err != nil {
		return nil, fmt.Errorf("save completed session: %w", err)
	}
	h.session = completed
	if s.flush != nil {
		s.flush.Register(&h.session, h.photos)
	}

	slog.Info("hunt completed", "session", sessionID, "color", completed.Color.Name)
	cp := completed
	return &cp, nil
}

// Collage returns the finalized collage of a completed session.
func (s *HuntService) Collage(ctx context.Context, sessionID string) ([]byte, error) {
	return s.collages.Get(ctx, sessionID)
}

// Release drops the photos of a completed session and clears the active
// pointer if it points at it.
func (s *HuntService) Release(ctx context.Context, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("get session: %w", err)
	}
	if !session.IsCompleted() {
		return fmt.Errorf("%w: session is still in progress", domain.ErrInvalidInput)
	}
	if err := s.photos.DeleteBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("release session photos: %w", err)
	}
	if active, err := s.sessions.GetActive(ctx); err == nil && active.ID == sessionID {
		if err := s.sessions.ClearActive(ctx); err != nil {
			return fmt.Errorf("clear active session: %w", err)
		}
	}
	s.forget(sessionID)
	return nil
}

// Abandon deletes a session and everything stored for it.
func (s *HuntService) Abandon(ctx context.Context, sessionID string) error {
	if err := s.photos.DeleteBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete photos: %w", err)
	}
	if err := s.collages.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete collage: %w", err)
	}
	if active, err := s.sessions.GetActive(ctx); err == nil && active.ID == sessionID {
		if err := s.sessions.ClearActive(ctx); err != nil {
			return fmt.Errorf("clear active session: %w", err)
		}
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	s.forget(sessionID)
	slog.Info("hunt abandoned", "session", sessionID)
	return nil
}

// forget drops the cached hunt and any unflushed snapshot of it.
func (s *HuntService) forget(id string) {
	s.mu.Lock()
	delete(s.hunts, id)
	s.mu.Unlock()
	if s.flush != nil {
		s.flush.Forget(id)
	}
}

// Progress summarizes how far a session has come.
type Progress struct {
	Filled      int
	Target      int
	Percent     int
	Next        int // Lowest empty position, -1 when full
	CanComplete bool
}

// ProgressOf computes progress from a session and its photos.
func ProgressOf(session *domain.Session, photos []domain.Photo) Progress {
	p := Progress{
		Filled: session.Filled,
		Target: session.TargetCount,
		Next:   NextPosition(session.TargetCount, photos),
	}
	if session.TargetCount > 0 {
		p.Percent = session.Filled * 100 / session.TargetCount
	}
	p.CanComplete = !session.IsCompleted() && session.Filled == session.TargetCount
	return p
}

// NextPosition returns the lowest position in [0, target) with no photo, or
// -1 if every position is filled.
func NextPosition(target int, photos []domain.Photo) int {
	filled := make(map[int]bool, len(photos))
	for _, p := range photos {
		filled[p.Position] = true
	}
	for i := 0; i < target; i++ {
		if !filled[i] {
			return i
		}
	}
	return -1
}

// Progress returns the progress of a session.
func (s *HuntService) Progress(ctx context.Context, sessionID string) (Progress, error) {
	h, err := s.load(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return ProgressOf(&h.session, h.photos), nil
}
