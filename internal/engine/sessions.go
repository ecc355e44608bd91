package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamehost/internal/backup"
)

// SessionRegistry tracks all live sessions in the process and owns the
// cross-session flows: creation, lookup, restore-on-room-join, the retention
// sweep, and the shutdown manifest. It is passed by reference wherever
// cross-session lookup is needed; there is no ambient global state.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *Registry
	deps     Deps
	logger   *zap.Logger
}

// NewSessionRegistry wires a registry of rulebooks to the shared stores and
// room channel. The timer controller is created here so fires dispatch back
// through the registry to the owning session.
func NewSessionRegistry(registry *Registry, deps Deps) *SessionRegistry {
	r := &SessionRegistry{
		sessions: make(map[string]*Session),
		registry: registry,
		logger:   deps.Logger,
	}
	deps.Timers = NewTimerController(r.dispatchTimer)
	r.deps = deps
	return r
}

// Timers exposes the controller, mainly for shutdown and tests.
func (r *SessionRegistry) Timers() *TimerController {
	return r.deps.Timers
}

// Create makes a new session for a room.
func (r *SessionRegistry) Create(gameType, roomID string) (*Session, error) {
	book, ok := r.registry.Get(gameType)
	if !ok {
		return nil, Rejectf("unknown game type: %s", gameType)
	}
	id, err := r.deps.Backups.NextID()
	if err != nil {
		return nil, err
	}
	s := NewSession(id, roomID, book, r.deps)
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns a live session by code.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// All returns every live session.
func (r *SessionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// FindSeated returns the session in a room where the user holds a seat.
func (r *SessionRegistry) FindSeated(roomID, userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Room() == roomID && s.Seated(userID) {
			return s, true
		}
	}
	return nil, false
}

// Remove evicts a session from live memory. Its backup stays for the
// retention window.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	r.deps.Timers.CancelAll(id)
}

func (r *SessionRegistry) dispatchTimer(fire TimerFire) {
	s, ok := r.Get(fire.SessionID)
	if !ok {
		return
	}
	s.HandleTimer(fire)
}

// Restore rebuilds the sessions the shutdown manifest lists for a room.
// Corrupt entries (missing backup, room mismatch, unknown game type, bad
// snapshot) are logged and dropped rather than blocking the room's other
// sessions.
func (r *SessionRegistry) Restore(roomID string) int {
	entries, err := r.deps.Backups.LoadManifest()
	if err != nil {
		r.logger.Error("load open-games manifest", zap.Error(err))
		return 0
	}

	restored := 0
	for _, e := range entries {
		if e.Room != roomID {
			continue
		}
		if err := r.restoreOne(e); err != nil {
			r.logger.Warn("dropping unrestorable session",
				zap.String("session", e.ID),
				zap.String("room", e.Room),
				zap.String("game", e.Game),
				zap.Error(err))
		} else {
			restored++
		}
		if err := r.deps.Backups.RemoveManifestEntry(e.ID); err != nil {
			r.logger.Error("clear manifest entry", zap.String("session", e.ID), zap.Error(err))
		}
	}
	return restored
}

func (r *SessionRegistry) restoreOne(e backup.ManifestEntry) error {
	book, ok := r.registry.Get(e.Game)
	if !ok {
		return errors.New("unknown game type")
	}
	rec, err := r.deps.Backups.Get(e.ID)
	if err != nil {
		return err
	}
	if rec.Room != e.Room {
		return errors.New("backup room mismatch")
	}
	s, err := RestoreSession(e.ID, e.Room, book, r.deps, rec.State)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sessions[e.ID] = s
	r.mu.Unlock()
	return nil
}

// Sweep evicts ended sessions from live memory and purges backups older
// than the retention window, sparing any session still tracked as live.
func (r *SessionRegistry) Sweep(retention time.Duration) {
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.Phase() == PhaseEnded {
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	purged, err := r.deps.Backups.DeleteOlderThan(cutoff, func(id string) bool {
		_, live := r.Get(id)
		return live
	})
	if err != nil {
		r.logger.Error("retention sweep", zap.Error(err))
		return
	}
	if purged > 0 {
		r.logger.Info("purged stale backups", zap.Int("count", purged))
	}
}

// SweepLoop runs Sweep on a ticker until ctx is cancelled.
func (r *SessionRegistry) SweepLoop(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(retention)
		}
	}
}

// Shutdown writes the open-games manifest and cancels outstanding timers.
// It must complete before process exit is requested so the next startup's
// room-join handler can trigger restore.
func (r *SessionRegistry) Shutdown() error {
	r.mu.RLock()
	entries := make([]backup.ManifestEntry, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Phase() == PhaseEnded {
			continue
		}
		entries = append(entries, backup.ManifestEntry{ID: s.ID(), Room: s.Room(), Game: s.GameType()})
	}
	r.mu.RUnlock()

	if err := r.deps.Backups.SaveManifest(entries); err != nil {
		return err
	}
	for _, e := range entries {
		r.deps.Timers.CancelAll(e.ID)
	}
	r.logger.Info("open-games manifest written", zap.Int("sessions", len(entries)))
	return nil
}
