package engine

import (
	"sync"
	"time"
)

// TimerKind distinguishes the soft reminder from the hard deadline.
type TimerKind string

const (
	TimerPoke    TimerKind = "poke"
	TimerForfeit TimerKind = "forfeit"
)

// TimerFire is delivered to the controller's callback when a timer expires.
// Seq is the session's accepted-action sequence observed at scheduling time;
// the callback must treat a fire whose Seq no longer matches as stale and do
// nothing.
type TimerFire struct {
	SessionID string
	Kind      TimerKind
	Seq       uint64
}

// TimerController owns per-session wall-clock deadlines. At most one timer
// of each kind is outstanding per session; scheduling replaces any existing
// timer of the same kind. Callbacks run on the timer goroutine and must
// acquire the session's own serialization point before touching state.
type TimerController struct {
	mu     sync.Mutex
	fire   func(TimerFire)
	timers map[string]map[TimerKind]*time.Timer
}

// NewTimerController creates a controller delivering fires to fn.
func NewTimerController(fn func(TimerFire)) *TimerController {
	return &TimerController{
		fire:   fn,
		timers: make(map[string]map[TimerKind]*time.Timer),
	}
}

// Schedule arms (or replaces) the timer of the given kind for a session.
func (c *TimerController) Schedule(sessionID string, kind TimerKind, after time.Duration, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byKind := c.timers[sessionID]
	if byKind == nil {
		byKind = make(map[TimerKind]*time.Timer)
		c.timers[sessionID] = byKind
	}
	if prev := byKind[kind]; prev != nil {
		prev.Stop()
	}
	byKind[kind] = time.AfterFunc(after, func() {
		c.clear(sessionID, kind)
		c.fire(TimerFire{SessionID: sessionID, Kind: kind, Seq: seq})
	})
}

// SchedulePoke arms the soft reminder.
func (c *TimerController) SchedulePoke(sessionID string, after time.Duration, seq uint64) {
	c.Schedule(sessionID, TimerPoke, after, seq)
}

// ScheduleForfeit arms the hard deadline.
func (c *TimerController) ScheduleForfeit(sessionID string, after time.Duration, seq uint64) {
	c.Schedule(sessionID, TimerForfeit, after, seq)
}

// CancelAll stops every outstanding timer for a session.
func (c *TimerController) CancelAll(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers[sessionID] {
		t.Stop()
	}
	delete(c.timers, sessionID)
}

func (c *TimerController) clear(sessionID string, kind TimerKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if byKind := c.timers[sessionID]; byKind != nil {
		delete(byKind, kind)
		if len(byKind) == 0 {
			delete(c.timers, sessionID)
		}
	}
}
