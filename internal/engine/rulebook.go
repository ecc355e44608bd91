package engine

import (
	"encoding/json"
	"time"

	"gamehost/internal/rng"
)

// Meta describes a game type for the registry and signup flow.
type Meta struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Aliases    []string      `json:"aliases,omitempty"`
	MinPlayers int           `json:"minPlayers"`
	MaxPlayers int           `json:"maxPlayers"`
	Sides      []Slot        `json:"sides,omitempty"` // fixed side labels; nil means numbered seats
	PokeAfter  time.Duration `json:"-"`               // 0 means engine default
	Forfeit    time.Duration `json:"-"`
}

// Env gives a rulebook read access to the session facilities it may need:
// the session's seeded generator, the roster, and the turn order. Rulebooks
// must not mutate the roster or turn order.
type Env struct {
	RNG    *rng.RNG
	Roster *Roster
	Turns  *TurnOrder
}

// OutcomeType classifies how a session ended.
type OutcomeType string

const (
	OutcomeWin    OutcomeType = "win"
	OutcomeDraw   OutcomeType = "draw"
	OutcomeDQ     OutcomeType = "dq"
	OutcomeKilled OutcomeType = "killed"
)

// Outcome is the terminal record of a session.
type Outcome struct {
	Type   OutcomeType     `json:"type"`
	Winner Slot            `json:"winner,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Result is what a rulebook's Act returns on success.
type Result struct {
	State    json.RawMessage // replacement state blob
	Outcome  *Outcome        // non-nil ends the session
	HoldTurn bool            // keep the same player's turn (e.g. pending discard)
	LogCtx   json.RawMessage // opaque per-rulebook move context for the log
	Note     string          // optional text pushed to the room
}

// LeavePolicy is a rulebook's verdict when a seated player leaves an active
// session.
type LeavePolicy int

const (
	// LeaveContinue keeps the session going with the leaver's slot skipped.
	LeaveContinue LeavePolicy = iota
	// LeaveEnd forces resolution now (e.g. the game was already decidable).
	LeaveEnd
)

// Rulebook is the pluggable per-game strategy. Act is a pure function of
// (state, player, payload): on error the engine keeps the previous state
// untouched; on success it replaces the state with Result.State. Render is
// a pure projection of (state, viewer) with no side effects, so the same
// state can be rendered repeatedly for any number of viewers. A NoSlot
// viewer is a spectator and must never be shown hidden information.
type Rulebook interface {
	Meta() Meta
	Init(env Env, players []*Player) (json.RawMessage, error)
	Act(env Env, state json.RawMessage, player *Player, payload string) (Result, error)
	Render(state json.RawMessage, viewer Slot) (string, error)
	CanEnd(env Env, state json.RawMessage) bool
	// OnLeave adjusts state after a player is marked out and reports whether
	// the session should resolve now.
	OnLeave(env Env, state json.RawMessage, player *Player) (json.RawMessage, LeavePolicy, error)
	// OnReplace rebinds per-slot state to a new seat occupant.
	OnReplace(env Env, state json.RawMessage, slot Slot, newPlayer *Player) (json.RawMessage, error)
}
