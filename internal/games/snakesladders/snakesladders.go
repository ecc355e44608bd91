// Package snakesladders implements the Snakes & Ladders rulebook. All
// movement comes from the session's seeded die, so a restored game replays
// the same rolls.
package snakesladders

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gamehost/internal/engine"
)

const winSquare = 100

// Board jumps, keyed by the square landed on.
var (
	ladders = map[int]int{1: 38, 4: 14, 8: 30, 21: 42, 28: 76, 50: 67, 71: 92, 80: 99}
	snakes  = map[int]int{32: 10, 36: 6, 48: 26, 62: 18, 88: 24, 95: 56, 97: 78}
)

// Game implements engine.Rulebook.
type Game struct{}

func (Game) Meta() engine.Meta {
	return engine.Meta{
		ID:         "snakesladders",
		Name:       "Snakes & Ladders",
		Aliases:    []string{"snakes", "snl"},
		MinPlayers: 2,
		MaxPlayers: 8,
	}
}

// State maps each slot to its square (0 = not yet on the board).
type State struct {
	Positions map[engine.Slot]int `json:"positions"`
	LastRoll  int                 `json:"lastRoll"`
}

func decode(raw json.RawMessage) (*State, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("snakesladders state: %w", err)
	}
	return &st, nil
}

func (Game) Init(env engine.Env, players []*engine.Player) (json.RawMessage, error) {
	st := &State{Positions: make(map[engine.Slot]int)}
	for _, p := range players {
		st.Positions[p.Slot] = 0
	}
	return json.Marshal(st)
}

type rollLog struct {
	Roll int `json:"roll"`
	From int `json:"from"`
	To   int `json:"to"`
}

// Act ignores the payload: a turn is always one roll of the die.
func (g Game) Act(env engine.Env, raw json.RawMessage, player *engine.Player, payload string) (engine.Result, error) {
	st, err := decode(raw)
	if err != nil {
		return engine.Result{}, err
	}

	current := st.Positions[player.Slot]
	roll := 1 + env.RNG.Intn(6)
	st.LastRoll = roll

	res := engine.Result{}
	final := current

	if current+roll > winSquare {
		res.Note = fmt.Sprintf("%s rolled a %d, but needed %d or lower to finish.", player.Name, roll, winSquare-current)
	} else {
		final = current + roll
		note := fmt.Sprintf("%s rolled a %d and moved to %d", player.Name, roll, final)
		if to, ok := snakes[final]; ok {
			final = to
			note += fmt.Sprintf("... a snake! Down to %d", final)
		} else if to, ok := ladders[final]; ok {
			final = to
			note += fmt.Sprintf("... a ladder! Up to %d", final)
		}
		res.Note = note + "."
		st.Positions[player.Slot] = final
	}

	if final == winSquare {
		res.Outcome = &engine.Outcome{Type: engine.OutcomeWin, Winner: player.Slot}
	}

	res.State, err = json.Marshal(st)
	if err != nil {
		return engine.Result{}, err
	}
	ctx, _ := json.Marshal(rollLog{Roll: roll, From: current, To: final})
	res.LogCtx = ctx
	return res, nil
}

func (Game) CanEnd(env engine.Env, raw json.RawMessage) bool {
	return true
}

func (Game) OnLeave(env engine.Env, raw json.RawMessage, player *engine.Player) (json.RawMessage, engine.LeavePolicy, error) {
	return raw, engine.LeaveContinue, nil
}

func (Game) OnReplace(env engine.Env, raw json.RawMessage, slot engine.Slot, newPlayer *engine.Player) (json.RawMessage, error) {
	return raw, nil
}

// Render shows every pawn's square; nothing is hidden from spectators.
func (Game) Render(raw json.RawMessage, viewer engine.Slot) (string, error) {
	st, err := decode(raw)
	if err != nil {
		return "", err
	}
	slots := make([]engine.Slot, 0, len(st.Positions))
	for s := range st.Positions {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	var b strings.Builder
	b.WriteString("<div>")
	if st.LastRoll > 0 {
		fmt.Fprintf(&b, "<p>Last roll: %d</p>", st.LastRoll)
	}
	b.WriteString("<ul>")
	for _, s := range slots {
		marker := ""
		if s == viewer {
			marker = " (you)"
		}
		fmt.Fprintf(&b, "<li>%s%s: square %d</li>", s, marker, st.Positions[s])
	}
	b.WriteString("</ul></div>")
	return b.String(), nil
}
