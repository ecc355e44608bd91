// Package connectfour implements the Connect Four rulebook: a 7x6 grid,
// gravity drops, four-in-a-row wins.
package connectfour

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gamehost/internal/engine"
)

const (
	cols = 7
	rows = 6
)

// Game implements engine.Rulebook.
type Game struct{}

func (Game) Meta() engine.Meta {
	return engine.Meta{
		ID:         "connectfour",
		Name:       "Connect Four",
		Aliases:    []string{"c4", "connect4"},
		MinPlayers: 2,
		MaxPlayers: 2,
		Sides:      []engine.Slot{"R", "Y"},
	}
}

// State is the rulebook's serialized game state. Cells hold the owning slot
// or "" when empty; row 0 is the top.
type State struct {
	Board  [rows][cols]engine.Slot `json:"board"`
	Filled int                     `json:"filled"`
}

func decode(raw json.RawMessage) (*State, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("connectfour state: %w", err)
	}
	return &st, nil
}

func (st *State) encode() (json.RawMessage, error) {
	return json.Marshal(st)
}

func (Game) Init(env engine.Env, players []*engine.Player) (json.RawMessage, error) {
	st := &State{}
	return st.encode()
}

type moveLog struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Act accepts "drop <column>" or a bare 1-based column number.
func (g Game) Act(env engine.Env, raw json.RawMessage, player *engine.Player, payload string) (engine.Result, error) {
	st, err := decode(raw)
	if err != nil {
		return engine.Result{}, err
	}

	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(payload), "drop"))
	col, err := strconv.Atoi(arg)
	if err != nil {
		return engine.Result{}, engine.Rejectf("%q is not a column; play 1-%d", payload, cols)
	}
	if col < 1 || col > cols {
		return engine.Result{}, engine.Rejectf("column %d is out of range; play 1-%d", col, cols)
	}
	c := col - 1

	r := -1
	for i := rows - 1; i >= 0; i-- {
		if st.Board[i][c] == "" {
			r = i
			break
		}
	}
	if r == -1 {
		return engine.Result{}, engine.Rejectf("column %d is full", col)
	}

	st.Board[r][c] = player.Slot
	st.Filled++

	res := engine.Result{}
	if winsAt(st, r, c, player.Slot) {
		res.Outcome = &engine.Outcome{Type: engine.OutcomeWin, Winner: player.Slot}
	} else if st.Filled == rows*cols {
		res.Outcome = &engine.Outcome{Type: engine.OutcomeDraw}
	}

	res.State, err = st.encode()
	if err != nil {
		return engine.Result{}, err
	}
	ctx, _ := json.Marshal(moveLog{Col: col, Row: r})
	res.LogCtx = ctx
	return res, nil
}

var directions = [4][2]int{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal down-right
	{1, -1}, // diagonal down-left
}

func winsAt(st *State, r, c int, slot engine.Slot) bool {
	for _, d := range directions {
		count := 1
		for _, sign := range []int{1, -1} {
			for i := 1; i < 4; i++ {
				rr, cc := r+d[0]*i*sign, c+d[1]*i*sign
				if rr < 0 || rr >= rows || cc < 0 || cc >= cols || st.Board[rr][cc] != slot {
					break
				}
				count++
			}
		}
		if count >= 4 {
			return true
		}
	}
	return false
}

func (Game) CanEnd(env engine.Env, raw json.RawMessage) bool {
	// a two-player game is always decidable by attrition
	return true
}

func (Game) OnLeave(env engine.Env, raw json.RawMessage, player *engine.Player) (json.RawMessage, engine.LeavePolicy, error) {
	return raw, engine.LeaveContinue, nil
}

func (Game) OnReplace(env engine.Env, raw json.RawMessage, slot engine.Slot, newPlayer *engine.Player) (json.RawMessage, error) {
	// board cells are keyed by slot; nothing to rebind
	return raw, nil
}

var cellColors = map[engine.Slot]string{"R": "#d22", "Y": "#dc1"}

// Render projects the board for any viewer. Connect Four has no hidden
// information, so players and spectators see the same grid.
func (Game) Render(raw json.RawMessage, viewer engine.Slot) (string, error) {
	st, err := decode(raw)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(`<table style="border-collapse:collapse;background:#14c">`)
	for r := 0; r < rows; r++ {
		b.WriteString("<tr>")
		for c := 0; c < cols; c++ {
			color := "#fff"
			if owner := st.Board[r][c]; owner != "" {
				color = cellColors[owner]
			}
			fmt.Fprintf(&b, `<td style="width:32px;height:32px"><div style="width:28px;height:28px;border-radius:50%%;background:%s"></div></td>`, color)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String(), nil
}
