package snakesladders

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamehost/internal/engine"
	"gamehost/internal/rng"
)

func player(slot engine.Slot) *engine.Player {
	return &engine.Player{Name: string(slot), ID: string(slot), Slot: slot}
}

func stateAt(t *testing.T, positions map[engine.Slot]int) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(&State{Positions: positions})
	require.NoError(t, err)
	return raw
}

// jump applies the board's snake/ladder remap for a landing square.
func jump(square int) int {
	if to, ok := snakes[square]; ok {
		return to
	}
	if to, ok := ladders[square]; ok {
		return to
	}
	return square
}

func TestInitStartsEveryoneOffBoard(t *testing.T) {
	g := Game{}
	raw, err := g.Init(engine.Env{}, []*engine.Player{player("p1"), player("p2")})
	require.NoError(t, err)

	st, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, map[engine.Slot]int{"p1": 0, "p2": 0}, st.Positions)
}

func TestActMovesByRollAndAppliesJumps(t *testing.T) {
	g := Game{}
	starts := []int{0, 3, 27, 31, 47, 60, 79}

	for _, start := range starts {
		for seed := uint32(0); seed < 10; seed++ {
			env := engine.Env{RNG: rng.New(seed)}
			res, err := g.Act(env, stateAt(t, map[engine.Slot]int{"p1": start}), player("p1"), "")
			require.NoError(t, err)

			var ctx rollLog
			require.NoError(t, json.Unmarshal(res.LogCtx, &ctx))
			require.GreaterOrEqual(t, ctx.Roll, 1)
			require.LessOrEqual(t, ctx.Roll, 6)

			st, err := decode(res.State)
			require.NoError(t, err)
			assert.Equal(t, jump(start+ctx.Roll), st.Positions["p1"],
				"start %d roll %d", start, ctx.Roll)
			assert.Equal(t, ctx.Roll, st.LastRoll)
		}
	}
}

func TestActNearTheFinishWinsOrHolds(t *testing.T) {
	g := Game{}
	wins, holds := 0, 0

	// from 99 only a 1 finishes; anything higher overshoots and the pawn
	// stays put
	for seed := uint32(0); seed < 50; seed++ {
		env := engine.Env{RNG: rng.New(seed)}
		res, err := g.Act(env, stateAt(t, map[engine.Slot]int{"p1": 99}), player("p1"), "")
		require.NoError(t, err)

		st, err := decode(res.State)
		require.NoError(t, err)

		var ctx rollLog
		require.NoError(t, json.Unmarshal(res.LogCtx, &ctx))

		if ctx.Roll == 1 {
			wins++
			require.NotNil(t, res.Outcome)
			assert.Equal(t, engine.OutcomeWin, res.Outcome.Type)
			assert.Equal(t, engine.Slot("p1"), res.Outcome.Winner)
			assert.Equal(t, winSquare, st.Positions["p1"])
		} else {
			holds++
			assert.Nil(t, res.Outcome)
			assert.Equal(t, 99, st.Positions["p1"], "overshoot keeps the pawn in place")
			assert.Contains(t, res.Note, "needed")
		}
	}
	assert.Positive(t, wins)
	assert.Positive(t, holds)
}

func TestActDeterministicForSameSeed(t *testing.T) {
	g := Game{}
	raw := stateAt(t, map[engine.Slot]int{"p1": 10, "p2": 20})

	a, err := g.Act(engine.Env{RNG: rng.New(42)}, raw, player("p1"), "")
	require.NoError(t, err)
	b, err := g.Act(engine.Env{RNG: rng.New(42)}, raw, player("p1"), "")
	require.NoError(t, err)

	assert.Equal(t, string(a.State), string(b.State))
	assert.Equal(t, string(a.LogCtx), string(b.LogCtx))
}

func TestRenderMarksViewer(t *testing.T) {
	g := Game{}
	raw := stateAt(t, map[engine.Slot]int{"p1": 5, "p2": 38})

	html, err := g.Render(raw, "p1")
	require.NoError(t, err)
	assert.Contains(t, html, "p1 (you): square 5")
	assert.Contains(t, html, "p2: square 38")

	spectator, err := g.Render(raw, engine.NoSlot)
	require.NoError(t, err)
	assert.NotContains(t, spectator, "(you)")
}
