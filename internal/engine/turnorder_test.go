package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnOrderAdvanceWraps(t *testing.T) {
	o := NewTurnOrder("P1", "P2", "P3")

	assert.Equal(t, Slot("P1"), o.Current())
	assert.Equal(t, Slot("P2"), o.Advance())
	assert.Equal(t, Slot("P3"), o.Advance())
	assert.Equal(t, Slot("P1"), o.Advance())
}

func TestTurnOrderSkipsEliminated(t *testing.T) {
	o := NewTurnOrder("P1", "P2", "P3")
	o.Eliminate("P2")

	assert.Equal(t, Slot("P3"), o.Advance())
	assert.Equal(t, Slot("P1"), o.Advance())
	assert.Equal(t, []Slot{"P1", "P3"}, o.Playable())
}

func TestTurnOrderEliminateCurrentAdvances(t *testing.T) {
	o := NewTurnOrder("P1", "P2", "P3")
	o.Eliminate("P1")

	assert.Equal(t, Slot("P2"), o.Current())
}

func TestTurnOrderAllEliminated(t *testing.T) {
	o := NewTurnOrder("P1", "P2")
	o.Eliminate("P1")
	o.Eliminate("P2")

	assert.Equal(t, NoSlot, o.Current())
	assert.Equal(t, NoSlot, o.Advance())
	assert.Empty(t, o.Playable())
	assert.Equal(t, NoSlot, o.LastPlayable())
}

func TestTurnOrderLastPlayable(t *testing.T) {
	o := NewTurnOrder("P1", "P2", "P3")

	assert.Equal(t, Slot("P3"), o.LastPlayable())
	o.Eliminate("P3")
	assert.Equal(t, Slot("P2"), o.LastPlayable())
}
