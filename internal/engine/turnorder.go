package engine

// Slot is a named seat in turn order ("W"/"B" for sided games, "P1".."Pn"
// otherwise).
type Slot string

// NoSlot is returned when no playable slot remains.
const NoSlot Slot = ""

// TurnOrder is the ordered sequence of seats with a current pointer.
// Fields are exported for backup serialization; mutate through methods only.
type TurnOrder struct {
	Order   []Slot        `json:"order"`
	Pointer int           `json:"pointer"`
	Out     map[Slot]bool `json:"out,omitempty"`
}

// NewTurnOrder creates an order over the given slots, pointing at the first.
func NewTurnOrder(slots ...Slot) *TurnOrder {
	return &TurnOrder{Order: slots, Out: make(map[Slot]bool)}
}

// Current returns the slot the pointer is on, or NoSlot if every slot has
// been eliminated.
func (o *TurnOrder) Current() Slot {
	if len(o.Playable()) == 0 {
		return NoSlot
	}
	return o.Order[o.Pointer]
}

// Advance moves the pointer to the next non-eliminated slot, wrapping.
// Returns NoSlot when nothing is playable; the caller treats that as an
// end-of-round signal, not a failure.
func (o *TurnOrder) Advance() Slot {
	for i := 1; i <= len(o.Order); i++ {
		next := (o.Pointer + i) % len(o.Order)
		if !o.Out[o.Order[next]] {
			o.Pointer = next
			return o.Order[next]
		}
	}
	return NoSlot
}

// Eliminate marks a slot permanently skipped. If it was current, the pointer
// advances past it.
func (o *TurnOrder) Eliminate(slot Slot) {
	if o.Out == nil {
		o.Out = make(map[Slot]bool)
	}
	wasCurrent := len(o.Order) > 0 && o.Order[o.Pointer] == slot && !o.Out[slot]
	o.Out[slot] = true
	if wasCurrent {
		o.Advance()
	}
}

// Playable returns the slots still in the game, in seating order.
func (o *TurnOrder) Playable() []Slot {
	out := make([]Slot, 0, len(o.Order))
	for _, s := range o.Order {
		if !o.Out[s] {
			out = append(out, s)
		}
	}
	return out
}

// LastPlayable returns the final non-eliminated slot in seating order, used
// for round-completion checks (a round ends when this slot finishes a turn).
func (o *TurnOrder) LastPlayable() Slot {
	for i := len(o.Order) - 1; i >= 0; i-- {
		if !o.Out[o.Order[i]] {
			return o.Order[i]
		}
	}
	return NoSlot
}
