package engine

import (
	"fmt"
	"strings"
)

// Player is one seated participant. A Player value is owned by the session
// that created it and is replaced wholesale (same slot, new value) on seat
// transfer.
type Player struct {
	Name string `json:"name"`
	ID   string `json:"id"` // lowercase lookup identifier derived from Name
	Slot Slot   `json:"slot"`
	Out  bool   `json:"out,omitempty"`
	Side string `json:"side,omitempty"`
}

// ToID lowercases a handle to its stable lookup form, keeping only
// alphanumerics.
func ToID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Roster manages player seats against capacity and slot constraints.
// It never touches turn order; the session reacts to roster events.
type Roster struct {
	Seats   []Slot           `json:"seats"`
	Players map[Slot]*Player `json:"players"`
}

// NewRoster creates an empty roster over the given seat labels.
func NewRoster(seats []Slot) *Roster {
	return &Roster{Seats: seats, Players: make(map[Slot]*Player)}
}

// Join seats a user. If requested is NoSlot the first free seat is used.
func (r *Roster) Join(name string, requested Slot) (*Player, error) {
	id := ToID(name)
	if id == "" {
		return nil, Rejectf("%q is not a usable name", name)
	}
	if r.ByUser(id) != nil {
		return nil, ErrAlreadyJoined
	}

	slot := requested
	if slot == NoSlot {
		for _, s := range r.Seats {
			if r.Players[s] == nil {
				slot = s
				break
			}
		}
		if slot == NoSlot {
			return nil, ErrFull
		}
	} else {
		if !r.validSeat(slot) {
			return nil, Rejectf("%s is not a seat in this game", slot)
		}
		if r.Players[slot] != nil {
			return nil, ErrSlotTaken
		}
	}

	p := &Player{Name: name, ID: id, Slot: slot}
	r.Players[slot] = p
	return p, nil
}

// Leave removes a user. When active is true the seat is not freed: the
// player is marked out and the record kept for scoring, and the session
// decides (via the rulebook's policy) whether play can continue.
func (r *Roster) Leave(user string, active bool) (*Player, error) {
	p := r.ByUser(ToID(user))
	if p == nil {
		return nil, ErrNotAPlayer
	}
	if active {
		p.Out = true
	} else {
		delete(r.Players, p.Slot)
	}
	return p, nil
}

// Disqualify marks a seat's occupant out without freeing the seat. Returns
// the player, or nil for an empty seat.
func (r *Roster) Disqualify(slot Slot) *Player {
	p := r.Players[slot]
	if p != nil {
		p.Out = true
	}
	return p
}

// Replace substitutes the occupant of a seat without altering turn order or
// per-slot game state. Used for reconnect and seat-transfer flows.
func (r *Roster) Replace(slot Slot, newName string) (*Player, error) {
	old := r.Players[slot]
	if old == nil {
		return nil, Rejectf("seat %s is empty", slot)
	}
	id := ToID(newName)
	if id == "" {
		return nil, Rejectf("%q is not a usable name", newName)
	}
	if cur := r.ByUser(id); cur != nil && cur.Slot != slot {
		return nil, ErrAlreadyJoined
	}
	p := &Player{Name: newName, ID: id, Slot: slot, Out: old.Out, Side: old.Side}
	r.Players[slot] = p
	return p, nil
}

// ByUser finds a player by lowercase id, or nil.
func (r *Roster) ByUser(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// BySlot returns the seat occupant, or nil.
func (r *Roster) BySlot(slot Slot) *Player {
	return r.Players[slot]
}

// Size returns the number of occupied seats (including players marked out).
func (r *Roster) Size() int {
	return len(r.Players)
}

// Active returns players still in the game, in seating order.
func (r *Roster) Active() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, s := range r.Seats {
		if p := r.Players[s]; p != nil && !p.Out {
			out = append(out, p)
		}
	}
	return out
}

// All returns every seated player in seating order.
func (r *Roster) All() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, s := range r.Seats {
		if p := r.Players[s]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (r *Roster) validSeat(slot Slot) bool {
	for _, s := range r.Seats {
		if s == slot {
			return true
		}
	}
	return false
}

// SeatLabels builds the default slot labels for a player count: sided games
// provide their own labels, everything else gets P1..Pn.
func SeatLabels(sides []Slot, n int) []Slot {
	if len(sides) > 0 {
		return sides
	}
	labels := make([]Slot, n)
	for i := range labels {
		labels[i] = Slot(fmt.Sprintf("P%d", i+1))
	}
	return labels
}
