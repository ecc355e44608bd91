// Package rng implements the deterministic generator used for shuffles and
// random tie-breaks.
//
// # Determinism
//
// Given the same seed, a generator produces the same sequence of values.
// Session backups store the seed, so replaying a move log against a restored
// session reproduces identical shuffles and samples. The generator is not
// cryptographically secure and must never be used for anything that needs
// to be unpredictable to players ahead of time beyond normal game fairness.
package rng

import (
	"fmt"
	"sort"
)

// RNG is a small 32-bit mix generator (mulberry32 construction).
type RNG struct {
	state uint32
}

// New creates a generator from a 32-bit seed.
func New(seed uint32) *RNG {
	return &RNG{state: seed}
}

// State exposes the current internal state for backup serialization.
func (r *RNG) State() uint32 {
	return r.state
}

// Restore rebuilds a generator mid-sequence from a stored state, so a
// restored session continues the exact random stream it was using.
func Restore(state uint32) *RNG {
	return &RNG{state: state}
}

func (r *RNG) next() uint32 {
	r.state += 0x6d2b79f5
	z := r.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	return z ^ (z >> 14)
}

// Next returns a float64 in [0, 1).
func (r *RNG) Next() float64 {
	return float64(r.next()) / (1 << 32)
}

// Intn returns an int in [0, n). Panics if n <= 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("rng: Intn called with n=%d", n))
	}
	return int(r.Next() * float64(n))
}

// Shuffle randomizes order using the Fisher-Yates swap sequence.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}

// ShuffleSlice shuffles s in place.
func ShuffleSlice[T any](r *RNG, s []T) {
	r.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// Sample picks one key from a weighted set. Keys are visited in sorted order
// so the same seed always picks the same key regardless of map iteration.
// An empty or all-zero weight set is a programmer error and panics.
func Sample[K ~string](r *RNG, weights map[K]int) K {
	keys := make([]K, 0, len(weights))
	total := 0
	for k, w := range weights {
		if w <= 0 {
			continue
		}
		keys = append(keys, k)
		total += w
	}
	if total == 0 {
		panic("rng: Sample called with no positive weights")
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	roll := r.Intn(total)
	for _, k := range keys {
		roll -= weights[k]
		if roll < 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}

// Pick returns k distinct elements of items, in shuffled order. If k exceeds
// the number of items, all items are returned. The input is not modified.
func Pick[T any](r *RNG, items []T, k int) []T {
	out := make([]T, len(items))
	copy(out, items)
	ShuffleSlice(r, out)
	if k < len(out) {
		out = out[:k]
	}
	return out
}
