package splendor

import "fmt"

// TokenType is one of the six token colors. Dragon is the wildcard earned by
// reserving; it is never drawn directly.
type TokenType string

const (
	Colorless TokenType = "colorless"
	Dark      TokenType = "dark"
	Fire      TokenType = "fire"
	Grass     TokenType = "grass"
	Water     TokenType = "water"
	Dragon    TokenType = "dragon"
)

// BaseTypes are the drawable colors, in canonical order. Iterate these (not
// maps) wherever order affects outcomes.
var BaseTypes = []TokenType{Colorless, Dark, Fire, Grass, Water}

// AllTypes includes the wildcard.
var AllTypes = []TokenType{Colorless, Dark, Fire, Grass, Water, Dragon}

// TokenCount counts tokens by type. Missing keys mean zero.
type TokenCount map[TokenType]int

// Sum totals every entry.
func (tc TokenCount) Sum() int {
	total := 0
	for _, n := range tc {
		total += n
	}
	return total
}

// Clone copies the counts.
func (tc TokenCount) Clone() TokenCount {
	out := make(TokenCount, len(tc))
	for k, v := range tc {
		out[k] = v
	}
	return out
}

// Card is one purchasable development card.
type Card struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Tier   int        `json:"tier"`
	Type   TokenType  `json:"type"`
	Points int        `json:"points"`
	Cost   TokenCount `json:"cost"`
}

// Trainer is a bonus patron that visits a player whose owned card types
// meet its requirement.
type Trainer struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Points int        `json:"points"`
	Types  TokenCount `json:"types"`
}

// bankStart is the per-color bank size indexed by playerCount-2.
var bankStart = map[TokenType][3]int{
	Colorless: {4, 5, 7},
	Dark:      {4, 5, 7},
	Fire:      {4, 5, 7},
	Grass:     {4, 5, 7},
	Water:     {4, 5, 7},
	Dragon:    {5, 5, 5},
}

// Cost patterns per tier, spread across the other four colors. Index picks
// pattern and rotation, so the full deck is deterministic.
var tierPatterns = map[int][]struct {
	cost   []int
	points int
}{
	1: {
		{[]int{1, 1, 1, 0}, 0},
		{[]int{2, 1, 0, 0}, 0},
		{[]int{2, 2, 0, 0}, 0},
		{[]int{1, 1, 1, 1}, 0},
		{[]int{3, 0, 0, 0}, 0},
		{[]int{2, 0, 0, 2}, 0},
		{[]int{1, 2, 1, 0}, 0},
		{[]int{4, 0, 0, 0}, 1},
	},
	2: {
		{[]int{3, 2, 2, 0}, 1},
		{[]int{3, 3, 0, 2}, 1},
		{[]int{4, 2, 1, 0}, 2},
		{[]int{5, 3, 0, 0}, 2},
		{[]int{5, 0, 0, 0}, 2},
		{[]int{6, 0, 0, 0}, 3},
	},
	3: {
		{[]int{3, 3, 5, 3}, 3},
		{[]int{7, 0, 0, 0}, 4},
		{[]int{6, 3, 3, 0}, 4},
		{[]int{7, 3, 0, 0}, 5},
	},
}

var typeShort = map[TokenType]string{
	Colorless: "c", Dark: "d", Fire: "f", Grass: "g", Water: "w", Dragon: "x",
}

// deck builds the full card set: 8/6/4 cards per color for tiers 1/2/3.
func deck(tier int) []Card {
	patterns := tierPatterns[tier]
	cards := make([]Card, 0, len(BaseTypes)*len(patterns))
	for ti, t := range BaseTypes {
		others := make([]TokenType, 0, 4)
		for _, o := range BaseTypes {
			if o != t {
				others = append(others, o)
			}
		}
		for pi, p := range patterns {
			cost := make(TokenCount)
			for ci, n := range p.cost {
				if n == 0 {
					continue
				}
				// rotate the pattern so same-shape cards cost different colors
				cost[others[(ci+ti+pi)%len(others)]] = n
			}
			cards = append(cards, Card{
				ID:     fmt.Sprintf("%s%d%c", typeShort[t], tier, 'a'+pi),
				Name:   fmt.Sprintf("%s %d%c", t, tier, 'a'+pi),
				Tier:   tier,
				Type:   t,
				Points: p.points,
				Cost:   cost,
			})
		}
	}
	return cards
}

// trainers builds the patron pool: each wants three cards of two colors.
func trainers() []Trainer {
	out := make([]Trainer, 0, 10)
	for i := 0; i < 10; i++ {
		a := BaseTypes[i%len(BaseTypes)]
		b := BaseTypes[(i+1+i/len(BaseTypes))%len(BaseTypes)]
		if a == b {
			b = BaseTypes[(i+2)%len(BaseTypes)]
		}
		out = append(out, Trainer{
			ID:     fmt.Sprintf("trainer%d", i+1),
			Name:   fmt.Sprintf("Trainer %d", i+1),
			Points: 3,
			Types:  TokenCount{a: 3, b: 3},
		})
	}
	return out
}
