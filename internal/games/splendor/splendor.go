// Package splendor implements the Splendor-style token economy rulebook:
// three-shape token draws, discount-aware purchases, reservations with a
// wildcard bonus, a hand cap with forced discards, and an end-of-round
// finish with reproducible tie-breaks.
package splendor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gamehost/internal/engine"
	"gamehost/internal/rng"
)

const (
	pointsToWin = 15
	maxTokens   = 10
	maxReserve  = 3
)

// Game implements engine.Rulebook.
type Game struct{}

func (Game) Meta() engine.Meta {
	return engine.Meta{
		ID:         "splendor",
		Name:       "Splendor",
		Aliases:    []string{"spl"},
		MinPlayers: 2,
		MaxPlayers: 4,
	}
}

// PlayerData is one player's holdings.
type PlayerData struct {
	Points   int        `json:"points"`
	Tokens   TokenCount `json:"tokens"`
	Cards    []Card     `json:"cards"`
	Reserved []Card     `json:"reserved"`
	Trainers []Trainer  `json:"trainers"`
}

// Row is one card tier: the face-up cards and the face-down deck.
type Row struct {
	Wild []Card `json:"wild"`
	Deck []Card `json:"deck"`
}

// State is the full serialized game state.
type State struct {
	Bank     TokenCount                    `json:"bank"`
	Rows     map[string]*Row               `json:"rows"` // keys "1".."3"
	Trainers []Trainer                     `json:"trainers"`
	Players  map[engine.Slot]*PlayerData   `json:"players"`
	// PendingDiscard suspends turn advancement until the current player
	// discards down to the hand cap.
	PendingDiscard int `json:"pendingDiscard,omitempty"`
}

func decode(raw json.RawMessage) (*State, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("splendor state: %w", err)
	}
	return &st, nil
}

func newPlayerData() *PlayerData {
	tokens := make(TokenCount)
	for _, t := range AllTypes {
		tokens[t] = 0
	}
	return &PlayerData{Tokens: tokens}
}

func (Game) Init(env engine.Env, players []*engine.Player) (json.RawMessage, error) {
	n := len(players)
	if n < 2 || n > 4 {
		return nil, fmt.Errorf("splendor needs 2-4 players, got %d", n)
	}

	st := &State{
		Bank:    make(TokenCount),
		Rows:    make(map[string]*Row),
		Players: make(map[engine.Slot]*PlayerData),
	}
	for _, t := range AllTypes {
		st.Bank[t] = bankStart[t][n-2]
	}
	for tier := 1; tier <= 3; tier++ {
		cards := deck(tier)
		rng.ShuffleSlice(env.RNG, cards)
		st.Rows[fmt.Sprint(tier)] = &Row{Wild: cards[:4], Deck: cards[4:]}
	}
	st.Trainers = rng.Pick(env.RNG, trainers(), n+1)
	for _, p := range players {
		st.Players[p.Slot] = newPlayerData()
	}
	return json.Marshal(st)
}

type actionLog struct {
	Action string     `json:"action"`
	Card   string     `json:"card,omitempty"`
	Tokens TokenCount `json:"tokens,omitempty"`
}

func (g Game) Act(env engine.Env, raw json.RawMessage, player *engine.Player, payload string) (engine.Result, error) {
	st, err := decode(raw)
	if err != nil {
		return engine.Result{}, err
	}
	pd := st.Players[player.Slot]
	if pd == nil {
		return engine.Result{}, fmt.Errorf("no player data for slot %s", player.Slot)
	}

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(payload)))
	if len(fields) == 0 {
		return engine.Result{}, engine.Rejectf("what would you like to do? (draw / buy / reserve / buyreserve / discard)")
	}
	action, args := fields[0], fields[1:]

	if st.PendingDiscard > 0 && action != "discard" {
		return engine.Result{}, engine.Rejectf("you must first discard %d token(s): discard <tokens>", st.PendingDiscard)
	}

	logEntry := actionLog{Action: action}
	switch action {
	case "draw":
		tokens, err := parseTokens(strings.Join(args, ""))
		if err != nil {
			return engine.Result{}, err
		}
		if err := validateDraw(st, tokens); err != nil {
			return engine.Result{}, err
		}
		moveTokens(tokens, st.Bank, pd.Tokens)
		logEntry.Tokens = tokens

	case "buy":
		if len(args) == 0 {
			return engine.Result{}, engine.Rejectf("buy what? (buy <card> <tokens>)")
		}
		card, err := findWildCard(st, args[0])
		if err != nil {
			return engine.Result{}, err
		}
		paying, err := parseTokens(strings.Join(args[1:], ""))
		if err != nil {
			return engine.Result{}, err
		}
		if err := g.pay(st, pd, card, paying); err != nil {
			return engine.Result{}, err
		}
		removeWildCard(st, card.ID)
		pd.Cards = append(pd.Cards, card)
		logEntry.Card, logEntry.Tokens = card.ID, paying

	case "reserve":
		if len(args) == 0 {
			return engine.Result{}, engine.Rejectf("reserve what? (reserve <card>)")
		}
		card, err := findWildCard(st, args[0])
		if err != nil {
			return engine.Result{}, err
		}
		if len(pd.Reserved) >= maxReserve {
			return engine.Result{}, engine.Rejectf("you may reserve at most %d cards", maxReserve)
		}
		removeWildCard(st, card.ID)
		pd.Reserved = append(pd.Reserved, card)
		// an empty wildcard pool doesn't block the reservation
		if st.Bank[Dragon] > 0 {
			moveTokens(TokenCount{Dragon: 1}, st.Bank, pd.Tokens)
		}
		logEntry.Card = card.ID

	case "buyreserve":
		if len(args) == 0 {
			return engine.Result{}, engine.Rejectf("buy which reserved card? (buyreserve <card> <tokens>)")
		}
		idx := -1
		for i, c := range pd.Reserved {
			if c.ID == engine.ToID(args[0]) {
				idx = i
				break
			}
		}
		if idx == -1 {
			return engine.Result{}, engine.Rejectf("you have not reserved %s", args[0])
		}
		card := pd.Reserved[idx]
		paying, err := parseTokens(strings.Join(args[1:], ""))
		if err != nil {
			return engine.Result{}, err
		}
		if err := g.pay(st, pd, card, paying); err != nil {
			return engine.Result{}, err
		}
		pd.Reserved = append(pd.Reserved[:idx], pd.Reserved[idx+1:]...)
		pd.Cards = append(pd.Cards, card)
		logEntry.Card, logEntry.Tokens = card.ID, paying

	case "discard":
		if st.PendingDiscard == 0 {
			return engine.Result{}, engine.Rejectf("you don't need to discard any tokens")
		}
		tokens, err := parseTokens(strings.Join(args, ""))
		if err != nil {
			return engine.Result{}, err
		}
		if tokens.Sum() < st.PendingDiscard {
			return engine.Result{}, engine.Rejectf("you must discard at least %d token(s); %d isn't enough", st.PendingDiscard, tokens.Sum())
		}
		if !covered(tokens, pd.Tokens) {
			return engine.Result{}, engine.Rejectf("you don't have those tokens to discard")
		}
		moveTokens(tokens, pd.Tokens, st.Bank)
		st.PendingDiscard = 0
		logEntry.Tokens = tokens

	default:
		return engine.Result{}, engine.Rejectf("unrecognized action %q", action)
	}

	awardTrainers(st, pd)
	recalcPoints(pd)

	// end-of-round resolution outranks the token limit: a closing move
	// that also overflows ends the game without a forced discard
	res := engine.Result{}
	if g.canEnd(env, st) {
		res.Outcome = finalOutcome(env, st)
	} else if pd.Tokens.Sum() > maxTokens {
		st.PendingDiscard = pd.Tokens.Sum() - maxTokens
		res.HoldTurn = true
		res.Note = fmt.Sprintf("%s is over the token limit and must discard %d token(s).", player.Name, st.PendingDiscard)
	}

	res.State, err = json.Marshal(st)
	if err != nil {
		return engine.Result{}, err
	}
	ctx, _ := json.Marshal(logEntry)
	res.LogCtx = ctx
	return res, nil
}

// pay validates that the offered tokens cover the card's cost after card
// discounts, then moves them to the bank.
func (g Game) pay(st *State, pd *PlayerData, card Card, paying TokenCount) error {
	if !covered(paying, pd.Tokens) {
		return engine.Rejectf("you don't have the tokens you offered")
	}
	eff := discountedCost(card.Cost, pd.Cards)
	if _, ok := canAfford(eff, paying); !ok {
		return engine.Rejectf("the given tokens are insufficient to purchase %s", card.Name)
	}
	moveTokens(paying, pd.Tokens, st.Bank)
	return nil
}

// discountedCost reduces a cost by the player's owned cards of each type.
func discountedCost(cost TokenCount, owned []Card) TokenCount {
	bonus := make(TokenCount)
	for _, c := range owned {
		bonus[c.Type]++
	}
	eff := make(TokenCount)
	for _, t := range AllTypes {
		if n := cost[t] - bonus[t]; n > 0 {
			eff[t] = n
		}
	}
	return eff
}

// canAfford checks whether funds (with dragons as wildcards) cover cost, and
// suggests a concrete payment.
func canAfford(cost, funds TokenCount) (TokenCount, bool) {
	availableDragons := funds[Dragon] - cost[Dragon]
	if availableDragons < 0 {
		return nil, false
	}
	needed := 0
	recommendation := make(TokenCount)
	for _, t := range BaseTypes {
		want := cost[t]
		have := funds[t]
		if want > have {
			needed += want - have
			want = have
		}
		if want > 0 {
			recommendation[t] = want
		}
	}
	if needed > availableDragons {
		return nil, false
	}
	if n := needed + cost[Dragon]; n > 0 {
		recommendation[Dragon] = n
	}
	return recommendation, true
}

// validateDraw enforces the three legal draw shapes: two of one color when
// that stack holds at least four, one each of three colors, or one each of
// fewer colors when the bank cannot supply three distinct stacks.
func validateDraw(st *State, tokens TokenCount) error {
	if tokens[Dragon] > 0 {
		return engine.Rejectf("you may only obtain %s tokens by reserving cards", Dragon)
	}

	type req struct {
		t     TokenType
		count int
	}
	var reqs []req
	for _, t := range BaseTypes {
		if tokens[t] > 0 {
			reqs = append(reqs, req{t, tokens[t]})
		}
	}
	if len(reqs) == 0 {
		return engine.Rejectf("you must take at least one token")
	}
	if len(reqs) > 3 {
		return engine.Rejectf("you can't take tokens of more than 3 types")
	}

	for _, r := range reqs {
		if r.count > st.Bank[r.t] {
			return engine.Rejectf("tried to take %d %s but the bank only has %d", r.count, r.t, st.Bank[r.t])
		}
	}

	available := 0
	for _, t := range BaseTypes {
		if st.Bank[t] > 0 {
			available++
		}
	}

	if len(reqs) == 1 {
		r := reqs[0]
		switch r.count {
		case 2:
			if st.Bank[r.t] < 4 {
				return engine.Rejectf("you can only take 2 %s tokens if the stack has 4 or more (it has %d)", r.t, st.Bank[r.t])
			}
			return nil
		case 1:
			if available > 1 {
				return engine.Rejectf("you can only take a single token when the bank has no other types to offer")
			}
			return nil
		default:
			return engine.Rejectf("when taking from one stack you can only take exactly 2")
		}
	}

	// multiple types: one each, and short draws only when the bank is short
	for _, r := range reqs {
		if r.count != 1 {
			return engine.Rejectf("you can only take 1 token from each of %d types", len(reqs))
		}
	}
	if len(reqs) < 3 && available > len(reqs) {
		return engine.Rejectf("you can only take 2 from 1 type or 1 each from 3 types")
	}
	return nil
}

// parseTokens reads shorthand like "f2" or "c1d1f1": a type letter followed
// by a count. X is the wildcard.
func parseTokens(input string) (TokenCount, error) {
	letters := map[byte]TokenType{
		'c': Colorless, 'd': Dark, 'f': Fire, 'g': Grass, 'w': Water, 'x': Dragon,
	}
	tokens := make(TokenCount)
	s := strings.ToLower(strings.ReplaceAll(input, " ", ""))
	for i := 0; i < len(s); {
		t, ok := letters[s[i]]
		if !ok {
			return nil, engine.Rejectf("%q is not a recognized token type", string(s[i]))
		}
		i++
		n := 0
		digits := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			n = n*10 + int(s[i]-'0')
			digits++
			i++
		}
		if digits == 0 {
			n = 1
		}
		if n >= 10 {
			return nil, engine.Rejectf("%d is not a valid token count", n)
		}
		tokens[t] += n
	}
	return tokens, nil
}

func covered(want, have TokenCount) bool {
	for t, n := range want {
		if n > have[t] {
			return false
		}
	}
	return true
}

func moveTokens(tokens, from, to TokenCount) {
	for t, n := range tokens {
		from[t] -= n
		to[t] += n
	}
}

func findWildCard(st *State, ref string) (Card, error) {
	id := engine.ToID(ref)
	for tier := 1; tier <= 3; tier++ {
		for _, c := range st.Rows[fmt.Sprint(tier)].Wild {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return Card{}, engine.Rejectf("%s is not available on the board", ref)
}

// removeWildCard takes a card off its row and deals a replacement from the
// deck if one remains.
func removeWildCard(st *State, id string) {
	for tier := 1; tier <= 3; tier++ {
		row := st.Rows[fmt.Sprint(tier)]
		for i, c := range row.Wild {
			if c.ID != id {
				continue
			}
			if len(row.Deck) > 0 {
				row.Wild[i] = row.Deck[0]
				row.Deck = row.Deck[1:]
			} else {
				row.Wild = append(row.Wild[:i], row.Wild[i+1:]...)
			}
			return
		}
	}
}

// awardTrainers moves the first board trainer whose requirement the player's
// owned card types now satisfy.
func awardTrainers(st *State, pd *PlayerData) {
	bonus := make(TokenCount)
	for _, c := range pd.Cards {
		bonus[c.Type]++
	}
	for i, tr := range st.Trainers {
		if covered(tr.Types, bonus) {
			pd.Trainers = append(pd.Trainers, tr)
			st.Trainers = append(st.Trainers[:i], st.Trainers[i+1:]...)
			return
		}
	}
}

func recalcPoints(pd *PlayerData) {
	points := 0
	for _, c := range pd.Cards {
		points += c.Points
	}
	for _, t := range pd.Trainers {
		points += t.Points
	}
	pd.Points = points
}

// canEnd is edge-triggered: reaching the threshold doesn't finish the game;
// it ends only when the final living seat in turn order completes the round.
func (g Game) canEnd(env engine.Env, st *State) bool {
	if env.Turns.Current() != env.Turns.LastPlayable() {
		return false
	}
	for _, p := range env.Roster.Active() {
		if pd := st.Players[p.Slot]; pd != nil && pd.Points >= pointsToWin {
			return true
		}
	}
	return false
}

func (g Game) CanEnd(env engine.Env, raw json.RawMessage) bool {
	st, err := decode(raw)
	if err != nil {
		return false
	}
	return g.canEnd(env, st)
}

// finalOutcome picks the winner: most points, then fewest cards, then the
// session's seeded generator. Never wall-clock or insertion order, so the
// result is reproducible from the log.
func finalOutcome(env engine.Env, st *State) *engine.Outcome {
	var tied []engine.Slot
	bestPoints, bestCards := -1, 0
	for _, p := range env.Roster.Active() {
		pd := st.Players[p.Slot]
		if pd == nil {
			continue
		}
		switch {
		case pd.Points > bestPoints,
			pd.Points == bestPoints && len(pd.Cards) < bestCards:
			bestPoints, bestCards = pd.Points, len(pd.Cards)
			tied = []engine.Slot{p.Slot}
		case pd.Points == bestPoints && len(pd.Cards) == bestCards:
			tied = append(tied, p.Slot)
		}
	}
	if len(tied) == 0 {
		return &engine.Outcome{Type: engine.OutcomeDraw}
	}
	winner := tied[0]
	if len(tied) > 1 {
		winner = rng.Pick(env.RNG, tied, 1)[0]
	}

	scores := make(map[engine.Slot]int)
	for slot, pd := range st.Players {
		scores[slot] = pd.Points
	}
	detail, _ := json.Marshal(scores)
	return &engine.Outcome{Type: engine.OutcomeWin, Winner: winner, Detail: detail}
}

func (Game) OnLeave(env engine.Env, raw json.RawMessage, player *engine.Player) (json.RawMessage, engine.LeavePolicy, error) {
	st, err := decode(raw)
	if err != nil {
		return raw, engine.LeaveContinue, err
	}

	if g := (Game{}); g.canEnd(env, st) {
		return raw, engine.LeaveEnd, nil
	}

	// Return the leaver's tokens and shrink the bank toward the smaller
	// player count's starting size.
	pd := st.Players[player.Slot]
	if pd != nil {
		n := len(env.Roster.Active())
		for _, t := range AllTypes {
			reduce := 0
			if n >= 2 {
				reduce = bankStart[t][n-1] - bankStart[t][n-2]
			}
			st.Bank[t] += pd.Tokens[t] - reduce
			if st.Bank[t] < 0 {
				st.Bank[t] = 0
			}
			pd.Tokens[t] = 0
		}
	}

	out, err := json.Marshal(st)
	if err != nil {
		return raw, engine.LeaveContinue, err
	}
	return out, engine.LeaveContinue, nil
}

func (Game) OnReplace(env engine.Env, raw json.RawMessage, slot engine.Slot, newPlayer *engine.Player) (json.RawMessage, error) {
	// holdings are keyed by slot; nothing to rebind
	return raw, nil
}

// Render projects the board. Reserved card details are visible only to
// their owner; spectators and opponents see counts. Decks are never shown.
func (Game) Render(raw json.RawMessage, viewer engine.Slot) (string, error) {
	st, err := decode(raw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<div>")

	b.WriteString("<p><b>Bank:</b> ")
	for _, t := range AllTypes {
		fmt.Fprintf(&b, "%s:%d ", t, st.Bank[t])
	}
	b.WriteString("</p>")

	for tier := 3; tier >= 1; tier-- {
		fmt.Fprintf(&b, "<p><b>Tier %d:</b> ", tier)
		for _, c := range st.Rows[fmt.Sprint(tier)].Wild {
			fmt.Fprintf(&b, "[%s %dpt %s] ", c.ID, c.Points, costString(c.Cost))
		}
		b.WriteString("</p>")
	}

	if len(st.Trainers) > 0 {
		b.WriteString("<p><b>Trainers:</b> ")
		for _, tr := range st.Trainers {
			fmt.Fprintf(&b, "[%s %s] ", tr.ID, costString(tr.Types))
		}
		b.WriteString("</p>")
	}

	slots := make([]engine.Slot, 0, len(st.Players))
	for s := range st.Players {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for _, s := range slots {
		pd := st.Players[s]
		fmt.Fprintf(&b, "<p><b>%s</b>: %d points, %d cards, tokens %s", s, pd.Points, len(pd.Cards), costString(pd.Tokens))
		if s == viewer {
			b.WriteString(", reserved: ")
			for _, c := range pd.Reserved {
				fmt.Fprintf(&b, "[%s %dpt %s] ", c.ID, c.Points, costString(c.Cost))
			}
		} else {
			fmt.Fprintf(&b, ", %d reserved", len(pd.Reserved))
		}
		b.WriteString("</p>")
	}

	b.WriteString("</div>")
	return b.String(), nil
}

func costString(tc TokenCount) string {
	var parts []string
	for _, t := range AllTypes {
		if tc[t] > 0 {
			parts = append(parts, fmt.Sprintf("%s%d", typeShort[t], tc[t]))
		}
	}
	if len(parts) == 0 {
		return "free"
	}
	return strings.Join(parts, "")
}
