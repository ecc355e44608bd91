package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamehost/internal/archive"
	"gamehost/internal/backup"
	"gamehost/internal/rng"
	"gamehost/internal/room"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseSignups Phase = "signups"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

// Move is one applied action in the append-only log. Ctx is opaque
// per-rulebook context; the log is never rewritten, only replayed on audit.
type Move struct {
	Slot Slot            `json:"slot"`
	At   time.Time       `json:"at"`
	Ctx  json.RawMessage `json:"ctx,omitempty"`
}

// Deps are the process-wide collaborators a session composes.
type Deps struct {
	Channel room.Channel
	Backups *backup.Store
	Archive *archive.Store
	Timers  *TimerController
	Logger  *zap.Logger

	PokeAfter    time.Duration
	ForfeitAfter time.Duration
}

// Session is one turn-based game: the lifecycle state machine, its roster
// and turn order, the rulebook-owned state blob, and the action pipeline.
// All mutation is serialized through mu; timer callbacks acquire the same
// lock and re-validate before acting.
type Session struct {
	mu sync.Mutex

	id     string
	roomID string
	book   Rulebook
	meta   Meta
	deps   Deps

	phase   Phase
	created time.Time
	started time.Time
	ended   time.Time

	rand    *rng.RNG
	roster  *Roster
	turns   *TurnOrder
	state   json.RawMessage
	log     []Move
	seq     uint64 // accepted-action counter; timers check it for staleness
	outcome *Outcome
}

// NewSession creates a session in Signups and seats nobody.
func NewSession(id, roomID string, book Rulebook, deps Deps) *Session {
	meta := book.Meta()
	return &Session{
		id:      id,
		roomID:  roomID,
		book:    book,
		meta:    meta,
		deps:    deps,
		phase:   PhaseSignups,
		created: time.Now(),
		rand:    rng.New(randomSeed()),
		roster:  NewRoster(SeatLabels(meta.Sides, meta.MaxPlayers)),
	}
}

func randomSeed() uint32 {
	var b [4]byte
	if _, err := crand.Read(b[:]); err != nil {
		// fall back to the clock; fairness, not secrecy, is at stake
		return uint32(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint32(b[:])
}

// ID returns the session code.
func (s *Session) ID() string { return s.id }

// Room returns the owning room id.
func (s *Session) Room() string { return s.roomID }

// GameType returns the rulebook tag.
func (s *Session) GameType() string { return s.meta.ID }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Outcome returns the terminal outcome, or nil while the session lives.
func (s *Session) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Seated reports whether the user holds a seat.
func (s *Session) Seated(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.ByUser(userID) != nil
}

// Players returns the roster in seating order.
func (s *Session) Players() []*Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.All()
}

// MoveCount returns the number of accepted actions.
func (s *Session) MoveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}

// StateBlob returns the current rulebook state. Test/diagnostic use only.
func (s *Session) StateBlob() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join seats a user during signups. When the roster reaches capacity the
// session starts automatically.
func (s *Session) Join(name string, requested Slot) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseActive:
		return nil, ErrGameStarted
	case PhaseEnded:
		return nil, ErrGameEnded
	}

	p, err := s.roster.Join(name, requested)
	if err != nil {
		return nil, err
	}
	s.deps.Channel.SendText(s.roomID, fmt.Sprintf("%s joined game %s (%s)", p.Name, s.id, s.meta.Name))

	if s.roster.Size() >= s.meta.MaxPlayers {
		if err := s.startLocked(); err != nil {
			return p, err
		}
	} else {
		s.persistLocked()
	}
	return p, nil
}

// Start begins play once the rulebook's minimum is met.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseActive:
		return ErrGameStarted
	case PhaseEnded:
		return ErrGameEnded
	}
	if s.roster.Size() < s.meta.MinPlayers {
		return Rejectf("need at least %d players, have %d", s.meta.MinPlayers, s.roster.Size())
	}
	return s.startLocked()
}

func (s *Session) startLocked() error {
	// Seed turn order: random seat sequence, reproducible from the backup.
	slots := make([]Slot, 0, s.roster.Size())
	for _, p := range s.roster.All() {
		slots = append(slots, p.Slot)
	}
	rng.ShuffleSlice(s.rand, slots)
	s.turns = NewTurnOrder(slots...)

	state, err := s.book.Init(s.envLocked(), s.roster.All())
	if err != nil {
		return fmt.Errorf("init %s: %w", s.meta.ID, err)
	}
	s.state = state
	s.phase = PhaseActive
	s.started = time.Now()

	s.persistLocked()
	s.scheduleTimersLocked()
	s.deps.Channel.SendText(s.roomID, fmt.Sprintf("Game %s (%s) has started!", s.id, s.meta.Name))
	s.renderLocked()
	return nil
}

// Act is the action pipeline: resolve the player, enforce turn ownership,
// delegate to the rulebook, then apply, back up, reschedule, and render.
// On any error the state blob is left untouched.
func (s *Session) Act(user, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseSignups:
		return ErrGameNotStarted
	case PhaseEnded:
		return ErrGameEnded
	}

	player := s.roster.ByUser(ToID(user))
	if player == nil || player.Out {
		return ErrImpostorAlert
	}
	if player.Slot != s.turns.Current() {
		return ErrNotYourTurn
	}

	res, err := s.book.Act(s.envLocked(), s.state, player, payload)
	if err != nil {
		return err
	}

	s.state = res.State
	s.log = append(s.log, Move{Slot: player.Slot, At: time.Now(), Ctx: res.LogCtx})
	s.seq++

	if res.Note != "" {
		s.deps.Channel.SendText(s.roomID, res.Note)
	}

	if res.Outcome != nil {
		s.endLocked(res.Outcome)
		return nil
	}

	if !res.HoldTurn {
		if s.turns.Advance() == NoSlot {
			// no legal mover left; force resolution
			s.endLocked(&Outcome{Type: OutcomeDQ})
			return nil
		}
	}
	s.persistLocked()
	s.scheduleTimersLocked()
	s.renderLocked()
	return nil
}

// Leave removes a user. During signups the seat is freed; in an active
// session the player is marked out, the rulebook adjusts its state, and the
// session either continues with the slot skipped or resolves.
func (s *Session) Leave(user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseEnded {
		return ErrGameEnded
	}

	if s.phase == PhaseSignups {
		p, err := s.roster.Leave(user, false)
		if err != nil {
			return err
		}
		s.persistLocked()
		s.deps.Channel.SendText(s.roomID, fmt.Sprintf("%s left game %s", p.Name, s.id))
		return nil
	}

	p, err := s.roster.Leave(user, true)
	if err != nil {
		return err
	}
	return s.dropPlayerLocked(p, fmt.Sprintf("%s left game %s", p.Name, s.id))
}

// dropPlayerLocked handles attrition shared by Leave and forfeit: eliminate
// the slot, consult the rulebook, and either continue or resolve.
func (s *Session) dropPlayerLocked(p *Player, announce string) error {
	state, policy, err := s.book.OnLeave(s.envLocked(), s.state, p)
	if err != nil {
		return fmt.Errorf("on leave %s: %w", s.meta.ID, err)
	}
	s.state = state
	s.turns.Eliminate(p.Slot)
	s.seq++

	s.deps.Channel.SendText(s.roomID, announce)

	playable := s.turns.Playable()
	switch {
	case len(playable) == 0:
		s.endLocked(&Outcome{Type: OutcomeDQ})
	case len(playable) < s.meta.MinPlayers:
		// too few players to finish the game; the survivor takes it
		s.endLocked(&Outcome{Type: OutcomeDQ, Winner: playable[0]})
	case policy == LeaveEnd:
		s.endLocked(&Outcome{Type: OutcomeDQ})
	default:
		s.persistLocked()
		s.scheduleTimersLocked()
		s.renderLocked()
	}
	return nil
}

// Replace transfers a seat to a new user, preserving slot state and order.
func (s *Session) Replace(slot Slot, newName string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseEnded {
		return nil, ErrGameEnded
	}
	p, err := s.roster.Replace(slot, newName)
	if err != nil {
		return nil, err
	}
	if s.phase == PhaseActive {
		state, err := s.book.OnReplace(s.envLocked(), s.state, slot, p)
		if err != nil {
			return nil, fmt.Errorf("on replace %s: %w", s.meta.ID, err)
		}
		s.state = state
	}
	s.persistLocked()
	s.deps.Channel.SendText(s.roomID, fmt.Sprintf("%s is now playing as %s in game %s", p.Name, slot, s.id))
	if s.phase == PhaseActive {
		s.renderLocked()
	}
	return p, nil
}

// Kill ends the session administratively.
func (s *Session) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseEnded {
		return ErrGameEnded
	}
	s.endLocked(&Outcome{Type: OutcomeKilled})
	return nil
}

// HandleTimer is invoked by the TimerController. A fire recorded against an
// action sequence the session has since moved past is stale and ignored.
func (s *Session) HandleTimer(fire TimerFire) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive || fire.Seq != s.seq {
		s.deps.Logger.Debug("stale timer fire dropped",
			zap.String("session", s.id),
			zap.String("kind", string(fire.Kind)),
			zap.Uint64("fired", fire.Seq),
			zap.Uint64("current", s.seq))
		return
	}

	current := s.roster.BySlot(s.turns.Current())
	if current == nil {
		s.deps.Logger.Error("no player for current slot",
			zap.String("session", s.id),
			zap.String("slot", string(s.turns.Current())))
		return
	}

	switch fire.Kind {
	case TimerPoke:
		// nudge only; never mutates state
		s.deps.Channel.SendText(s.roomID, fmt.Sprintf("%s, it's your turn in game %s!", current.Name, s.id))
		s.renderLocked()
	case TimerForfeit:
		s.roster.Disqualify(current.Slot)
		if err := s.dropPlayerLocked(current, fmt.Sprintf("%s timed out of game %s", current.Name, s.id)); err != nil {
			s.deps.Logger.Error("forfeit handling failed", zap.String("session", s.id), zap.Error(err))
		}
	}
}

func (s *Session) endLocked(outcome *Outcome) {
	s.phase = PhaseEnded
	s.ended = time.Now()
	s.outcome = outcome
	s.deps.Timers.CancelAll(s.id)

	// the final snapshot stays until the retention sweep purges it
	s.persistLocked()
	s.archiveLocked()
	s.renderLocked()

	switch {
	case outcome.Type == OutcomeWin && outcome.Winner != NoSlot:
		winner := s.roster.BySlot(outcome.Winner)
		name := string(outcome.Winner)
		if winner != nil {
			name = winner.Name
		}
		s.deps.Channel.SendText(s.roomID, fmt.Sprintf("%s won game %s (%s)!", name, s.id, s.meta.Name))
	case outcome.Type == OutcomeDraw:
		s.deps.Channel.SendText(s.roomID, fmt.Sprintf("Game %s (%s) ended in a draw.", s.id, s.meta.Name))
	default:
		s.deps.Channel.SendText(s.roomID, fmt.Sprintf("Game %s (%s) ended.", s.id, s.meta.Name))
	}
}

func (s *Session) archiveLocked() {
	if s.deps.Archive == nil {
		return
	}
	players, err := json.Marshal(s.roster.Players)
	if err != nil {
		s.deps.Logger.Error("marshal roster for archive", zap.String("session", s.id), zap.Error(err))
		return
	}
	logLines := make([]string, len(s.log))
	for i, mv := range s.log {
		line, _ := json.Marshal(mv)
		logLines[i] = string(line)
	}
	var outcome json.RawMessage
	if s.outcome != nil {
		outcome, _ = json.Marshal(s.outcome)
	}
	rec := archive.Record{
		ID:      s.id,
		Game:    s.meta.ID,
		Room:    s.roomID,
		Players: players,
		Created: s.created,
		Started: s.started,
		Ended:   s.ended,
		Log:     logLines,
		Outcome: outcome,
	}
	if err := s.deps.Archive.Upload(rec); err != nil {
		// best-effort: log and move on
		s.deps.Logger.Error("archive upload failed", zap.String("session", s.id), zap.Error(err))
	}
}

func (s *Session) scheduleTimersLocked() {
	poke, forfeit := s.deps.PokeAfter, s.deps.ForfeitAfter
	if s.meta.PokeAfter > 0 {
		poke = s.meta.PokeAfter
	}
	if s.meta.Forfeit > 0 {
		forfeit = s.meta.Forfeit
	}
	if poke > 0 {
		s.deps.Timers.SchedulePoke(s.id, poke, s.seq)
	}
	if forfeit > 0 {
		s.deps.Timers.ScheduleForfeit(s.id, forfeit, s.seq)
	}
}

// renderLocked pushes the current projection to every seated player and a
// hidden-information-free spectator view to the rest of the room.
func (s *Session) renderLocked() {
	seated := make(map[string]bool)
	for _, p := range s.roster.All() {
		seated[p.ID] = true
		html, err := s.book.Render(s.state, p.Slot)
		if err != nil {
			s.deps.Logger.Error("render failed",
				zap.String("session", s.id), zap.String("viewer", string(p.Slot)), zap.Error(err))
			continue
		}
		s.deps.Channel.SendHTML([]string{p.ID}, html, room.SendOpts{Name: s.id})
	}

	var spectators []string
	for _, member := range s.deps.Channel.Members(s.roomID) {
		if !seated[member] {
			spectators = append(spectators, member)
		}
	}
	if len(spectators) == 0 {
		return
	}
	html, err := s.book.Render(s.state, NoSlot)
	if err != nil {
		s.deps.Logger.Error("spectator render failed", zap.String("session", s.id), zap.Error(err))
		return
	}
	s.deps.Channel.SendHTML(spectators, html, room.SendOpts{Name: s.id})
}

func (s *Session) envLocked() Env {
	return Env{RNG: s.rand, Roster: s.roster, Turns: s.turns}
}

// snapshot is the serialized resumable form of a session.
type snapshot struct {
	RandState uint32          `json:"randState"`
	Phase     Phase           `json:"phase"`
	Created   time.Time       `json:"created"`
	Started   time.Time       `json:"started"`
	Roster    *Roster         `json:"roster"`
	Turns     *TurnOrder      `json:"turns,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Log       []Move          `json:"log,omitempty"`
	Seq       uint64          `json:"seq"`
	Outcome   *Outcome        `json:"outcome,omitempty"`
}

func (s *Session) persistLocked() {
	snap := snapshot{
		RandState: s.rand.State(),
		Phase:     s.phase,
		Created:   s.created,
		Started:   s.started,
		Roster:    s.roster,
		Turns:     s.turns,
		State:     s.state,
		Log:       s.log,
		Seq:       s.seq,
		Outcome:   s.outcome,
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		s.deps.Logger.Error("marshal snapshot", zap.String("session", s.id), zap.Error(err))
		return
	}
	rec := backup.Record{
		ID:        s.id,
		Room:      s.roomID,
		Game:      s.meta.ID,
		CreatedAt: time.Now(),
		State:     blob,
	}
	if err := s.deps.Backups.Put(rec); err != nil {
		s.deps.Logger.Error("write backup", zap.String("session", s.id), zap.Error(err))
	}
}

// RestoreSession rebuilds a session from a backup record's state blob. The
// caller has already verified the record's room against the room being
// restored into.
func RestoreSession(id, roomID string, book Rulebook, deps Deps, blob json.RawMessage) (*Session, error) {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	if snap.Roster == nil {
		return nil, fmt.Errorf("snapshot %s: missing roster", id)
	}
	switch snap.Phase {
	case PhaseSignups, PhaseActive, PhaseEnded:
	default:
		return nil, fmt.Errorf("snapshot %s: unknown phase %q", id, snap.Phase)
	}

	s := &Session{
		id:      id,
		roomID:  roomID,
		book:    book,
		meta:    book.Meta(),
		deps:    deps,
		phase:   snap.Phase,
		created: snap.Created,
		started: snap.Started,
		ended:   time.Time{},
		rand:    rng.Restore(snap.RandState),
		roster:  snap.Roster,
		turns:   snap.Turns,
		state:   snap.State,
		log:     snap.Log,
		seq:     snap.Seq,
		outcome: snap.Outcome,
	}
	if s.phase == PhaseActive {
		s.mu.Lock()
		s.scheduleTimersLocked()
		s.renderLocked()
		s.mu.Unlock()
	}
	return s, nil
}
