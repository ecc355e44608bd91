package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"gamehost/internal/engine"
	"gamehost/internal/room"
)

// outMessage is the JSON envelope pushed to connected clients.
type outMessage struct {
	Type string `json:"type"` // "text" or "html"
	Room string `json:"room,omitempty"`
	Name string `json:"name,omitempty"` // html push key; same name replaces
	Body string `json:"body"`
}

// inMessage is what clients send.
type inMessage struct {
	Type    string `json:"type"`
	Game    string `json:"game,omitempty"`
	Session string `json:"session,omitempty"`
	Slot    string `json:"slot,omitempty"`
	User    string `json:"user,omitempty"`
	Payload string `json:"payload,omitempty"`
}

type member struct {
	connID string
	userID string
	roomID string
	send   chan outMessage
}

// Hub tracks room membership and implements room.Channel for the engine.
// A user may hold several connections (tabs); each gets every push.
type Hub struct {
	mu      sync.RWMutex
	members map[string]map[string]*member // roomID -> connID -> member
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{members: make(map[string]map[string]*member)}
}

func (h *Hub) join(roomID, userID string) *member {
	m := &member{
		connID: uuid.NewString(),
		userID: userID,
		roomID: roomID,
		send:   make(chan outMessage, 64),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	byConn := h.members[roomID]
	if byConn == nil {
		byConn = make(map[string]*member)
		h.members[roomID] = byConn
	}
	byConn[m.connID] = m
	return m
}

func (h *Hub) leave(m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if byConn := h.members[m.roomID]; byConn != nil {
		delete(byConn, m.connID)
		if len(byConn) == 0 {
			delete(h.members, m.roomID)
		}
	}
	close(m.send)
}

// SendText delivers a chat line to everyone in a room.
func (h *Hub) SendText(roomID, text string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, m := range h.members[roomID] {
		m.push(outMessage{Type: "text", Room: roomID, Body: text})
	}
}

// SendHTML delivers a render to the named users, wherever they are
// connected.
func (h *Hub) SendHTML(targets []string, html string, opts room.SendOpts) {
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for roomID, byConn := range h.members {
		for _, m := range byConn {
			if want[m.userID] {
				m.push(outMessage{Type: "html", Room: roomID, Name: opts.Name, Body: html})
			}
		}
	}
}

// Members lists the distinct user ids present in a room.
func (h *Hub) Members(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, m := range h.members[roomID] {
		if !seen[m.userID] {
			seen[m.userID] = true
			out = append(out, m.userID)
		}
	}
	return out
}

func (m *member) push(msg outMessage) {
	select {
	case m.send <- msg:
	default:
		// slow consumer; drop rather than block the engine
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room")
	name := r.URL.Query().Get("user")
	userID := engine.ToID(name)
	if userID == "" {
		http.Error(w, "user query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.logger.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	m := s.hub.join(roomID, userID)
	defer s.hub.leave(m)

	// a member joining the room triggers restore of its manifested games
	if n := s.sessions.Restore(roomID); n > 0 {
		s.logger.Info("restored sessions on room join",
			zap.String("room", roomID), zap.Int("count", n))
	}

	go func() {
		for msg := range m.send {
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.push(outMessage{Type: "text", Room: roomID, Body: "invalid message"})
			continue
		}
		s.handleMessage(m, name, msg)
	}
}

func (s *Server) handleMessage(m *member, name string, msg inMessage) {
	reply := func(text string) {
		m.push(outMessage{Type: "text", Room: m.roomID, Body: text})
	}

	fail := func(err error) {
		if engine.IsRejection(err) {
			reply(err.Error())
			return
		}
		s.logger.Error("command failed",
			zap.String("room", m.roomID),
			zap.String("user", m.userID),
			zap.String("type", msg.Type),
			zap.Error(err))
		reply("something went wrong; try again")
	}

	resolve := func() (*engine.Session, bool) {
		if msg.Session != "" {
			sess, ok := s.sessions.Get(msg.Session)
			if !ok || sess.Room() != m.roomID {
				reply("no such game in this room: " + msg.Session)
				return nil, false
			}
			return sess, true
		}
		sess, ok := s.sessions.FindSeated(m.roomID, m.userID)
		if !ok {
			reply("you are not seated in any game here")
		}
		return sess, ok
	}

	switch msg.Type {
	case "create":
		sess, err := s.sessions.Create(msg.Game, m.roomID)
		if err != nil {
			fail(err)
			return
		}
		if _, err := sess.Join(name, engine.Slot(msg.Slot)); err != nil {
			fail(err)
		}

	case "join":
		sess, ok := resolve()
		if !ok {
			return
		}
		if _, err := sess.Join(name, engine.Slot(msg.Slot)); err != nil {
			fail(err)
		}

	case "start":
		sess, ok := resolve()
		if !ok {
			return
		}
		if !sess.Seated(m.userID) {
			reply("only seated players can start the game")
			return
		}
		if err := sess.Start(); err != nil {
			fail(err)
		}

	case "act":
		sess, ok := resolve()
		if !ok {
			return
		}
		if err := sess.Act(name, msg.Payload); err != nil {
			fail(err)
		}

	case "leave":
		sess, ok := resolve()
		if !ok {
			return
		}
		if err := sess.Leave(name); err != nil {
			fail(err)
		}

	case "replace":
		sess, ok := resolve()
		if !ok {
			return
		}
		if !sess.Seated(m.userID) {
			reply("only seated players can transfer a seat")
			return
		}
		if _, err := sess.Replace(engine.Slot(msg.Slot), msg.User); err != nil {
			fail(err)
		}

	default:
		reply("unknown message type: " + msg.Type)
	}
}
