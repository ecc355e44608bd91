package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gamehost/internal/backup"
	"gamehost/internal/engine"
	"gamehost/internal/games/connectfour"
	"gamehost/internal/room"
)

func drain(m *member) []outMessage {
	var out []outMessage
	for {
		select {
		case msg := <-m.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHubTextReachesWholeRoom(t *testing.T) {
	h := NewHub()
	a := h.join("lobby", "alice")
	b := h.join("lobby", "bob")
	other := h.join("arena", "carol")

	h.SendText("lobby", "hello")

	require.Len(t, drain(a), 1)
	require.Len(t, drain(b), 1)
	assert.Empty(t, drain(other))
}

func TestHubHTMLTargetsUserAcrossConnections(t *testing.T) {
	h := NewHub()
	tab1 := h.join("lobby", "alice")
	tab2 := h.join("lobby", "alice")
	b := h.join("lobby", "bob")

	h.SendHTML([]string{"alice"}, "<div/>", room.SendOpts{Name: "G1"})

	for _, m := range []*member{tab1, tab2} {
		msgs := drain(m)
		require.Len(t, msgs, 1)
		assert.Equal(t, "html", msgs[0].Type)
		assert.Equal(t, "G1", msgs[0].Name)
	}
	assert.Empty(t, drain(b))
}

func TestHubMembersDistinct(t *testing.T) {
	h := NewHub()
	h.join("lobby", "alice")
	h.join("lobby", "alice")
	bob := h.join("lobby", "bob")

	assert.ElementsMatch(t, []string{"alice", "bob"}, h.Members("lobby"))

	h.leave(bob)
	assert.ElementsMatch(t, []string{"alice"}, h.Members("lobby"))
	assert.Empty(t, h.Members("arena"))
}

func newTestServer(t *testing.T, kill func()) (*Server, *engine.SessionRegistry, *backup.Store) {
	t.Helper()
	store, err := backup.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	books := engine.NewRegistry()
	books.Register(connectfour.Game{})
	hub := NewHub()
	sessions := engine.NewSessionRegistry(books, engine.Deps{
		Channel: hub,
		Backups: store,
		Logger:  zap.NewNop(),
	})
	if kill == nil {
		kill = func() {}
	}
	return New(books, sessions, hub, zap.NewNop(), kill), sessions, store
}

func TestListGames(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var metas []engine.Meta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metas))
	require.Len(t, metas, 1)
	assert.Equal(t, "connectfour", metas[0].ID)
}

func TestListSessions(t *testing.T) {
	srv, sessions, _ := newTestServer(t, nil)
	s, err := sessions.Create("connectfour", "lobby")
	require.NoError(t, err)
	_, err = s.Join("Alice", engine.NoSlot)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var infos []sessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, s.ID(), infos[0].ID)
	assert.Equal(t, engine.PhaseSignups, infos[0].Phase)
	assert.Equal(t, []string{"Alice"}, infos[0].Players)
}

func TestKillWritesManifestThenExits(t *testing.T) {
	killed := make(chan struct{})
	srv, sessions, store := newTestServer(t, func() { close(killed) })

	s, err := sessions.Create("connectfour", "lobby")
	require.NoError(t, err)
	_, err = s.Join("Alice", engine.NoSlot)
	require.NoError(t, err)
	_, err = s.Join("Bob", engine.NoSlot)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/kill", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-killed:
	case <-time.After(time.Second):
		t.Fatal("shutdown was never requested")
	}

	manifest, err := store.LoadManifest()
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, s.ID(), manifest[0].ID)
	assert.Equal(t, "lobby", manifest[0].Room)
}

func TestHandleMessageSpectatorCannotStartOrReplace(t *testing.T) {
	srv, sessions, _ := newTestServer(t, nil)
	alice := srv.hub.join("lobby", "alice")
	bob := srv.hub.join("lobby", "bob")
	watcher := srv.hub.join("lobby", "watcher")

	srv.handleMessage(alice, "Alice", inMessage{Type: "create", Game: "connectfour"})
	sess, ok := sessions.FindSeated("lobby", "alice")
	require.True(t, ok)
	drain(alice)
	drain(bob)
	drain(watcher)

	srv.handleMessage(watcher, "Watcher", inMessage{Type: "start", Session: sess.ID()})
	msgs := drain(watcher)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "only seated players")
	assert.Equal(t, engine.PhaseSignups, sess.Phase())

	srv.handleMessage(watcher, "Watcher", inMessage{Type: "replace", Session: sess.ID(), Slot: "R", User: "Watcher"})
	msgs = drain(watcher)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "only seated players")
	assert.True(t, sess.Seated("alice"), "the seat was not transferred")

	// a seated player may still start once the minimum is met
	srv.handleMessage(bob, "Bob", inMessage{Type: "join", Session: sess.ID()})
	require.Equal(t, engine.PhaseActive, sess.Phase(), "two seats auto-start the game")
}

func TestHandleMessageRejectionsReplyInline(t *testing.T) {
	srv, sessions, _ := newTestServer(t, nil)
	m := srv.hub.join("lobby", "alice")

	// acting with no seat anywhere gets a reply, not an error
	srv.handleMessage(m, "Alice", inMessage{Type: "act", Payload: "drop 1"})
	msgs := drain(m)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "not seated")

	// creating and then double-joining reports the rejection back
	srv.handleMessage(m, "Alice", inMessage{Type: "create", Game: "connectfour"})
	sess, ok := sessions.FindSeated("lobby", "alice")
	require.True(t, ok)

	srv.handleMessage(m, "Alice", inMessage{Type: "join", Session: sess.ID()})
	found := false
	for _, msg := range drain(m) {
		if msg.Body == engine.ErrAlreadyJoined.Error() {
			found = true
		}
	}
	assert.True(t, found)

	srv.handleMessage(m, "Alice", inMessage{Type: "unknown"})
	msgs = drain(m)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "unknown message type")
}
