package archive

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := New(db)
	require.NoError(t, err)
	return s
}

func TestUploadGetRoundtrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Truncate(time.Second)

	rec := Record{
		ID:      "AB12",
		Game:    "splendor",
		Room:    "lobby",
		Players: json.RawMessage(`{"P1":{"name":"Alice"}}`),
		Created: now.Add(-time.Hour),
		Started: now.Add(-50 * time.Minute),
		Ended:   now,
		Log:     []string{`{"slot":"P1"}`, `{"slot":"P2"}`},
		Outcome: json.RawMessage(`{"type":"win","winner":"P1"}`),
	}
	require.NoError(t, s.Upload(rec))

	got, err := s.Get("splendor", "AB12")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Room, got.Room)
	assert.Equal(t, rec.Log, got.Log)
	assert.JSONEq(t, string(rec.Players), string(got.Players))
	assert.JSONEq(t, string(rec.Outcome), string(got.Outcome))
}

func TestUploadUpsertsSameGame(t *testing.T) {
	s := openTestStore(t)
	rec := Record{ID: "AB12", Game: "splendor", Room: "lobby", Players: json.RawMessage(`{}`), Log: []string{"a"}}
	require.NoError(t, s.Upload(rec))

	rec.Log = []string{"a", "b"}
	require.NoError(t, s.Upload(rec))

	got, err := s.Get("splendor", "AB12")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Log)
}

func TestIDsScopedByGame(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upload(Record{ID: "AB12", Game: "splendor", Room: "lobby", Players: json.RawMessage(`{}`)}))
	require.NoError(t, s.Upload(Record{ID: "AB12", Game: "connectfour", Room: "arena", Players: json.RawMessage(`{}`)}))

	a, err := s.Get("splendor", "AB12")
	require.NoError(t, err)
	b, err := s.Get("connectfour", "AB12")
	require.NoError(t, err)
	assert.NotEqual(t, a.Room, b.Room)
}

func TestGetMissingOutcomeStaysNil(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upload(Record{ID: "X", Game: "g", Room: "r", Players: json.RawMessage(`{}`)}))

	got, err := s.Get("g", "X")
	require.NoError(t, err)
	assert.Nil(t, got.Outcome)
	assert.Empty(t, got.Log)
}
