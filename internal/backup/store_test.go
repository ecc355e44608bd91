package backup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundtrip(t *testing.T) {
	s := openTestStore(t)

	rec := Record{
		ID:        "AB12",
		Room:      "lobby",
		Game:      "connectfour",
		CreatedAt: time.Now(),
		State:     json.RawMessage(`{"phase":"active"}`),
	}
	require.NoError(t, s.Put(rec))

	got, err := s.Get("AB12")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Room, got.Room)
	assert.Equal(t, rec.Game, got.Game)
	assert.JSONEq(t, string(rec.State), string(got.State))
}

func TestPutOverwrites(t *testing.T) {
	s := openTestStore(t)

	rec := Record{ID: "AB12", Room: "lobby", Game: "connectfour", CreatedAt: time.Now(), State: json.RawMessage(`{"v":1}`)}
	require.NoError(t, s.Put(rec))
	rec.State = json.RawMessage(`{"v":2}`)
	require.NoError(t, s.Put(rec))

	got, err := s.Get("AB12")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.State))
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestByRoom(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.Put(Record{ID: "A", Room: "lobby", Game: "g", CreatedAt: now, State: json.RawMessage(`{}`)}))
	require.NoError(t, s.Put(Record{ID: "B", Room: "lobby", Game: "g", CreatedAt: now, State: json.RawMessage(`{}`)}))
	require.NoError(t, s.Put(Record{ID: "C", Room: "arena", Game: "g", CreatedAt: now, State: json.RawMessage(`{}`)}))

	recs, err := s.ByRoom("lobby")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestDeleteOlderThanSparesTracked(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Put(Record{ID: "OLD1", Room: "r", Game: "g", CreatedAt: old, State: json.RawMessage(`{}`)}))
	require.NoError(t, s.Put(Record{ID: "OLD2", Room: "r", Game: "g", CreatedAt: old, State: json.RawMessage(`{}`)}))
	require.NoError(t, s.Put(Record{ID: "NEW1", Room: "r", Game: "g", CreatedAt: time.Now(), State: json.RawMessage(`{}`)}))

	purged, err := s.DeleteOlderThan(time.Now().Add(-24*time.Hour), func(id string) bool {
		return id == "OLD2" // still live in memory
	})
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = s.Get("OLD1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("OLD2")
	assert.NoError(t, err, "tracked backups survive regardless of age")
	_, err = s.Get("NEW1")
	assert.NoError(t, err)
}

func TestNextIDFormatAndUniqueness(t *testing.T) {
	s := openTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := s.NextID()
		require.NoError(t, err)
		require.Len(t, id, 4)
		for _, r := range id {
			assert.True(t, (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z'), "id %q", id)
		}
		assert.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestNextIDSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/backups.db"

	s1, err := Open(path)
	require.NoError(t, err)
	first, err := s1.NextID()
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	second, err := s2.NextID()
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "counter persists across restarts")
}

func TestManifestRoundtrip(t *testing.T) {
	s := openTestStore(t)

	entries := []ManifestEntry{
		{ID: "A1B2", Room: "lobby", Game: "splendor"},
		{ID: "C3D4", Room: "arena", Game: "connectfour"},
	}
	require.NoError(t, s.SaveManifest(entries))

	got, err := s.LoadManifest()
	require.NoError(t, err)
	assert.ElementsMatch(t, entries, got)

	require.NoError(t, s.RemoveManifestEntry("A1B2"))
	got, err = s.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, []ManifestEntry{{ID: "C3D4", Room: "arena", Game: "connectfour"}}, got)

	// a save replaces the manifest wholesale
	require.NoError(t, s.SaveManifest(nil))
	got, err = s.LoadManifest()
	require.NoError(t, err)
	assert.Empty(t, got)
}
