// Package backup persists resumable session snapshots so in-progress games
// survive a process restart.
package backup

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown session id.
var ErrNotFound = errors.New("backup not found")

// Record is one resumable snapshot. State is the engine's serialized session
// blob and is opaque to the store.
type Record struct {
	ID        string          `json:"id"`
	Room      string          `json:"room"`
	Game      string          `json:"game"`
	CreatedAt time.Time       `json:"createdAt"`
	State     json.RawMessage `json:"state"`
}

// ManifestEntry names a session that was open when the process last exited.
// The next startup's room-join handler uses the manifest to trigger restore.
type ManifestEntry struct {
	ID   string `json:"id"`
	Room string `json:"room"`
	Game string `json:"game"`
}

// Store handles SQLite persistence for backups, the session id counter, and
// the open-games manifest.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS backups (
			id         TEXT PRIMARY KEY,
			room       TEXT NOT NULL,
			game       TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			state      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS counters (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS open_games (
			id   TEXT PRIMARY KEY,
			room TEXT NOT NULL,
			game TEXT NOT NULL
		);
	`)
	return err
}

// Put upserts a backup record. Callers treat it as fire-and-forget but must
// not push an outward render before it returns; last-write-wins on crash is
// acceptable.
func (s *Store) Put(rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO backups (id, room, game, created_at, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			room = excluded.room,
			game = excluded.game,
			created_at = excluded.created_at,
			state = excluded.state
	`, rec.ID, rec.Room, rec.Game, rec.CreatedAt.UTC(), string(rec.State))
	return err
}

// Get retrieves a backup by session id.
func (s *Store) Get(id string) (Record, error) {
	row := s.db.QueryRow("SELECT id, room, game, created_at, state FROM backups WHERE id = ?", id)
	var rec Record
	var state string
	if err := row.Scan(&rec.ID, &rec.Room, &rec.Game, &rec.CreatedAt, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.State = json.RawMessage(state)
	return rec, nil
}

// ByRoom returns all backups held for a room.
func (s *Store) ByRoom(room string) ([]Record, error) {
	rows, err := s.db.Query("SELECT id, room, game, created_at, state FROM backups WHERE room = ?", room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var state string
		if err := rows.Scan(&rec.ID, &rec.Room, &rec.Game, &rec.CreatedAt, &state); err != nil {
			return nil, err
		}
		rec.State = json.RawMessage(state)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a backup.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM backups WHERE id = ?", id)
	return err
}

// DeleteOlderThan is the retention sweep. It removes backups written before
// cutoff, except those the caller still tracks as live: a stale clock must
// never cost a running game its snapshot. Returns the number purged.
func (s *Store) DeleteOlderThan(cutoff time.Time, isStillTracked func(id string) bool) (int, error) {
	rows, err := s.db.Query("SELECT id FROM backups WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if isStillTracked == nil || !isStillTracked(id) {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if err := s.Delete(id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// NextID derives a fresh 4-character base-36 session code from a persisted
// counter. The multiplier spreads consecutive counter values across the code
// space so ids don't look sequential; codes only repeat after 36^4 sessions.
func (s *Store) NextID() (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO counters (name, value) VALUES ('game_id', 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
	`); err != nil {
		return "", err
	}
	var n int64
	if err := tx.QueryRow("SELECT value FROM counters WHERE name = 'game_id'").Scan(&n); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	const space = 36 * 36 * 36 * 36
	code := strconv36((n * 999979) % space)
	if pad := 4 - len(code); pad > 0 {
		code = strings.Repeat("0", pad) + code
	}
	return strings.ToUpper(code), nil
}

func strconv36(n int64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = digits[n%36]
		n /= 36
	}
	return string(b[i:])
}

// SaveManifest replaces the open-games manifest wholesale. Called before a
// requested process exit so the next startup can restore per room.
func (s *Store) SaveManifest(entries []ManifestEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM open_games"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.Exec("INSERT INTO open_games (id, room, game) VALUES (?, ?, ?)", e.ID, e.Room, e.Game); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadManifest returns the open-games manifest from the previous run.
func (s *Store) LoadManifest() ([]ManifestEntry, error) {
	rows, err := s.db.Query("SELECT id, room, game FROM open_games")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ManifestEntry
	for rows.Next() {
		var e ManifestEntry
		if err := rows.Scan(&e.ID, &e.Room, &e.Game); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RemoveManifestEntry drops one restored (or orphaned) manifest entry.
func (s *Store) RemoveManifestEntry(id string) error {
	_, err := s.db.Exec("DELETE FROM open_games WHERE id = ?", id)
	return err
}

// DB exposes the underlying handle so sibling stores can share the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
