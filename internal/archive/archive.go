// Package archive uploads finished-game records for long-term storage.
// Uploads are best-effort: the in-memory outcome of a session never depends
// on archival succeeding.
package archive

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Record is the archival row for one concluded game.
type Record struct {
	ID      string          `json:"id"`
	Game    string          `json:"game"`
	Room    string          `json:"room"`
	Players json.RawMessage `json:"players"`
	Created time.Time       `json:"created"`
	Started time.Time       `json:"started"`
	Ended   time.Time       `json:"ended"`
	Log     []string        `json:"log"`
	Outcome json.RawMessage `json:"outcome,omitempty"`
}

// Store writes archival rows. It shares the backup store's database handle.
type Store struct {
	db *sql.DB
}

// New creates an archive store over an existing database.
func New(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id      TEXT NOT NULL,
			game    TEXT NOT NULL,
			room    TEXT NOT NULL,
			players TEXT NOT NULL,
			created DATETIME NOT NULL,
			started DATETIME NOT NULL,
			ended   DATETIME NOT NULL,
			log     TEXT NOT NULL,
			outcome TEXT,
			PRIMARY KEY (game, id)
		)
	`)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Upload inserts a finished game. A re-upload of the same (game, id) pair
// overwrites the earlier row.
func (s *Store) Upload(rec Record) error {
	logJSON, err := json.Marshal(rec.Log)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO games (id, game, room, players, created, started, ended, log, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game, id) DO UPDATE SET
			players = excluded.players,
			ended = excluded.ended,
			log = excluded.log,
			outcome = excluded.outcome
	`, rec.ID, rec.Game, rec.Room, string(rec.Players),
		rec.Created.UTC(), rec.Started.UTC(), rec.Ended.UTC(),
		string(logJSON), nullable(rec.Outcome))
	return err
}

// Get retrieves one archived game.
func (s *Store) Get(game, id string) (Record, error) {
	row := s.db.QueryRow(
		"SELECT id, game, room, players, created, started, ended, log, outcome FROM games WHERE game = ? AND id = ?",
		game, id,
	)
	var rec Record
	var players, logJSON string
	var outcome sql.NullString
	if err := row.Scan(&rec.ID, &rec.Game, &rec.Room, &players, &rec.Created, &rec.Started, &rec.Ended, &logJSON, &outcome); err != nil {
		return Record{}, err
	}
	rec.Players = json.RawMessage(players)
	if err := json.Unmarshal([]byte(logJSON), &rec.Log); err != nil {
		return Record{}, err
	}
	if outcome.Valid {
		rec.Outcome = json.RawMessage(outcome.String)
	}
	return rec, nil
}

func nullable(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
