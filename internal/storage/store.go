package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS clan_snapshots (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp           INTEGER NOT NULL,
    clan_tag            TEXT    NOT NULL DEFAULT '',
    clan_name           TEXT    NOT NULL DEFAULT '',
    clan_level          INTEGER NOT NULL DEFAULT 0,
    clan_points         INTEGER NOT NULL DEFAULT 0,
    clan_capital_points INTEGER NOT NULL DEFAULT 0,
    members             INTEGER NOT NULL DEFAULT 0,
    war_wins            INTEGER NOT NULL DEFAULT 0,
    war_losses          INTEGER NOT NULL DEFAULT 0,
    required_trophies   INTEGER NOT NULL DEFAULT 0,
    created_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clan_snapshots_ts ON clan_snapshots (timestamp);
CREATE INDEX IF NOT EXISTS idx_clan_snapshots_tag_ts ON clan_snapshots (clan_tag, timestamp);

CREATE TABLE IF NOT EXISTS players (
    tag             TEXT PRIMARY KEY,
    name            TEXT    NOT NULL DEFAULT '',
    town_hall_level INTEGER NOT NULL DEFAULT 0,
    clan_role       TEXT    NOT NULL DEFAULT '',
    last_seen       INTEGER NOT NULL DEFAULT 0,
    activity_score  INTEGER NOT NULL DEFAULT 0,
    updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS player_war_stats (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    player_tag         TEXT    NOT NULL,
    timestamp          INTEGER NOT NULL,
    war_stars          INTEGER NOT NULL DEFAULT 0,
    attack_wins        INTEGER NOT NULL DEFAULT 0,
    defense_wins       INTEGER NOT NULL DEFAULT 0,
    donations          INTEGER NOT NULL DEFAULT 0,
    donations_received INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_player_war_stats_tag_ts ON player_war_stats (player_tag, timestamp);
CREATE INDEX IF NOT EXISTS idx_player_war_stats_ts ON player_war_stats (timestamp);
`

// Open opens (creating if necessary) the embedded database file and ensures
// the schema exists. Timestamps are stored as unix milliseconds so ordering
// and range scans stay index-friendly.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database.path is required")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL lets the sweeps and the HTTP readers interleave with the poller's
	// writes; each statement is individually atomic, which is all the
	// maintenance logic relies on.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Store aggregates access to snapshots and player records.
type Store struct {
	db *sql.DB
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}
