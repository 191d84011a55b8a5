// Package db is the embedded SQLite store for cards and their skills.
// Column names and indexes are part of the external contract: downstream
// consumers query the file directly.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	"cardsync/internal/logger"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the store at path, enables foreign keys, and
// initializes the schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.init(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SqlDB returns the underlying *sql.DB for read-only consumers.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}

func (d *DB) init() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS cards (
			card_id              INTEGER PRIMARY KEY,
			name                 TEXT NOT NULL,
			evolve_marker        TEXT,
			card_type            TEXT,
			hp                   INTEGER,
			element_code         TEXT,
			element              TEXT,
			regulation_mark      TEXT,
			collector_number     TEXT,
			expansion_code       TEXT,
			expansion_name       TEXT,
			expansion_symbol_url TEXT,
			illustrator          TEXT,
			image_url            TEXT,
			weakness_code        TEXT,
			weakness_value       TEXT,
			resistance_code      TEXT,
			resistance_value     TEXT,
			retreat_cost         INTEGER,
			pokedex_no           INTEGER,
			height_m             REAL,
			weight_kg            REAL,
			description          TEXT,
			source_url           TEXT NOT NULL,
			fetched_at           TEXT NOT NULL,
			raw_json             TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name);
		CREATE INDEX IF NOT EXISTS idx_cards_expansion_code ON cards(expansion_code);
		CREATE INDEX IF NOT EXISTS idx_cards_collector_number ON cards(collector_number);

		CREATE TABLE IF NOT EXISTS skills (
			skill_id          INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id           INTEGER NOT NULL,
			idx               INTEGER NOT NULL,
			kind              TEXT,
			name              TEXT,
			cost_json         TEXT,
			damage            TEXT,
			effect            TEXT,
			effect_text_norm  TEXT,
			instructions_json TEXT,
			FOREIGN KEY(card_id) REFERENCES cards(card_id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_skills_card_id ON skills(card_id);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Additive upgrades for stores created by older builds. "duplicate
	// column" is the expected steady state and is swallowed.
	for _, alter := range []string{
		"ALTER TABLE skills ADD COLUMN effect_text_norm TEXT;",
		"ALTER TABLE skills ADD COLUMN instructions_json TEXT;",
	} {
		if _, err := d.sql.Exec(alter); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				logger.Warn("db", fmt.Sprintf("additive upgrade: %v", err))
			}
		}
	}

	var v string
	err = d.sql.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&v)
	if err == sql.ErrNoRows {
		_, err = d.sql.Exec("INSERT INTO meta(key, value) VALUES('schema_version', ?)", fmt.Sprint(schemaVersion))
	}
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	return nil
}

// ExistingCardIDs returns the set of card IDs already in the store.
func (d *DB) ExistingCardIDs() (map[int64]bool, error) {
	rows, err := d.sql.Query("SELECT card_id FROM cards")
	if err != nil {
		return nil, fmt.Errorf("existing card ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// CountCards returns the number of card rows.
func (d *DB) CountCards() (int, error) {
	var n int
	err := d.sql.QueryRow("SELECT COUNT(*) FROM cards").Scan(&n)
	return n, err
}
