// Package store is the SQLite-backed home for the core's global,
// cross-agent data: tasks, events (with recurrence rules), articles,
// and settings. Per-agent note trees live on the filesystem instead,
// in package notestore — see §3's namespace invariant.
//
// Grounded on the namespaced key-value store in nugget-thane-ai-agent's
// internal/opstate/store.go: one *sql.DB wrapped in a struct, an
// idempotent migrate() run at open time, and narrow parameterized
// methods rather than a generic query builder.
//
// Called by: dispatcher (every tasks/events/articles/settings action).
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB owns the shared SQLite connection and schema for every global
// store. Tasks, Events, Articles, and Settings are thin typed views
// over the same *sql.DB, mirroring how opstate.Store wraps one
// connection behind several narrow method sets.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// runs all migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// The core's concurrency model serializes all blocking work onto a
	// worker pool, but SQLite itself only tolerates one writer; capping
	// the pool to a single connection lets the driver's own mutex do
	// that serialization instead of relying on caller discipline.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id         INTEGER PRIMARY KEY,
			title      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'todo',
			due_date   TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY,
			title      TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time   TEXT,
			location   TEXT,
			notes      TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recurrence_rules (
			event_id  INTEGER PRIMARY KEY REFERENCES events(id) ON DELETE CASCADE,
			frequency TEXT NOT NULL,
			interval  INTEGER NOT NULL DEFAULT 1,
			end_date  TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id         INTEGER PRIMARY KEY,
			title      TEXT NOT NULL,
			authors    TEXT NOT NULL DEFAULT '[]',
			abstract   TEXT,
			year       INTEGER,
			source_url TEXT,
			arxiv_id   TEXT,
			s2_id      TEXT,
			pdf_path   TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS article_tags (
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			tag        TEXT NOT NULL,
			UNIQUE (article_id, tag)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// lowestFreeID scans ids already in use in table (restricted by
// activeWhere, which may be empty) and returns the smallest positive
// integer not among them, per §3's id-assignment rule for Task and
// Event.
func lowestFreeID(tx queryer, table, activeWhere string) (int64, error) {
	query := fmt.Sprintf("SELECT id FROM %s", table)
	if activeWhere != "" {
		query += " WHERE " + activeWhere
	}
	query += " ORDER BY id ASC"

	rows, err := tx.Query(query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var want int64 = 1
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		if id == want {
			want++
		} else if id > want {
			break
		}
	}
	return want, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so lowestFreeID
// can run inside a transaction when callers need id assignment and
// insertion to be atomic.
type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}
