// Package index provides the SQLite-backed note index: the relational
// projection of the vault (primary rows, tags, links) plus the
// synchronization paths that keep it consistent with the files on disk.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okvist/zet/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS zettelkasten (
	zk_id         TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	author        TEXT NOT NULL,
	path          TEXT NOT NULL,
	creation_date DATETIME NOT NULL,
	last_changed  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	tag   TEXT NOT NULL,
	zk_id TEXT NOT NULL,
	PRIMARY KEY (zk_id, tag),
	FOREIGN KEY (zk_id) REFERENCES zettelkasten(zk_id)
		ON UPDATE CASCADE
		ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS links (
	link  TEXT NOT NULL,
	zk_id TEXT NOT NULL,
	PRIMARY KEY (zk_id, link),
	FOREIGN KEY (zk_id) REFERENCES zettelkasten(zk_id)
		ON UPDATE CASCADE
		ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_links_link ON links(link);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
`

const dropSQL = `
DROP TABLE IF EXISTS links;
DROP TABLE IF EXISTS tags;
DROP TABLE IF EXISTS zettelkasten;
`

// Store owns the index database file. It is the only component that
// mutates it; every mutation runs in a single transaction.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the index database and applies the schema.
// Failure to open or create the file is fatal: ErrIndexUnavailable.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", apperr.ErrIndexUnavailable, path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: open %s: %v", apperr.ErrIndexUnavailable, path, err)
	}
	s := &Store{conn: conn, path: path}
	if err := s.Init(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the three tables if absent. Idempotent.
func (s *Store) Init() error {
	if _, err := s.conn.Exec(schemaSQL); err != nil {
		return fmt.Errorf("%w: apply schema: %v", apperr.ErrIndexUnavailable, err)
	}
	return nil
}

// Drop removes all tables. Used only during reinitialization.
func (s *Store) Drop() error {
	if _, err := s.conn.Exec(dropSQL); err != nil {
		return fmt.Errorf("index: drop schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
