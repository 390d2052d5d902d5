package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/note"
)

// Row is the primary-table projection of a note.
type Row struct {
	ID           string
	Title        string
	Author       string
	Path         string
	CreationDate time.Time
	LastChanged  time.Time
}

// Entry is the lightweight (id, title) pair returned by List.
type Entry struct {
	ID    string
	Title string
}

// Insert adds the primary row plus all tag and link rows in one
// transaction. A duplicate id surfaces as ErrConflict.
func (s *Store) Insert(n *note.Note, path string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO zettelkasten (zk_id, title, author, path, creation_date, last_changed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Author, path, n.CreationDate, n.LastChanged)
	if err != nil {
		return wrapConflict("insert note", err)
	}

	if err := insertAssociations(tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// Update replaces the primary row's mutable fields and fully replaces the
// tag and link rows, all in one transaction. An unknown id surfaces as
// ErrConflict.
func (s *Store) Update(n *note.Note, path string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		UPDATE zettelkasten SET title = ?, author = ?, path = ?, last_changed = ?
		WHERE zk_id = ?
	`, n.Title, n.Author, path, n.LastChanged, n.ID)
	if err != nil {
		return wrapConflict("update note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("index: update note: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: update of unknown id %s", apperr.ErrConflict, n.ID)
	}

	// Full replace, not diff.
	if _, err := tx.Exec(`DELETE FROM tags WHERE zk_id = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE zk_id = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if err := insertAssociations(tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the primary row; tag and link rows go with it through
// the cascading foreign keys. An unknown id surfaces as ErrNotFound.
func (s *Store) Delete(id string) error {
	res, err := s.conn.Exec(`DELETE FROM zettelkasten WHERE zk_id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %s", apperr.ErrNotFound, id)
	}
	return nil
}

// List returns every (id, title) pair. Order is not meaningful; callers
// sort if they need to.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.conn.Query(`SELECT zk_id, title FROM zettelkasten`)
	if err != nil {
		return nil, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Title); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetNote returns the primary row for id, or ErrNotFound.
func (s *Store) GetNote(id string) (*Row, error) {
	var r Row
	err := s.conn.QueryRow(`
		SELECT zk_id, title, author, path, creation_date, last_changed
		FROM zettelkasten WHERE zk_id = ?
	`, id).Scan(&r.ID, &r.Title, &r.Author, &r.Path, &r.CreationDate, &r.LastChanged)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &r, nil
}

// IDByPath returns the id of the note indexed at the given vault path,
// or ErrNotFound.
func (s *Store) IDByPath(path string) (string, error) {
	var id string
	err := s.conn.QueryRow(`SELECT zk_id FROM zettelkasten WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: path %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("index: id by path: %w", err)
	}
	return id, nil
}

// GetLinks returns the outgoing link targets for id. An unknown id
// yields an empty set, not an error.
func (s *Store) GetLinks(id string) ([]string, error) {
	return s.column(`SELECT link FROM links WHERE zk_id = ? ORDER BY link`, id)
}

// GetTags returns the tags associated with id, empty when unknown.
func (s *Store) GetTags(id string) ([]string, error) {
	return s.column(`SELECT tag FROM tags WHERE zk_id = ? ORDER BY tag`, id)
}

// Backlinks returns the ids of every note whose links include target.
func (s *Store) Backlinks(target string) ([]string, error) {
	return s.column(`SELECT zk_id FROM links WHERE link = ? ORDER BY zk_id`, target)
}

// All returns every primary row keyed by id. Used by the reconcile pass.
func (s *Store) All() (map[string]Row, error) {
	rows, err := s.conn.Query(`
		SELECT zk_id, title, author, path, creation_date, last_changed FROM zettelkasten
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Row)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Title, &r.Author, &r.Path, &r.CreationDate, &r.LastChanged); err != nil {
			return nil, err
		}
		out[r.ID] = r
	}
	return out, rows.Err()
}

func (s *Store) column(query string, arg any) ([]string, error) {
	rows, err := s.conn.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// insertAssociations bulk-inserts the tag and link rows for n inside tx.
func insertAssociations(tx *sql.Tx, n *note.Note) error {
	if len(n.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO tags (tag, zk_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, tag := range n.Tags {
			if _, err := stmt.Exec(tag, n.ID); err != nil {
				return wrapConflict("insert tag", err)
			}
		}
	}
	if len(n.Links) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO links (link, zk_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, link := range n.Links {
			if _, err := stmt.Exec(link, n.ID); err != nil {
				return wrapConflict("insert link", err)
			}
		}
	}
	return nil
}

// wrapConflict maps sqlite constraint violations onto ErrConflict so
// callers can match with errors.Is.
func wrapConflict(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s: %v", apperr.ErrConflict, op, err)
	}
	return fmt.Errorf("index: %s: %w", op, err)
}
