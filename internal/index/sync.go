package index

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/note"
	"github.com/okvist/zet/internal/scan"
)

// Op selects the index operation for a single-note sync.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// SyncOne routes a single-note change to the matching store operation.
// This is the hot path behind every new/edit/delete user action.
func (s *Store) SyncOne(n *note.Note, path string, op Op) error {
	switch op {
	case OpCreate:
		return s.Insert(n, path)
	case OpUpdate:
		return s.Update(n, path)
	case OpDelete:
		return s.Delete(n.ID)
	}
	return fmt.Errorf("index: unknown sync op %d", int(op))
}

// upsert inserts or updates depending on whether the id is indexed.
// Used by the reconcile pass and the watcher, where the disk state is
// authoritative and the prior index state is unknown.
func (s *Store) upsert(n *note.Note, path string) error {
	if _, err := s.GetNote(n.ID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return s.Insert(n, path)
		}
		return err
	}
	return s.Update(n, path)
}

// Reconcile brings the index in line with the scanned corpus: files
// missing from the index are inserted, stale or moved files updated,
// and rows whose file is gone deleted. This heals the gap left by a
// crash between a note-file write and its index write.
func (s *Store) Reconcile(entries []scan.Entry, logger *slog.Logger) error {
	rows, err := s.All()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		disk[e.Note.ID] = struct{}{}

		row, indexed := rows[e.Note.ID]
		if indexed && row.Path == e.Path && row.LastChanged.Equal(e.Note.LastChanged) &&
			row.Title == e.Note.Title && row.Author == e.Note.Author {
			continue
		}
		if err := s.upsert(e.Note, e.Path); err != nil {
			logger.Warn("reconcile: index write failed",
				slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("reconcile: indexed", slog.String("path", e.Path), slog.String("id", e.Note.ID))
	}

	for id := range rows {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := s.Delete(id); err != nil {
			logger.Warn("reconcile: delete failed",
				slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("reconcile: removed stale", slog.String("id", id))
	}
	return nil
}
