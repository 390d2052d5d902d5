// Package scan walks the note corpus on disk and produces the
// authoritative set of parsed notes that the index must reflect.
package scan

import (
	"errors"
	"log/slog"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/note"
	"github.com/okvist/zet/internal/storage"
)

// Entry pairs a parsed note with its vault-relative path.
type Entry struct {
	Path string
	Note *note.Note
}

// Skipped records a note file that could not be read or parsed.
// A scan never aborts because of a single bad file.
type Skipped struct {
	Path string
	Err  error
}

// Scan reads every note file under the vault root. Files that fail to
// read or parse are collected in the second return value; the error is
// non-nil only when the corpus itself cannot be listed.
func Scan(store storage.Provider, logger *slog.Logger) ([]Entry, []Skipped, error) {
	paths, err := store.List()
	if err != nil {
		return nil, nil, err
	}

	var (
		entries []Entry
		skipped []Skipped
	)
	for _, p := range paths {
		n, err := File(store, p)
		if err != nil {
			skipped = append(skipped, Skipped{Path: p, Err: err})
			logger.Warn("scan: skipping note",
				slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, Entry{Path: p, Note: n})
	}
	return entries, skipped, nil
}

// File reads and parses a single note file, stamping parse failures
// with the offending path.
func File(store storage.Provider, path string) (*note.Note, error) {
	data, err := store.Read(path)
	if err != nil {
		return nil, err
	}
	n, err := note.Parse(data)
	if err != nil {
		var pe *apperr.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return n, nil
}
