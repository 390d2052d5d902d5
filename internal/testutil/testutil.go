// Package testutil provides shared test helpers for setting up vaults
// and index databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/okvist/zet/internal/index"
	"github.com/okvist/zet/internal/note"
	"github.com/okvist/zet/internal/storage"
)

// Logger returns a quiet slog logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Index creates a temporary index database that is cleaned up with the test.
func Index(t *testing.T) *index.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".index.db")
	s, err := index.Open(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Vault creates a temporary vault directory with a storage provider.
func Vault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Note builds a valid note or fails the test.
func Note(t *testing.T, title, author string, tags, links []string, body string) *note.Note {
	t.Helper()
	n, err := note.New(title, author, tags, links, body)
	if err != nil {
		t.Fatalf("new note: %v", err)
	}
	return n
}

// WriteNote serializes n into the vault and returns its relative path.
func WriteNote(t *testing.T, store *storage.FS, n *note.Note) string {
	t.Helper()
	raw, err := n.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if err := store.Write(n.Filename(), raw); err != nil {
		t.Fatalf("write note: %v", err)
	}
	return n.Filename()
}

// Corrupt writes a file that will not parse as a note.
func Corrupt(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("no frontmatter here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}
