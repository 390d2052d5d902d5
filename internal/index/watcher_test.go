package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/note"
	"github.com/okvist/zet/internal/storage"
)

func watcherEnv(t *testing.T) (string, *storage.FS, *Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Open(filepath.Join(t.TempDir(), ".index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return dir, store, s
}

// eventually polls fn until it returns true or the timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeTestNote(t *testing.T, store *storage.FS, title string) *note.Note {
	t.Helper()
	n, err := note.New(title, "alice", nil, nil, "watched")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := n.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(n.Filename(), raw); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, store, s := watcherEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, s, store, dir, testLogger())
	time.Sleep(100 * time.Millisecond)

	n := writeTestNote(t, store, "Watch Me")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := s.GetNote(n.ID)
		return err == nil
	}, "new note not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir, store, s := watcherEnv(t)
	n := writeTestNote(t, store, "Delete Me")
	if err := s.Insert(n, n.Filename()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, s, store, dir, testLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, n.Filename()))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := s.GetNote(n.ID)
		return errors.Is(err, apperr.ErrNotFound)
	}, "deleted note still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, store, s := watcherEnv(t)
	n := writeTestNote(t, store, "Old Name")
	if err := s.Insert(n, n.Filename()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, s, store, dir, testLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, n.Filename()), filepath.Join(dir, "moved.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		row, err := s.GetNote(n.ID)
		return err == nil && row.Path == "moved.md"
	}, "rename not reconciled to new path")
}

func TestWatcher_IgnoresScratchDir(t *testing.T) {
	dir, store, s := watcherEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, s, store, dir, testLogger())
	time.Sleep(100 * time.Millisecond)

	scratch := filepath.Join(dir, storage.ScratchDir)
	_ = os.MkdirAll(scratch, 0o755)
	_ = os.WriteFile(filepath.Join(scratch, "draft.md"), []byte("scratch\n"), 0o644)

	time.Sleep(500 * time.Millisecond)
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch file indexed: %+v", entries)
	}
}
