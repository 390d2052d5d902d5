package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/note"
	"github.com/okvist/zet/internal/storage"
)

func testCorpus(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	titles := []string{"First Note", "Second Note", "Third Note", "Fourth Note"}
	for i, title := range titles {
		var links []string
		if i > 0 {
			links = []string{note.Slugify(titles[i-1])}
		}
		n, err := note.New(title, "alice", []string{"corpus"}, links, "text")
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
	}
	return dir, store
}

// snapshot captures the observable index state as comparable sets.
type snapshot struct {
	notes map[string]string   // id -> title|author
	tags  map[string][]string // id -> tags
	links map[string][]string // id -> links
}

func takeSnapshot(t *testing.T, indexPath string) snapshot {
	t.Helper()
	s, err := Open(indexPath)
	if err != nil {
		t.Fatalf("open for snapshot: %v", err)
	}
	defer s.Close()

	rows, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	snap := snapshot{
		notes: make(map[string]string),
		tags:  make(map[string][]string),
		links: make(map[string][]string),
	}
	for id, r := range rows {
		snap.notes[id] = r.Title + "|" + r.Author
		tags, _ := s.GetTags(id)
		links, _ := s.GetLinks(id)
		snap.tags[id] = tags
		snap.links[id] = links
	}
	return snap
}

func TestReindexSequential(t *testing.T) {
	dir, store := testCorpus(t)
	indexPath := filepath.Join(dir, ".index.db")

	skipped, err := ReindexSequential(indexPath, store, testLogger())
	if err != nil {
		t.Fatalf("ReindexSequential: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v", skipped)
	}
	snap := takeSnapshot(t, indexPath)
	if len(snap.notes) != 4 {
		t.Errorf("indexed %d notes, want 4", len(snap.notes))
	}
}

func TestReindex_SetEquivalence(t *testing.T) {
	dir, store := testCorpus(t)
	seqPath := filepath.Join(dir, ".seq.db")
	parPath := filepath.Join(dir, ".par.db")

	if _, err := ReindexSequential(seqPath, store, testLogger()); err != nil {
		t.Fatalf("sequential: %v", err)
	}
	if _, err := ReindexParallel(context.Background(), parPath, store, 4, testLogger()); err != nil {
		t.Fatalf("parallel: %v", err)
	}

	seq := takeSnapshot(t, seqPath)
	par := takeSnapshot(t, parPath)
	if !reflect.DeepEqual(seq.notes, par.notes) {
		t.Errorf("primary rows differ:\nseq %v\npar %v", seq.notes, par.notes)
	}
	if !reflect.DeepEqual(seq.tags, par.tags) {
		t.Errorf("tag associations differ:\nseq %v\npar %v", seq.tags, par.tags)
	}
	if !reflect.DeepEqual(seq.links, par.links) {
		t.Errorf("link associations differ:\nseq %v\npar %v", seq.links, par.links)
	}
}

func TestReindex_SkipsCorruptNote(t *testing.T) {
	dir, store := testCorpus(t)
	if err := os.WriteFile(filepath.Join(dir, "broken.md"), []byte("no frontmatter\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(dir, ".index.db")

	skipped, err := ReindexSequential(indexPath, store, testLogger())
	if err != nil {
		t.Fatalf("reindex must not abort on one bad file: %v", err)
	}
	if len(skipped) != 1 || skipped[0].Path != "broken.md" {
		t.Fatalf("skipped = %v, want exactly broken.md", skipped)
	}
	var pe *apperr.ParseError
	if !errors.As(skipped[0].Err, &pe) {
		t.Errorf("skip err = %v, want *apperr.ParseError", skipped[0].Err)
	}
	snap := takeSnapshot(t, indexPath)
	if len(snap.notes) != 4 {
		t.Errorf("indexed %d notes, want the 4 intact ones", len(snap.notes))
	}
}

func TestReindex_ReplacesExistingIndex(t *testing.T) {
	dir, store := testCorpus(t)
	indexPath := filepath.Join(dir, ".index.db")

	// Seed the live index with a row that no file backs anymore.
	s, err := Open(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	ghost := testNote(t, "Ghost Note", nil, nil)
	if err := s.Insert(ghost, "ghost.md"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := ReindexSequential(indexPath, store, testLogger()); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	snap := takeSnapshot(t, indexPath)
	if _, ok := snap.notes[ghost.ID]; ok {
		t.Error("ghost row survived the rebuild swap")
	}
	if len(snap.notes) != 4 {
		t.Errorf("indexed %d notes, want 4", len(snap.notes))
	}
	if _, err := os.Stat(indexPath + RebuildSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Error("rebuild file left behind after swap")
	}
}

func TestReindex_FatalWhenIndexUnavailable(t *testing.T) {
	_, store := testCorpus(t)
	badPath := filepath.Join(t.TempDir(), "missing", "dir", ".index.db")
	if _, err := ReindexSequential(badPath, store, testLogger()); !errors.Is(err, apperr.ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
	if _, err := ReindexParallel(context.Background(), badPath, store, 2, testLogger()); !errors.Is(err, apperr.ErrIndexUnavailable) {
		t.Errorf("parallel err = %v, want ErrIndexUnavailable", err)
	}
}
