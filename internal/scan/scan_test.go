package scan_test

import (
	"errors"
	"testing"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/scan"
	"github.com/okvist/zet/internal/testutil"
)

func TestScan_CollectsNotesAndSkips(t *testing.T) {
	dir, store := testutil.Vault(t)

	a := testutil.Note(t, "Alpha", "alice", []string{"a"}, nil, "")
	b := testutil.Note(t, "Beta", "alice", nil, []string{"alpha"}, "")
	testutil.WriteNote(t, store, a)
	testutil.WriteNote(t, store, b)
	testutil.Corrupt(t, dir, "broken.md")

	entries, skipped, err := scan.Scan(store, testutil.Logger())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
	if len(skipped) != 1 || skipped[0].Path != "broken.md" {
		t.Fatalf("skipped = %v, want broken.md", skipped)
	}
	var pe *apperr.ParseError
	if !errors.As(skipped[0].Err, &pe) {
		t.Fatalf("skip err = %v, want *apperr.ParseError", skipped[0].Err)
	}
	if pe.Path != "broken.md" {
		t.Errorf("parse error path = %q", pe.Path)
	}
}

func TestScan_EmptyVault(t *testing.T) {
	_, store := testutil.Vault(t)
	entries, skipped, err := scan.Scan(store, testutil.Logger())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 0 || len(skipped) != 0 {
		t.Errorf("entries = %v, skipped = %v, want none", entries, skipped)
	}
}

func TestFile_ReadError(t *testing.T) {
	_, store := testutil.Vault(t)
	if _, err := scan.File(store, "missing.md"); err == nil {
		t.Error("expected error for missing file")
	}
}
