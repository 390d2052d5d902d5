package index

import (
	"errors"
	"testing"
	"time"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/scan"
)

func TestSyncOne_Routing(t *testing.T) {
	s := testStore(t)
	n := testNote(t, "Routed", []string{"t"}, nil)

	if err := s.SyncOne(n, n.Filename(), OpCreate); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.GetNote(n.ID); err != nil {
		t.Fatalf("note not indexed after create: %v", err)
	}

	upd := n.Touch()
	upd.Title = "Rerouted"
	if err := s.SyncOne(upd, upd.Filename(), OpUpdate); err != nil {
		t.Fatalf("update: %v", err)
	}
	row, _ := s.GetNote(n.ID)
	if row.Title != "Rerouted" {
		t.Errorf("title = %q after update", row.Title)
	}

	if err := s.SyncOne(n, n.Filename(), OpDelete); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetNote(n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still indexed after delete: %v", err)
	}
}

func TestReconcile_IndexesMissingFile(t *testing.T) {
	s := testStore(t)
	n := testNote(t, "Unindexed", nil, nil)

	// Simulates a crash after the file write but before the index write.
	err := s.Reconcile([]scan.Entry{{Path: n.Filename(), Note: n}}, testLogger())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	row, err := s.GetNote(n.ID)
	if err != nil {
		t.Fatalf("note not healed into index: %v", err)
	}
	if row.Path != n.Filename() {
		t.Errorf("path = %q", row.Path)
	}
}

func TestReconcile_RemovesStaleRow(t *testing.T) {
	s := testStore(t)
	n := testNote(t, "Gone", nil, nil)
	if err := s.Insert(n, n.Filename()); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// File no longer on disk: empty scan.
	if err := s.Reconcile(nil, testLogger()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, err := s.GetNote(n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale row survived reconcile: %v", err)
	}
}

func TestReconcile_UpdatesChangedNote(t *testing.T) {
	s := testStore(t)
	n := testNote(t, "Stale Copy", nil, nil)
	if err := s.Insert(n, n.Filename()); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	edited := *n
	edited.Title = "Fresh Copy"
	edited.LastChanged = n.LastChanged.Add(time.Hour)
	err := s.Reconcile([]scan.Entry{{Path: n.Filename(), Note: &edited}}, testLogger())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	row, _ := s.GetNote(n.ID)
	if row.Title != "Fresh Copy" {
		t.Errorf("title = %q, want reconciled edit", row.Title)
	}
}

func TestReconcile_NoopWhenConsistent(t *testing.T) {
	s := testStore(t)
	n := testNote(t, "Settled", nil, nil)
	if err := s.Insert(n, n.Filename()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Reconcile([]scan.Entry{{Path: n.Filename(), Note: n}}, testLogger()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	entries, _ := s.List()
	if len(entries) != 1 {
		t.Errorf("entries = %+v", entries)
	}
}
