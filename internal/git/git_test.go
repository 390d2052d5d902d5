package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okvist/zet/internal/apperr"
)

func gitEnv(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	t.Setenv("GIT_AUTHOR_NAME", "zet test")
	t.Setenv("GIT_AUTHOR_EMAIL", "zet@example.invalid")
	t.Setenv("GIT_COMMITTER_NAME", "zet test")
	t.Setenv("GIT_COMMITTER_EMAIL", "zet@example.invalid")
	return t.TempDir()
}

// seed gives the repo-to-be something to commit, the way vault
// initialization always writes .gitignore before git init.
func seed(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(".index.db*\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInitAndOpen(t *testing.T) {
	dir := gitEnv(t)
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Init(context.Background(), dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if r.Root() != dir {
		t.Errorf("root = %q", r.Root())
	}

	// Init on an existing repo must fail.
	if _, err := Init(context.Background(), dir); !errors.Is(err, apperr.ErrVersionControl) {
		t.Errorf("second Init err = %v, want ErrVersionControl", err)
	}

	if _, err := Open(dir); err != nil {
		t.Errorf("Open: %v", err)
	}
}

func TestOpen_NotARepo(t *testing.T) {
	dir := gitEnv(t)
	if _, err := Open(dir); !errors.Is(err, apperr.ErrVersionControl) {
		t.Errorf("err = %v, want ErrVersionControl", err)
	}
}

func TestAddCommitStatus(t *testing.T) {
	dir := gitEnv(t)
	seed(t, dir)
	r, err := Init(context.Background(), dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "new.md"), []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := r.Add(ctx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Commit(ctx, "new note: new"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	status, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !strings.Contains(status, "working tree clean") {
		t.Errorf("status = %q, want clean tree", status)
	}
}

func TestCommit_FailureCarriesOutput(t *testing.T) {
	dir := gitEnv(t)
	seed(t, dir)
	r, err := Init(context.Background(), dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	// Nothing staged: commit fails and the diagnostic must survive.
	err = r.Commit(context.Background(), "empty")
	if !errors.Is(err, apperr.ErrVersionControl) {
		t.Fatalf("err = %v, want ErrVersionControl", err)
	}
	if !strings.Contains(err.Error(), "git commit") {
		t.Errorf("error lost command context: %v", err)
	}
}

func TestPush_WithoutOrigin(t *testing.T) {
	dir := gitEnv(t)
	seed(t, dir)
	r, err := Init(context.Background(), dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	err = r.Push(context.Background())
	if !errors.Is(err, apperr.ErrVersionControl) {
		t.Fatalf("err = %v, want ErrVersionControl", err)
	}
	if !strings.Contains(err.Error(), "origin does not exist") {
		t.Errorf("err = %v, want origin hint", err)
	}
}
