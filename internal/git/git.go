// Package git wraps the external git binary for vault version control.
//
// Every operation shells out and folds the command's combined output
// into an ErrVersionControl-wrapped error on failure; nothing is
// swallowed. The wrapper is deliberately thin: the vault orchestrator
// decides when to commit and push.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/okvist/zet/internal/apperr"
)

// Repo is a git repository rooted at a vault directory.
type Repo struct {
	root string
}

// Open returns a Repo for an existing repository. It fails when root is
// not a directory or holds no .git.
func Open(root string) (*Repo, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", apperr.ErrVersionControl, root)
	}
	gitDir, err := os.Stat(filepath.Join(root, ".git"))
	if err != nil || !gitDir.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a git repository", apperr.ErrVersionControl, root)
	}
	return &Repo{root: root}, nil
}

// Init initializes a new repository at root with an initial commit of
// the current vault contents. It fails when root is already a repo.
func Init(ctx context.Context, root string) (*Repo, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", apperr.ErrVersionControl, root)
	}
	if gi, err := os.Stat(filepath.Join(root, ".git")); err == nil && gi.IsDir() {
		return nil, fmt.Errorf("%w: %s is already a git repository", apperr.ErrVersionControl, root)
	}

	r := &Repo{root: root}
	if _, err := r.run(ctx, "init"); err != nil {
		return nil, err
	}
	if _, err := r.run(ctx, "add", "-A"); err != nil {
		return nil, err
	}
	if _, err := r.run(ctx, "commit", "-m", "Initial commit"); err != nil {
		return nil, err
	}
	return r, nil
}

// Root returns the repository root directory.
func (r *Repo) Root() string { return r.root }

// Add stages all changes.
func (r *Repo) Add(ctx context.Context) error {
	_, err := r.run(ctx, "add", "-A")
	return err
}

// Commit commits the staging area.
func (r *Repo) Commit(ctx context.Context, msg string) error {
	if msg == "" {
		msg = "commit notes"
	}
	_, err := r.run(ctx, "commit", "-m", msg)
	return err
}

// Push pushes to origin. It fails up front when no origin is configured.
func (r *Repo) Push(ctx context.Context) error {
	ok, err := r.originExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: origin does not exist", apperr.ErrVersionControl)
	}
	_, err = r.run(ctx, "push")
	return err
}

// Pull pulls from origin.
func (r *Repo) Pull(ctx context.Context) error {
	_, err := r.run(ctx, "pull")
	return err
}

// AddOrigin configures the remote origin and pushes the current branch
// upstream. It fails when origin already exists.
func (r *Repo) AddOrigin(ctx context.Context, origin string) error {
	ok, err := r.originExists(ctx)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: origin already exists", apperr.ErrVersionControl)
	}
	if _, err := r.run(ctx, "remote", "add", "origin", origin); err != nil {
		return err
	}
	_, err = r.run(ctx, "push", "--set-upstream", "origin", "HEAD")
	return err
}

// Status returns `git status` output.
func (r *Repo) Status(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "status")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// originExists probes for a configured remote.origin.url. git exits 1
// when the key is unset; any other failure is a real error.
func (r *Repo) originExists(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "config", "--get", "remote.origin.url")
	cmd.Dir = r.root
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("%w: probe origin: %v", apperr.ErrVersionControl, err)
}

// run executes git with the repo root as working directory, returning
// combined output. Non-zero exit becomes ErrVersionControl carrying the
// tool's diagnostics.
func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%w: git %s: %v\n%s",
			apperr.ErrVersionControl, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}
