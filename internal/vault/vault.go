// Package vault is the top-level façade over the note model, the vault
// file system, the index store, and the optional git repository. Every
// user-facing operation (new/edit/delete/print/list/reindex) goes
// through here so the autocommit/autosync policy is applied uniformly.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/editor"
	"github.com/okvist/zet/internal/git"
	"github.com/okvist/zet/internal/index"
	"github.com/okvist/zet/internal/note"
	"github.com/okvist/zet/internal/scan"
	"github.com/okvist/zet/internal/storage"
)

const (
	// IndexFile is the index database inside the vault root. Its
	// existence marks the vault as initialized.
	IndexFile = ".index.db"

	// LastFile records the id of the most recently created or edited
	// note; "last" resolves against it.
	LastFile = ".last"
)

var gitignoreEntries = []string{IndexFile + "*", storage.ScratchDir + "/", LastFile}

// Zettelkasten coordinates one vault. The index store is the only
// component allowed to mutate the index file; the repo, when present,
// mirrors the note files into git history.
type Zettelkasten struct {
	root       string
	author     string
	store      *storage.FS
	index      *index.Store
	repo       *git.Repo
	autocommit bool
	autosync   bool
	editorBin  string
	edit       func(ctx context.Context, absPath string) error
	logger     *slog.Logger
}

// Option configures a Zettelkasten.
type Option func(*Zettelkasten)

// WithAutocommit commits to git after every mutating operation.
func WithAutocommit(on bool) Option { return func(z *Zettelkasten) { z.autocommit = on } }

// WithAutosync pushes to origin after every autocommit.
func WithAutosync(on bool) Option { return func(z *Zettelkasten) { z.autosync = on } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(z *Zettelkasten) { z.logger = l } }

// WithEditorBin sets the preferred editor binary for interactive edits.
func WithEditorBin(bin string) Option { return func(z *Zettelkasten) { z.editorBin = bin } }

// WithEditFunc replaces the interactive editor invocation. Used by the
// tests to edit notes without a terminal.
func WithEditFunc(fn func(ctx context.Context, absPath string) error) Option {
	return func(z *Zettelkasten) { z.edit = fn }
}

// InitOptions control vault initialization.
type InitOptions struct {
	Git    bool   // initialize a git repository for the vault
	Origin string // optional remote origin, implies Git
	Force  bool   // wipe and reinitialize an existing vault
}

func newZettelkasten(root, author string, opts []Option) *Zettelkasten {
	z := &Zettelkasten{root: root, author: author}
	for _, o := range opts {
		o(z)
	}
	if z.logger == nil {
		z.logger = slog.Default()
	}
	if z.edit == nil {
		z.edit = func(ctx context.Context, absPath string) error {
			bin, err := editor.Resolve(z.editorBin)
			if err != nil {
				return err
			}
			return editor.Open(ctx, bin, absPath)
		}
	}
	return z
}

// Initialize creates a new vault at root. It fails with
// ErrAlreadyInitialized when the vault already holds an index, unless
// opts.Force wipes the prior notes and index first.
func Initialize(ctx context.Context, root, author string, opts InitOptions, options ...Option) (*Zettelkasten, error) {
	z := newZettelkasten(root, author, options)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create root: %w", err)
	}
	indexPath := filepath.Join(root, IndexFile)

	if _, err := os.Stat(indexPath); err == nil {
		if !opts.Force {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAlreadyInitialized, root)
		}
		if err := wipe(root); err != nil {
			return nil, err
		}
	}

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	z.store = store

	if err := os.MkdirAll(filepath.Join(root, storage.ScratchDir), 0o755); err != nil {
		return nil, fmt.Errorf("vault: create scratch dir: %w", err)
	}

	if opts.Git || opts.Origin != "" {
		ignore := strings.Join(gitignoreEntries, "\n") + "\n"
		if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(ignore), 0o644); err != nil {
			return nil, fmt.Errorf("vault: write gitignore: %w", err)
		}
		repo, err := git.Open(root)
		if err != nil {
			repo, err = git.Init(ctx, root)
			if err != nil {
				return nil, err
			}
		}
		z.repo = repo
		if opts.Origin != "" {
			if err := repo.AddOrigin(ctx, opts.Origin); err != nil {
				return nil, err
			}
		}
	}

	idx, err := index.Open(indexPath)
	if err != nil {
		return nil, err
	}
	z.index = idx

	z.logger.Info("vault initialized",
		slog.String("root", root), slog.Bool("git", z.repo != nil))
	return z, nil
}

// Open opens an initialized vault, reconciling any divergence between
// the note files and the index left by an earlier interrupted write.
func Open(_ context.Context, root, author string, options ...Option) (*Zettelkasten, error) {
	z := newZettelkasten(root, author, options)

	indexPath := filepath.Join(root, IndexFile)
	if _, err := os.Stat(indexPath); err != nil {
		return nil, fmt.Errorf("%w: no index at %s (run `zet init` first)", apperr.ErrIndexUnavailable, indexPath)
	}

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	z.store = store

	idx, err := index.Open(indexPath)
	if err != nil {
		return nil, err
	}
	z.index = idx

	// Note files are written before index rows; heal the gap here.
	entries, skipped, err := scan.Scan(store, z.logger)
	if err != nil {
		z.logger.Warn("open: vault scan failed, skipping reconcile", slog.String("error", err.Error()))
	} else {
		for _, sk := range skipped {
			z.logger.Warn("open: unparsable note left unindexed",
				slog.String("path", sk.Path), slog.String("error", sk.Err.Error()))
		}
		if err := idx.Reconcile(entries, z.logger); err != nil {
			z.logger.Warn("open: reconcile failed", slog.String("error", err.Error()))
		}
	}

	if repo, err := git.Open(root); err == nil {
		z.repo = repo
	} else if z.autocommit || z.autosync {
		idx.Close()
		return nil, err
	}
	return z, nil
}

// Close releases the index.
func (z *Zettelkasten) Close() error {
	if z.index == nil {
		return nil
	}
	return z.index.Close()
}

// Root returns the vault root directory.
func (z *Zettelkasten) Root() string { return z.root }

// Index exposes the index store for read-only consumers (watch, mcp).
func (z *Zettelkasten) Index() *index.Store { return z.index }

// Files exposes the vault file provider for read-only consumers.
func (z *Zettelkasten) Files() *storage.FS { return z.store }

// New creates a note, writes its file, indexes it, and applies the
// autocommit policy. A slug collision with an existing file, or an id
// collision in the index, surfaces as ErrTitleClash.
func (z *Zettelkasten) New(ctx context.Context, title string, tags, links []string, body string) (*note.Note, error) {
	n, err := note.New(title, z.author, tags, links, body)
	if err != nil {
		return nil, err
	}

	path := n.Filename()
	if z.store.Exists(path) {
		return nil, fmt.Errorf("%w: a note titled %q already exists (%s)", apperr.ErrTitleClash, title, path)
	}

	raw, err := n.Serialize()
	if err != nil {
		return nil, err
	}
	// File first, index second: the reconcile pass on Open heals a
	// crash between the two.
	if err := z.store.Write(path, raw); err != nil {
		return nil, err
	}
	if err := z.index.SyncOne(n, path, index.OpCreate); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			_ = z.store.Delete(path)
			return nil, fmt.Errorf("%w: id %s already indexed: %v", apperr.ErrTitleClash, n.ID, err)
		}
		return nil, err
	}
	z.writeLast(n.ID)

	if err := z.maybeCommit(ctx, "new note: "+title); err != nil {
		return nil, err
	}
	z.logger.Info("note created", slog.String("id", n.ID), slog.String("path", path))
	return n, nil
}

// Update opens the note in the editor, then re-parses the file, bumps
// last_changed, rewrites it, and syncs the index. A title change moves
// the file to the new slug.
func (z *Zettelkasten) Update(ctx context.Context, id string) (*note.Note, error) {
	id, err := z.ResolveID(id)
	if err != nil {
		return nil, err
	}
	row, err := z.index.GetNote(id)
	if err != nil {
		return nil, err
	}
	abs, err := z.store.Abs(row.Path)
	if err != nil {
		return nil, err
	}

	if err := z.edit(ctx, abs); err != nil {
		return nil, err
	}

	n, err := scan.File(z.store, row.Path)
	if err != nil {
		return nil, err
	}
	if n.ID != id {
		return nil, fmt.Errorf("%w: note id changed during edit (%s -> %s)", apperr.ErrConflict, id, n.ID)
	}
	touched := n.Touch()

	newPath := filepath.Join(filepath.Dir(row.Path), touched.Filename())
	if newPath != row.Path && z.store.Exists(newPath) {
		return nil, fmt.Errorf("%w: a note titled %q already exists (%s)", apperr.ErrTitleClash, touched.Title, newPath)
	}

	raw, err := touched.Serialize()
	if err != nil {
		return nil, err
	}
	if err := z.store.Write(newPath, raw); err != nil {
		return nil, err
	}
	if newPath != row.Path {
		if err := z.store.Delete(row.Path); err != nil {
			return nil, err
		}
	}
	if err := z.index.SyncOne(touched, newPath, index.OpUpdate); err != nil {
		return nil, err
	}
	z.writeLast(id)

	if err := z.maybeCommit(ctx, "edit note: "+touched.Title); err != nil {
		return nil, err
	}
	z.logger.Info("note updated", slog.String("id", id), slog.String("path", newPath))
	return touched, nil
}

// Delete removes the note file and its index rows. Unknown ids surface
// as ErrNotFound.
func (z *Zettelkasten) Delete(ctx context.Context, id string) error {
	id, err := z.ResolveID(id)
	if err != nil {
		return err
	}
	row, err := z.index.GetNote(id)
	if err != nil {
		return err
	}

	if z.store.Exists(row.Path) {
		if err := z.store.Delete(row.Path); err != nil {
			return err
		}
	}
	if err := z.index.Delete(id); err != nil {
		return err
	}
	z.clearLast(id)

	if err := z.maybeCommit(ctx, "delete note: "+row.Title); err != nil {
		return err
	}
	z.logger.Info("note deleted", slog.String("id", id), slog.String("path", row.Path))
	return nil
}

// PrintNote returns the raw on-disk content of a note, bypassing the
// index for everything except the id-to-path lookup.
func (z *Zettelkasten) PrintNote(id string) (string, error) {
	id, err := z.ResolveID(id)
	if err != nil {
		return "", err
	}
	row, err := z.index.GetNote(id)
	if err != nil {
		return "", err
	}
	data, err := z.store.Read(row.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListNotes returns every (id, title) pair in the index.
func (z *Zettelkasten) ListNotes() ([]index.Entry, error) {
	return z.index.List()
}

// Links returns the outgoing links of a note; dangling targets included.
func (z *Zettelkasten) Links(id string) ([]string, error) {
	id, err := z.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return z.index.GetLinks(id)
}

// Backlinks returns the ids of notes linking to target.
func (z *Zettelkasten) Backlinks(target string) ([]string, error) {
	return z.index.Backlinks(target)
}

// Reindex rebuilds the index from the note files, sequentially or
// across a worker pool, and reports any skipped files. The live index
// is swapped out atomically once the rebuild is complete.
func (z *Zettelkasten) Reindex(ctx context.Context, parallel bool, workers int) ([]scan.Skipped, error) {
	indexPath := z.index.Path()
	if err := z.index.Close(); err != nil {
		return nil, fmt.Errorf("vault: close index before rebuild: %w", err)
	}

	var (
		skipped []scan.Skipped
		err     error
	)
	if parallel {
		skipped, err = index.ReindexParallel(ctx, indexPath, z.store, workers, z.logger)
	} else {
		skipped, err = index.ReindexSequential(indexPath, z.store, z.logger)
	}
	if err != nil {
		return skipped, err
	}

	reopened, err := index.Open(indexPath)
	if err != nil {
		return skipped, err
	}
	z.index = reopened
	return skipped, nil
}

// Pull fetches notes committed from elsewhere and reconciles the index
// against the updated files.
func (z *Zettelkasten) Pull(ctx context.Context) error {
	if z.repo == nil {
		return fmt.Errorf("%w: vault has no git repository", apperr.ErrVersionControl)
	}
	if err := z.repo.Pull(ctx); err != nil {
		return err
	}
	entries, skipped, err := scan.Scan(z.store, z.logger)
	if err != nil {
		return err
	}
	for _, sk := range skipped {
		z.logger.Warn("pull: unparsable note left unindexed",
			slog.String("path", sk.Path), slog.String("error", sk.Err.Error()))
	}
	return z.index.Reconcile(entries, z.logger)
}

// VCSStatus returns `git status` output for the vault repository.
func (z *Zettelkasten) VCSStatus(ctx context.Context) (string, error) {
	if z.repo == nil {
		return "", fmt.Errorf("%w: vault has no git repository", apperr.ErrVersionControl)
	}
	return z.repo.Status(ctx)
}

// ResolveID maps the "last" alias onto the most recently touched note.
func (z *Zettelkasten) ResolveID(id string) (string, error) {
	if id != "last" {
		return id, nil
	}
	data, err := z.store.Read(LastFile)
	if err != nil {
		return "", fmt.Errorf("%w: no last note recorded", apperr.ErrNotFound)
	}
	return strings.TrimSpace(string(data)), nil
}

func (z *Zettelkasten) writeLast(id string) {
	if err := z.store.Write(LastFile, []byte(id+"\n")); err != nil {
		z.logger.Warn("vault: write last sentinel failed", slog.String("error", err.Error()))
	}
}

func (z *Zettelkasten) clearLast(id string) {
	data, err := z.store.Read(LastFile)
	if err != nil || strings.TrimSpace(string(data)) != id {
		return
	}
	_ = z.store.Delete(LastFile)
}

// maybeCommit applies the autocommit/autosync policy after a mutation.
// Version control failures propagate; they are never swallowed.
func (z *Zettelkasten) maybeCommit(ctx context.Context, msg string) error {
	if z.repo == nil || !z.autocommit {
		return nil
	}
	if err := z.repo.Add(ctx); err != nil {
		return err
	}
	if err := z.repo.Commit(ctx, msg); err != nil {
		return err
	}
	if z.autosync {
		return z.repo.Push(ctx)
	}
	return nil
}

// wipe removes the notes, index, and sentinels of an existing vault
// ahead of a forced reinitialization. The git history, if any, stays.
func wipe(root string) error {
	store, err := storage.NewFS(root)
	if err != nil {
		return err
	}
	paths, err := store.List()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := store.Delete(p); err != nil {
			return err
		}
	}
	// Drop the schema when the index still opens; fall back to removing
	// the file when it is corrupt beyond opening.
	indexPath := filepath.Join(root, IndexFile)
	if s, err := index.Open(indexPath); err == nil {
		dropErr := s.Drop()
		if closeErr := s.Close(); dropErr == nil && closeErr != nil {
			dropErr = closeErr
		}
		if dropErr != nil {
			return fmt.Errorf("vault: wipe index: %w", dropErr)
		}
	} else if err := os.Remove(indexPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("vault: wipe index: %w", err)
	}
	for _, p := range []string{IndexFile + index.RebuildSuffix, LastFile} {
		if err := os.Remove(filepath.Join(root, p)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("vault: wipe %s: %w", p, err)
		}
	}
	if err := os.RemoveAll(filepath.Join(root, storage.ScratchDir)); err != nil {
		return fmt.Errorf("vault: wipe scratch dir: %w", err)
	}
	return nil
}
