package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okvist/zet/internal/apperr"
	"github.com/okvist/zet/internal/scan"
	"github.com/okvist/zet/internal/storage"
)

// Watch runs an fsnotify watcher on the vault root and keeps the index
// in step with file changes until ctx is cancelled. It is the engine
// behind the foreground `zet watch` command; nothing starts it
// implicitly.
//
// New directories created at runtime are added to the watch list.
// Rename events trigger a debounced reconciliation pass, since fsnotify
// only reports the old path.
func Watch(ctx context.Context, s *Store, store storage.Provider, vaultRoot string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if entries, _, scanErr := scan.Scan(store, logger); scanErr == nil {
				if recErr := s.Reconcile(entries, logger); recErr != nil {
					logger.Warn("watcher: reconcile failed", slog.String("error", recErr.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if filepath.Base(absPath) == storage.ScratchDir {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					// Pick up any notes already inside the new directory.
					scheduleReconcile()
					continue
				}
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil || !watchable(rel) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				n, parseErr := scan.File(store, rel)
				if parseErr != nil {
					logger.Warn("watcher: parse failed",
						slog.String("path", rel), slog.String("error", parseErr.Error()))
					continue
				}
				if idxErr := s.upsert(n, rel); idxErr != nil {
					logger.Warn("watcher: index failed",
						slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("id", n.ID))

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				id, lookErr := s.IDByPath(rel)
				if lookErr != nil {
					if !errors.Is(lookErr, apperr.ErrNotFound) {
						logger.Warn("watcher: lookup failed",
							slog.String("path", rel), slog.String("error", lookErr.Error()))
					}
					continue
				}
				if delErr := s.Delete(id); delErr != nil {
					logger.Warn("watcher: delete failed",
						slog.String("id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel), slog.String("id", id))
				if ev.Op&fsnotify.Rename != 0 {
					// The new path arrives as a separate Create event, if at
					// all; reconcile to catch stragglers.
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// watchable reports whether a vault-relative path is a note file the
// watcher should care about.
func watchable(rel string) bool {
	base := filepath.Base(rel)
	if !strings.HasSuffix(base, ".md") || strings.HasPrefix(base, ".") {
		return false
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return first != storage.ScratchDir && !strings.HasPrefix(first, ".")
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping the scratch directory.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == storage.ScratchDir || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
