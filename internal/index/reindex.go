package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/okvist/zet/internal/note"
	"github.com/okvist/zet/internal/scan"
	"github.com/okvist/zet/internal/storage"
)

// RebuildSuffix is appended to the index path while a reindex builds
// its replacement database.
const RebuildSuffix = ".rebuild"

// ReindexSequential rebuilds the index from the on-disk corpus in scan
// order. The rebuild happens in a fresh database that is renamed over
// the live index only once complete, so an interrupted reindex leaves
// the old index intact. Malformed notes are skipped and reported, never
// fatal; only an unusable index file aborts the rebuild.
func ReindexSequential(indexPath string, store storage.Provider, logger *slog.Logger) ([]scan.Skipped, error) {
	entries, skipped, err := scan.Scan(store, logger)
	if err != nil {
		return nil, err
	}

	fresh, err := openRebuild(indexPath)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if err := fresh.Insert(e.Note, e.Path); err != nil {
			skipped = append(skipped, scan.Skipped{Path: e.Path, Err: err})
			logger.Warn("reindex: insert failed",
				slog.String("path", e.Path), slog.String("error", err.Error()))
		}
	}

	if err := swapRebuild(fresh, indexPath); err != nil {
		return skipped, err
	}
	return skipped, nil
}

// ReindexParallel is the concurrent variant of ReindexSequential: note
// parsing fans out across a fixed-size worker pool while every index
// write funnels through this goroutine, the single writer. The result
// is set-equivalent to the sequential rebuild; only physical insertion
// order differs.
func ReindexParallel(ctx context.Context, indexPath string, store storage.Provider, workers int, logger *slog.Logger) ([]scan.Skipped, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	paths, err := store.List()
	if err != nil {
		return nil, err
	}

	fresh, err := openRebuild(indexPath)
	if err != nil {
		return nil, err
	}

	type parsed struct {
		path string
		note *note.Note
		err  error
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan string)
	results := make(chan parsed)

	g.Go(func() error {
		defer close(jobs)
		for _, p := range paths {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var wg errgroup.Group
	for i := 0; i < workers; i++ {
		wg.Go(func() error {
			for p := range jobs {
				n, parseErr := scan.File(store, p)
				select {
				case results <- parsed{path: p, note: n, err: parseErr}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		_ = wg.Wait()
		close(results)
	}()

	var skipped []scan.Skipped
	for r := range results {
		if r.err != nil {
			skipped = append(skipped, scan.Skipped{Path: r.path, Err: r.err})
			logger.Warn("reindex: skipping note",
				slog.String("path", r.path), slog.String("error", r.err.Error()))
			continue
		}
		if err := fresh.Insert(r.note, r.path); err != nil {
			skipped = append(skipped, scan.Skipped{Path: r.path, Err: err})
			logger.Warn("reindex: insert failed",
				slog.String("path", r.path), slog.String("error", err.Error()))
		}
	}
	if err := g.Wait(); err != nil {
		fresh.Close()
		os.Remove(fresh.Path())
		return skipped, err
	}
	if err := wg.Wait(); err != nil {
		fresh.Close()
		os.Remove(fresh.Path())
		return skipped, err
	}

	if err := swapRebuild(fresh, indexPath); err != nil {
		return skipped, err
	}
	return skipped, nil
}

// openRebuild opens a fresh database next to the live index. Any
// leftover rebuild from a previous interrupted run is discarded first.
func openRebuild(indexPath string) (*Store, error) {
	tmp := indexPath + RebuildSuffix
	for _, p := range []string{tmp, tmp + "-wal", tmp + "-shm"} {
		os.Remove(p)
	}
	return Open(tmp)
}

// swapRebuild closes the rebuilt database and atomically renames it
// over the live index. The old index stays untouched until the rename.
func swapRebuild(fresh *Store, indexPath string) error {
	tmp := fresh.Path()
	if err := fresh.Close(); err != nil {
		return fmt.Errorf("index: close rebuild: %w", err)
	}
	// Drop journal siblings of the old index so the renamed database is
	// not paired with a stale WAL.
	for _, p := range []string{indexPath + "-wal", indexPath + "-shm"} {
		os.Remove(p)
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		return fmt.Errorf("index: swap rebuild into place: %w", err)
	}
	return nil
}
