// Package watch implements turbogrep's long-running resync loop: an
// fsnotify watcher feeding a debouncer that triggers a full
// Synchronizer.Sync/ApplyDiff pass once file activity settles.
// The polling fallback and gitignore-aware per-event filtering seen in
// other watch implementations are dropped here since a resync
// re-derives everything from a full content-addressed chunk diff
// anyway.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	tgsync "github.com/turbopuffer/turbogrep/internal/sync"
)

// Options configures a watch loop.
type Options struct {
	DebounceWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 250 * time.Millisecond
	}
	return o
}

var defaultExcludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".turbogrep":   true,
}

// Run runs one initial Synchronizer.Sync/ApplyDiff pass against
// namespace, then watches root for changes until ctx is cancelled,
// running another pass every time file activity settles for
// opts.DebounceWindow. It blocks until ctx is done or the watcher fails
// to start.
func Run(ctx context.Context, root, namespace string, synchronizer *tgsync.Synchronizer, opts Options) error {
	opts = opts.withDefaults()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if err := addRecursive(w, absRoot); err != nil {
		return err
	}

	debouncer := NewDebouncer(opts.DebounceWindow)
	defer debouncer.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				handleEvent(w, absRoot, event, debouncer)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("watch error", slog.String("error", err.Error()))
			}
		}
	}()

	runSync(ctx, root, namespace, synchronizer)
	slog.Info("watching for changes", slog.String("root", absRoot))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case count, ok := <-debouncer.Output():
			if !ok {
				return nil
			}
			slog.Debug("file activity settled, resyncing", slog.Int("events", count))
			runSync(ctx, root, namespace, synchronizer)
		}
	}
}

func handleEvent(w *fsnotify.Watcher, absRoot string, event fsnotify.Event, debouncer *Debouncer) {
	relPath, err := filepath.Rel(absRoot, event.Name)
	if err != nil {
		relPath = event.Name
	}
	if shouldIgnore(relPath) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			_ = w.Add(event.Name)
		}
	}

	debouncer.Mark()
}

func shouldIgnore(relPath string) bool {
	if relPath == "." || relPath == "" {
		return true
	}
	for _, part := range strings.Split(relPath, string(filepath.Separator)) {
		if defaultExcludeDirs[part] {
			return true
		}
	}
	return false
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, _ := filepath.Rel(root, path)
		if relPath != "." && defaultExcludeDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// runSync runs one synchronization pass and logs (rather than
// propagates) failures so the watch loop survives a single bad sync.
func runSync(ctx context.Context, root, namespace string, synchronizer *tgsync.Synchronizer) {
	diff, err := synchronizer.Sync(ctx, root, namespace)
	if err != nil {
		slog.Warn("resync failed", slog.String("error", err.Error()))
		return
	}
	if len(diff.Upload) == 0 && len(diff.Delete) == 0 {
		return
	}

	if _, err := synchronizer.ApplyDiff(ctx, namespace, diff, 0); err != nil {
		slog.Warn("applying resync diff failed", slog.String("error", err.Error()))
	}
}
