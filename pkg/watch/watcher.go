// Package watch re-runs a callback when source files or the manifest of a
// project change.
package watch

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/panbanda/depaudit/pkg/manifest"
)

// DefaultDebounce is used when NewWatcher is given a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a project tree and reports batches of changed files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	root      string
	out       io.Writer
	callback  func(changed []string)
	mu        sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a new watcher for the project at root.
func NewWatcher(root string, cfg *config.Config, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		root:      root,
		out:       os.Stdout,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function called with the root-relative, sorted paths
// that changed since the last call. Calls never overlap.
func (w *Watcher) SetCallback(cb func(changed []string)) {
	w.callback = cb
}

// SetOutput redirects status messages.
func (w *Watcher) SetOutput(out io.Writer) {
	w.out = out
}

// Start watches until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	color.New(color.FgCyan).Fprintf(w.out, "Watching for changes in %s...\n", w.root)
	color.New(color.FgCyan).Fprintln(w.out, "Press Ctrl+C to stop")

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			color.New(color.FgRed).Fprintf(w.out, "Watch error: %v\n", err)
		}
	}
}

// addTree registers dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.config.IsExcludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Relevant reports whether a change to path can alter the audit result.
func (w *Watcher) Relevant(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	if rel == manifest.FileName {
		return true
	}
	return w.config.HasExtension(path) && !w.config.ShouldExclude(rel)
}

// handleEvent processes a filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.config.IsExcludedDir(info.Name()) {
				_ = w.addTree(path)
			}
			return
		}
	}

	if !w.Relevant(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced flushes pending changes after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(time.Now())
		}
	}
}

// processPending hands every pending path to the callback once the most
// recent change is at least one debounce period old.
func (w *Watcher) processPending(now time.Time) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	var latest time.Time
	for _, t := range w.pending {
		if t.After(latest) {
			latest = t
		}
	}
	if now.Sub(latest) < w.debounce {
		w.mu.Unlock()
		return
	}

	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		changed = append(changed, filepath.ToSlash(rel))
	}
	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	sort.Strings(changed)
	if w.callback != nil {
		w.callback(changed)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories currently registered.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
