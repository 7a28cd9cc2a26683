// Package watch reports changes to job-configuration sources.
//
// It uses fsnotify to watch source files and directories and emits one
// debounced Change for every burst of edits, so a caller can re-plan once per
// save rather than once per write syscall.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"jobsmith/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is used when NewWatcher is given zero.
const DefaultDebounceInterval = 500 * time.Millisecond

// Change is one debounced batch of source changes.
type Change struct {
	// Files are the changed paths, sorted.
	Files     []string
	Timestamp time.Time
}

// Watcher watches source files and directories. Directories are watched
// recursively, skipping hidden ones. Files are watched through their parent
// directory so that editors replacing a file by rename are still seen.
type Watcher struct {
	mu sync.Mutex

	paths            []string
	debounceInterval time.Duration

	watcher *fsnotify.Watcher

	// files are explicitly named source files
	files map[string]bool
	// roots are directories named as sources; any YAML file below them counts
	roots []string

	// pending collects changed paths until the debounce timer fires
	pending map[string]struct{}
	timer   *time.Timer

	stopCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for the given source paths.
func NewWatcher(paths []string, debounceInterval time.Duration) *Watcher {
	if debounceInterval == 0 {
		debounceInterval = DefaultDebounceInterval
	}
	return &Watcher{
		paths:            paths,
		debounceInterval: debounceInterval,
		files:            make(map[string]bool),
		pending:          make(map[string]struct{}),
		stopCh:           make(chan struct{}),
	}
}

// Start begins watching. Changes are sent on changes until ctx is done or
// Stop is called. A change is dropped if the channel is full.
func (w *Watcher) Start(ctx context.Context, changes chan<- Change) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	if err := w.setupWatches(); err != nil {
		_ = w.Stop()
		return err
	}

	go w.processEvents(ctx, w.watcher, w.stopCh, changes)

	logging.Info("Watcher", "Watching %s for source changes", strings.Join(w.paths, ", "))
	return nil
}

func (w *Watcher) setupWatches() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			w.files[abs] = true
			if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
				return err
			}
			logging.Debug("Watcher", "Watching file: %s", abs)
			continue
		}
		w.roots = append(w.roots, abs)
		if err := w.addTree(abs); err != nil {
			return err
		}
	}
	return nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		logging.Debug("Watcher", "Watching directory: %s", path)
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh chan struct{}, changes chan<- Change) {
	for {
		select {
		case <-ctx.Done():
			w.cleanupPending()
			return

		case <-stopCh:
			w.cleanupPending()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event, changes)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event, changes chan<- Change) {
	if event.Op == fsnotify.Chmod {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if event.Op.Has(fsnotify.Create) && w.underRoot(event.Name) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			if err := w.addTree(event.Name); err != nil {
				logging.Warn("Watcher", "Failed to watch new directory %s: %v", event.Name, err)
			}
		}
	}

	if !w.relevant(event.Name) {
		return
	}
	w.debounce(event.Name, changes)
}

// relevant reports whether path is a named source file or a YAML file below
// a named source directory. Callers hold w.mu.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	return isYAMLFile(path) && w.underRoot(path)
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// debounce records path and restarts the timer. Callers hold w.mu.
func (w *Watcher) debounce(path string, changes chan<- Change) {
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		files := make([]string, 0, len(w.pending))
		for f := range w.pending {
			files = append(files, f)
		}
		w.pending = make(map[string]struct{})
		w.timer = nil
		w.mu.Unlock()

		sort.Strings(files)
		select {
		case changes <- Change{Files: files, Timestamp: time.Now()}:
			logging.Debug("Watcher", "Emitted change for %d files", len(files))
		default:
			logging.Warn("Watcher", "Change channel full, dropping change for %d files", len(files))
		}
	})
}

func (w *Watcher) cleanupPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]struct{})
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
		w.watcher = nil
	}
	logging.Info("Watcher", "Stopped watching sources")
	return err
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
