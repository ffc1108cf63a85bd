package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher recursively monitors a root directory and emits FileChange
// events for files whose extension is in its allow-list, skipping the
// configured ignored directories. Grounded on the recursive-registration
// and extension-filtering shape of a teacher-adjacent fsnotify watcher
// (mangle_watcher.go in the retrieval pack).
type Watcher struct {
	root        string
	extensions  map[string]bool
	ignoredDirs map[string]bool

	fsw    *fsnotify.Watcher
	events chan FileChange
	errs   chan error
	done   chan struct{}
}

// NewWatcher creates a Watcher rooted at root. extensions and
// ignoredDirs come from config.WatchConfig.
func NewWatcher(root string, extensions, ignoredDirs []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:        root,
		extensions:  toSet(extensions),
		ignoredDirs: toSet(ignoredDirs),
		fsw:         fsw,
		events:      make(chan FileChange, 256),
		errs:        make(chan error, 8),
		done:        make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// addRecursive registers dir and every non-ignored subdirectory with the
// underlying fsnotify watcher. fsnotify does not watch recursively on its
// own.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Events returns the channel of filtered, classified file changes.
func (w *Watcher) Events() <-chan FileChange { return w.events }

// Errors returns the channel of watcher-internal errors (e.g. a removed
// directory fsnotify can no longer poll).
func (w *Watcher) Errors() <-chan error { return w.errs }

// Run pumps fsnotify's raw event stream into w.Events/w.Errors until
// Close is called. It is meant to run in its own goroutine.
func (w *Watcher) Run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.pathIgnored(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(ev.Name)
			return
		}
	}
	if !w.extensions[filepath.Ext(ev.Name)] {
		return
	}

	var kind ChangeKind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = ChangeCreated
	case ev.Op&fsnotify.Write != 0:
		kind = ChangeWritten
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		kind = ChangeRemoved
	default:
		return
	}

	select {
	case w.events <- FileChange{Kind: kind, Path: ev.Name}:
	default:
		// Events channel is full; the debounce queue is the backpressure
		// point downstream, so dropping here would only matter if the
		// worker has wedged. Best effort.
	}
}

func (w *Watcher) pathIgnored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if w.ignoredDirs[part] {
			return true
		}
	}
	return false
}

// Close stops the watcher and releases its file descriptors.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
