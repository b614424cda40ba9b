// Package watcher reloads content when fallback files change on disk.
// Rapid bursts of filesystem events (editors write several times per
// save) are debounced into one batch per quiet window.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/coderDevDev/dxp-dubai/internal/logging"
)

// ChangeType classifies a filesystem change.
type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeModified
	ChangeDeleted
	ChangeRenamed
)

// String returns the string representation of the change type
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Change is one debounced filesystem change.
type Change struct {
	Type    ChangeType
	Path    string
	ModTime time.Time
}

// Handler consumes a debounced batch of changes.
type Handler func(changes []Change) error

// ContentWatcher watches a content directory and hands debounced change
// batches to its handlers.
type ContentWatcher struct {
	root     string
	watcher  *fsnotify.Watcher
	debounce *debouncer
	ignore   []string
	logger   logging.Logger

	mutex    sync.RWMutex
	handlers []Handler
}

// debouncer groups rapid changes together. Every incoming change resets
// the timer; the pending batch flushes after one quiet window.
type debouncer struct {
	delay   time.Duration
	events  chan Change
	output  chan []Change
	timer   *time.Timer
	pending []Change
	mutex   sync.Mutex
}

// New creates a watcher over root. Paths matching any ignore glob
// (doublestar patterns, relative to root) never produce changes.
func New(root string, delay time.Duration, ignore []string, logger logging.Logger) (*ContentWatcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("content directory not watchable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content path %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &ContentWatcher{
		root:    filepath.Clean(root),
		watcher: fsw,
		debounce: &debouncer{
			delay:   delay,
			events:  make(chan Change, 100),
			output:  make(chan []Change, 10),
			pending: make([]Change, 0),
		},
		ignore: ignore,
		logger: logger.WithComponent("watcher"),
	}

	if err := w.addRecursive(w.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// AddHandler registers a batch consumer.
func (w *ContentWatcher) AddHandler(h Handler) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start runs the watch, debounce, and dispatch loops until ctx ends.
func (w *ContentWatcher) Start(ctx context.Context) {
	go w.debounce.run(ctx)
	go w.dispatch(ctx)
	go w.watchLoop(ctx)

	w.logger.Info(ctx, "watching content directory", "dir", w.root)
}

// Stop halts the filesystem watch.
func (w *ContentWatcher) Stop() error {
	w.debounce.mutex.Lock()
	if w.debounce.timer != nil {
		w.debounce.timer.Stop()
	}
	w.debounce.mutex.Unlock()

	return w.watcher.Close()
}

func (w *ContentWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && !w.ignored(path) {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// ignored reports whether a path matches any ignore glob.
func (w *ContentWatcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range w.ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *ContentWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, err, "filesystem watch error")
		}
	}
}

func (w *ContentWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if w.ignored(event.Name) {
		return
	}

	var changeType ChangeType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		changeType = ChangeCreated
		// New subdirectories join the watch.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn(ctx, err, "could not watch new directory", "dir", event.Name)
			}
			return
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		changeType = ChangeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		changeType = ChangeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		changeType = ChangeRenamed
	default:
		changeType = ChangeModified
	}

	change := Change{Type: changeType, Path: event.Name}
	if info, err := os.Stat(event.Name); err == nil {
		change.ModTime = info.ModTime()
	}

	select {
	case w.debounce.events <- change:
	default:
		// Saturated; the batch in flight already forces a reload.
	}
}

func (w *ContentWatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case changes := <-w.debounce.output:
			w.mutex.RLock()
			handlers := w.handlers
			w.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(changes); err != nil {
					w.logger.Error(ctx, err, "change handler failed", "changes", len(changes))
				}
			}
		}
	}
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-d.events:
			d.add(change)
		}
	}
}

func (d *debouncer) add(change Change) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, change)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// One change per path; the last event wins.
	byPath := make(map[string]Change, len(d.pending))
	for _, change := range d.pending {
		byPath[change.Path] = change
	}
	batch := make([]Change, 0, len(byPath))
	for _, change := range byPath {
		batch = append(batch, change)
	}

	select {
	case d.output <- batch:
	default:
	}

	d.pending = d.pending[:0]
}
