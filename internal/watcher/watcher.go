// Package watcher reloads message catalogs when their files change on disk.
// Bursts of filesystem events are batched so an editor save triggers one
// reload.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/folio/internal/logging"
)

// Op is the kind of change seen for a path.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the string representation of the Op.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

func opOf(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// ChangeEvent is one changed path.
type ChangeEvent struct {
	Op   Op
	Path string
}

// FileFilter reports whether a path is of interest. Every filter must accept
// a path for its events to be handled.
type FileFilter func(path string) bool

// ChangeHandler receives one batch of changes, sorted by path.
type ChangeHandler func(events []ChangeEvent) error

// Batcher collects change events and releases them as a single batch once
// no new event has arrived for the delay. The last event for a path wins.
type Batcher struct {
	delay time.Duration
	out   chan []ChangeEvent

	mu     sync.Mutex
	latest map[string]ChangeEvent
	timer  *time.Timer

	// flushMu serializes releases so a merge never races another flush.
	flushMu sync.Mutex
}

// NewBatcher creates a Batcher.
func NewBatcher(delay time.Duration) *Batcher {
	return &Batcher{
		delay:  delay,
		out:    make(chan []ChangeEvent, 1),
		latest: make(map[string]ChangeEvent),
	}
}

// Add records ev and restarts the quiet period.
func (b *Batcher) Add(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest[ev.Path] = ev
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

// Batches delivers the released batches.
func (b *Batcher) Batches() <-chan []ChangeEvent {
	return b.out
}

// Stop cancels a pending release.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
}

func (b *Batcher) flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.latest) == 0 {
		b.mu.Unlock()
		return
	}
	events := make([]ChangeEvent, 0, len(b.latest))
	for _, ev := range b.latest {
		events = append(events, ev)
	}
	b.latest = make(map[string]ChangeEvent)
	b.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	// A batch still waiting to be handled absorbs this one.
	select {
	case b.out <- events:
	case pending := <-b.out:
		b.out <- merge(pending, events)
	}
}

// merge combines two sorted batches, later events winning per path.
func merge(earlier, later []ChangeEvent) []ChangeEvent {
	byPath := make(map[string]ChangeEvent, len(earlier)+len(later))
	for _, ev := range earlier {
		byPath[ev.Path] = ev
	}
	for _, ev := range later {
		byPath[ev.Path] = ev
	}

	out := make([]ChangeEvent, 0, len(byPath))
	for _, ev := range byPath {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out
}

// FileWatcher feeds filtered fsnotify events through a Batcher to its
// handlers.
type FileWatcher struct {
	fsw    *fsnotify.Watcher
	batch  *Batcher
	logger logging.Logger

	mu       sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler

	done     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher that batches events for delay. logger may
// be nil.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &FileWatcher{
		fsw:    fsw,
		batch:  NewBatcher(delay),
		logger: logger.WithComponent("watcher"),
		done:   make(chan struct{}),
	}, nil
}

// AddFilter adds a file filter.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every directory below it, skipping hidden
// directories.
func (fw *FileWatcher) AddRecursive(root string) error {
	if strings.TrimSpace(root) == "" {
		return fmt.Errorf("watch root cannot be empty")
	}
	root = filepath.Clean(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return fw.fsw.Add(path)
	})
}

// Start runs the watcher until ctx is done or Stop is called. It returns
// immediately.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.run(ctx)

	return nil
}

// Stop releases the fsnotify watcher. Safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.batch.Stop()
		err = fw.fsw.Close()
	})

	return err
}

func (fw *FileWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case ev, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod || !fw.accepts(ev.Name) {
				continue
			}
			fw.batch.Add(ChangeEvent{Op: opOf(ev.Op), Path: ev.Name})
		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		case events := <-fw.batch.Batches():
			fw.dispatch(ctx, events)
		}
	}
}

func (fw *FileWatcher) accepts(path string) bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}

	return true
}

func (fw *FileWatcher) dispatch(ctx context.Context, events []ChangeEvent) {
	fw.mu.RLock()
	handlers := append([]ChangeHandler(nil), fw.handlers...)
	fw.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(events); err != nil {
			fw.logger.Warn(ctx, err, "Change handler failed", "changes", len(events))
		}
	}
}

// CatalogFilter accepts TOML message catalogs.
func CatalogFilter(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// NoEditorTempFilter rejects editor swap and backup files.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") &&
		!strings.HasPrefix(base, "#") &&
		!strings.HasSuffix(base, "~") &&
		!strings.HasSuffix(base, ".swp")
}

// NoGitFilter rejects paths inside a .git directory.
func NoGitFilter(path string) bool {
	path = filepath.ToSlash(path)
	return !strings.HasPrefix(path, ".git/") && !strings.Contains(path, "/.git/")
}
