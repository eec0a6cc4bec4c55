// Package watcher reports changes below content and theme directories,
// grouping bursts of file system events into one batch.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/folio/internal/logging"
)

// DefaultDelay is the quiet period that ends a batch of changes.
const DefaultDelay = 300 * time.Millisecond

// FileWatcher watches directory trees and hands debounced batches of
// changes to its handlers.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger
	filters   []FileFilter
	handlers  []ChangeHandler
	mutex     sync.RWMutex
	stopOnce  sync.Once
}

// ChangeEvent is one changed path.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType classifies a change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path is of interest. A change is reported
// only when every filter accepts it.
type FileFilter func(path string) bool

// ChangeHandler receives one batch of changes.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Debouncer collects events until no new one arrived for delay, then emits
// them as one batch with one event per path.
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending map[string]ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 256),
		output:  make(chan []ChangeEvent, 16),
		pending: make(map[string]ChangeEvent),
	}
}

// NewFileWatcher creates a watcher. A zero delay uses DefaultDelay.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &FileWatcher{
		watcher:   w,
		debouncer: NewDebouncer(delay),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every directory below it. Directories
// created later are added as they appear. Hidden directories are skipped.
func (fw *FileWatcher) AddRecursive(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	return fw.addTree(abs)
}

func (fw *FileWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Start runs the watcher until ctx is done. Handlers run on a single
// goroutine, so batches never overlap.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.debouncer.start(ctx)
	go fw.dispatch(ctx)
	go fw.receive(ctx)
}

// Stop releases the underlying watcher.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.debouncer.stop()
		err = fw.watcher.Close()
	})
	return err
}

// receive turns fsnotify events into filtered changes.
func (fw *FileWatcher) receive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if change, ok := fw.translate(ctx, event); ok {
				select {
				case fw.debouncer.events <- change:
				default:
					fw.logger.Debug(ctx, "dropping change, queue full", "path", change.Path)
				}
			}
		}
	}
}

// translate watches newly created directories and applies the filters.
func (fw *FileWatcher) translate(ctx context.Context, event fsnotify.Event) (ChangeEvent, bool) {
	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() && event.Has(fsnotify.Create) && NoHiddenFilter(event.Name) {
		if err := fw.addTree(event.Name); err != nil {
			fw.logger.Warn(ctx, err, "watch new directory", "path", event.Name)
		}
	}

	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, accept := range fw.filters {
		if !accept(event.Name) {
			return ChangeEvent{}, false
		}
	}

	change := ChangeEvent{Path: event.Name, Type: eventType(event.Op)}
	if statErr == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	}
	return change, true
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op&fsnotify.Create != 0:
		return EventTypeCreated
	case op&fsnotify.Write != 0:
		return EventTypeModified
	case op&fsnotify.Remove != 0:
		return EventTypeDeleted
	case op&fsnotify.Rename != 0:
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (fw *FileWatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := append([]ChangeHandler(nil), fw.handlers...)
			fw.mutex.RUnlock()

			fw.logger.Debug(ctx, "changes detected", "count", len(batch))
			for _, handle := range handlers {
				if err := handle(ctx, batch); err != nil {
					fw.logger.Error(ctx, err, "change handler failed")
				}
			}
		}
	}
}

func (d *Debouncer) start(ctx context.Context) {
	defer d.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.add(event)
		}
	}
}

// add records event, replacing an earlier one for the same path, and
// restarts the quiet period.
func (d *Debouncer) add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending[event.Path] = event
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.flush)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// flush emits the pending batch sorted by path. A full output drops it.
func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}
	batch := make([]ChangeEvent, 0, len(d.pending))
	for path, event := range d.pending {
		batch = append(batch, event)
		delete(d.pending, path)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case d.output <- batch:
	default:
	}
}

// NoHiddenFilter rejects dotfiles. Hidden directories are never watched.
func NoHiddenFilter(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}

// NoEditorFilter rejects editor swap and backup files.
func NoEditorFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return false
	}
	return true
}

// ExcludeDirFilter rejects paths below dir, such as a generator's output
// folder placed inside the watched tree.
func ExcludeDirFilter(dir string) FileFilter {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	return func(path string) bool {
		p, err := filepath.Abs(path)
		if err != nil {
			return true
		}
		return p != abs && !strings.HasPrefix(p, abs+string(filepath.Separator))
	}
}
