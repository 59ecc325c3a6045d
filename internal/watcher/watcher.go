// Package watcher reports debounced batches of changes under a directory tree.
package watcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/hotplate/internal/logging"
)

// FileWatcher watches a directory tree and hands debounced batches of
// changes to its handlers.
type FileWatcher struct {
	fsw       *fsnotify.Watcher
	root      string
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex

	stopOnce sync.Once
	done     chan struct{}
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
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

// FileFilter reports whether a changed path is relevant.
type FileFilter func(path string) bool

// ChangeHandler handles one debounced batch.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// NewFileWatcher creates a watcher over root and every directory below it.
// The root must exist.
func NewFileWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		fsw:       fsw,
		root:      filepath.Clean(root),
		debouncer: NewDebouncer(debounceDelay),
		logger:    logger.WithComponent("watcher"),
		done:      make(chan struct{}),
	}
	if err := fw.AddRecursive(fw.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return fw, nil
}

// Root returns the watched directory.
func (fw *FileWatcher) Root() string {
	return fw.root
}

// AddFilter adds a file filter. Every filter must accept a path for its
// events to be delivered.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive adds a directory and all non-hidden subdirectories to watch.
func (fw *FileWatcher) AddRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && isHidden(info.Name()) {
			return filepath.SkipDir
		}
		if err := fw.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	select {
	case <-fw.done:
		return stderrors.New("watcher already stopped")
	default:
	}

	go fw.debouncer.start(ctx, fw.done)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and releases its resources. It is safe to
// call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.debouncer.stop()
		err = fw.fsw.Close()
	})
	return err
}

// Done is closed once Stop has been called.
func (fw *FileWatcher) Done() <-chan struct{} {
	return fw.done
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	info, statErr := os.Stat(event.Name)

	// New directories are not covered by the existing watches.
	if statErr == nil && info.IsDir() && event.Op.Has(fsnotify.Create) && !isHidden(info.Name()) {
		if err := fw.AddRecursive(event.Name); err != nil {
			fw.logger.Warn(ctx, err, "failed to watch new directory", "path", event.Name)
		}
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	if statErr == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Op.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Op.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Op.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	fw.logger.Debug(ctx, "change detected", "path", event.Name, "type", eventType.String())
	fw.debouncer.add(ChangeEvent{
		Type:    eventType,
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	})
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Warn(ctx, err, "change handler failed", "events", len(events))
				}
			}
		}
	}
}
