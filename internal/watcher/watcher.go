// Package watcher turns filesystem notifications for the served tree into
// debounced batches of change events.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/devserve/internal/logging"
	"github.com/fsnotify/fsnotify"
)

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

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// FileWatcher watches a directory tree with debouncing.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	ignore    map[string]bool
	logger    logging.Logger
	mutex     sync.RWMutex
	once      sync.Once
}

// NewFileWatcher creates a new file watcher. Directories whose base name is
// in ignore are never watched.
func NewFileWatcher(debounceDelay time.Duration, ignore []string, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	ignored := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ignored[name] = true
	}

	return &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		ignore:    ignored,
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter. An event is kept only when every filter
// accepts its path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != cleanRoot && fw.ignore[d.Name()] {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Watch adds a single directory, such as one holding module sources that
// live outside the served root. Watching a directory twice is a no-op.
func (fw *FileWatcher) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}
	if slices.Contains(fw.watcher.WatchList(), abs) {
		return nil
	}
	if err := fw.watcher.Add(abs); err != nil {
		return fmt.Errorf("watching %s: %w", abs, err)
	}
	return nil
}

// WatchList returns the directories currently watched.
func (fw *FileWatcher) WatchList() []string {
	return fw.watcher.WatchList()
}

// Events returns the stream of debounced change batches. The sequence is
// lazy: watching begins when iteration starts. It ends when ctx is done or
// the watcher is stopped, and cannot be restarted; iterating a second time
// yields nothing.
func (fw *FileWatcher) Events(ctx context.Context) iter.Seq[[]ChangeEvent] {
	return func(yield func([]ChangeEvent) bool) {
		first := false
		fw.once.Do(func() { first = true })
		if !first {
			fw.logger.Warn(ctx, nil, "Event stream already consumed")
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		raw := make(chan ChangeEvent, 100)
		batches := make(chan []ChangeEvent, 10)
		go fw.watchLoop(ctx, raw)
		go fw.debouncer.Run(ctx, raw, batches)

		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-batches:
				if !ok || !yield(batch) {
					return
				}
			}
		}
	}
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context, out chan<- ChangeEvent) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			change, keep := fw.convert(ctx, event)
			if !keep {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) convert(ctx context.Context, event fsnotify.Event) (ChangeEvent, bool) {
	if event.Op == fsnotify.Chmod {
		return ChangeEvent{}, false
	}

	info, statErr := os.Stat(event.Name)

	// New directories are watched as they appear.
	if statErr == nil && info.IsDir() {
		if event.Has(fsnotify.Create) && !fw.ignore[filepath.Base(event.Name)] {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Failed to watch new directory", "path", event.Name)
			}
		}
		return ChangeEvent{}, false
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()
	for _, filter := range filters {
		if !filter(event.Name) {
			return ChangeEvent{}, false
		}
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	change := ChangeEvent{Type: eventType, Path: event.Name}
	if statErr == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	}
	return change, true
}

// IgnoreFilter rejects paths that contain any of names as a path segment
// below root. Directories above root are not considered, and a path outside
// root is judged by its base name alone.
func IgnoreFilter(root string, names ...string) FileFilter {
	root = filepath.Clean(root)
	return func(path string) bool {
		rel, err := filepath.Rel(root, filepath.Clean(path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = filepath.Base(path)
		}
		for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
			if slices.Contains(names, seg) {
				return false
			}
		}
		return true
	}
}

// NoTempFilter rejects editor swap and backup files.
func NoTempFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"):
		return false
	}
	return true
}
