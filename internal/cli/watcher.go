package cli

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/debounce"
)

// EventType represents the type of file change event.
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
	EventRenamed
)

// FileEvent represents a file change event.
type FileEvent struct {
	Type EventType
	Path string
}

// String returns a human-readable string for the event type.
func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

const watchDebounce = 200 * time.Millisecond

// FileWatcher reports changes to one file. It watches the parent directory
// so editors that save by rename are still seen. Bursts of events for the
// file collapse into one callback after the debounce window.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	gate    *debounce.Gate[FileEvent]
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
}

// NewFileWatcher watches path and calls onChange for writes, creates and
// renames onto it.
func NewFileWatcher(path string, window time.Duration, onChange func(FileEvent)) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return &FileWatcher{
		watcher: fsWatcher,
		path:    abs,
		gate:    debounce.New(window, onChange),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for file changes.
func (w *FileWatcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processLoop(ctx)
	}()
}

// Stop stops the watcher and drops any pending callback.
func (w *FileWatcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.gate.Cancel()
		err = w.watcher.Close()
	})
	return err
}

func (w *FileWatcher) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *FileWatcher) handleFSEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = EventCreated
	case event.Op&fsnotify.Write != 0:
		eventType = EventModified
	case event.Op&fsnotify.Remove != 0:
		eventType = EventDeleted
	case event.Op&fsnotify.Rename != 0:
		eventType = EventRenamed
	default:
		return
	}

	log.Debug().Str("event", eventType.String()).Str("path", event.Name).Msg("Watched file changed")
	w.gate.Trigger(FileEvent{Type: eventType, Path: w.path})
}
