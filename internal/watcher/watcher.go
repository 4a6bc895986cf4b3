package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault absorbs editor save bursts (write + chmod + rename).
const debounceDefault = 200 * time.Millisecond

// Watcher reports changes to a single config file.
type Watcher struct {
	path     string
	debounce time.Duration
	changes  chan struct{}
}

// New creates a watcher for the given file path.
func New(path string) *Watcher {
	return &Watcher{
		path:     path,
		debounce: debounceDefault,
		changes:  make(chan struct{}, 1),
	}
}

// Changes returns the channel that receives a tick after each debounced
// modification of the watched file.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run watches the file's directory and filters events down to the file
// itself. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch dir %s: %w", dir, err)
	}

	slog.Info("watching config", "file", w.path)

	name := filepath.Base(w.path)
	var mu sync.Mutex
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				select {
				case w.changes <- struct{}{}:
				default: // a change is already queued
				}
			})
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}
