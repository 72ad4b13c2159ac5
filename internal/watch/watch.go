// Package watch re-runs a handler whenever one of a set of files changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler runs after a burst of changes has settled.
type Handler func(ctx context.Context) error

// Watcher watches the parent directories of its files so that editors which
// save by rename are still noticed.
type Watcher struct {
	fs       *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logf     func(format string, args ...any)

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}
}

func New(handler Handler, debounce time.Duration, logf func(format string, args ...any)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	return &Watcher{
		fs:       fw,
		handler:  handler,
		debounce: debounce,
		logf:     logf,
		files:    map[string]struct{}{},
		dirs:     map[string]struct{}{},
	}, nil
}

// Watch adds a file. Adding the same file twice is a no-op.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; !ok {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("add watch path: %w", err)
		}
		w.dirs[dir] = struct{}{}
	}
	w.files[abs] = struct{}{}
	return nil
}

func (w *Watcher) watching(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return ok
}

// Run blocks until ctx is done. Handler errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !w.watching(ev.Name) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if err := w.handler(ctx); err != nil {
				w.logf("re-render failed: %v", err)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
