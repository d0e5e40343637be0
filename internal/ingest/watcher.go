// ABOUTME: Watcher ingests documents dropped into a directory and removes deleted ones
// ABOUTME: Uses fsnotify with a per-file debounce so partial writes settle first
package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before it is ingested
const DefaultDebounce = 750 * time.Millisecond

// Handler reacts to settled changes in the watched directory
type Handler interface {
	// Changed is called with the path of a created or rewritten document
	Changed(ctx context.Context, path string) error
	// Removed is called with the path of a deleted or renamed-away document
	Removed(ctx context.Context, path string) error
}

// Watcher monitors one directory (non-recursive)
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, handler Handler, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching; events are handled until ctx ends or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("document watcher started", "dir", w.dir)
	return nil
}

// Stop shuts down the watcher and waits for in-flight handlers
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.fsw.Close()

	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			// the callback never ran, so release its slot
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("document watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	if !Supported(path) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.schedule(ctx, path, func(ctx context.Context) {
			// a rename-in-place leaves the file present
			if _, err := os.Stat(path); err == nil {
				w.run(ctx, "ingest", path, w.handler.Changed)
				return
			}
			w.run(ctx, "remove", path, w.handler.Removed)
		})
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(ctx, path, func(ctx context.Context) {
			w.run(ctx, "ingest", path, w.handler.Changed)
		})
	}
}

// schedule runs fn once path has been quiet for the debounce interval
func (w *Watcher) schedule(ctx context.Context, path string, fn func(context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	})
	w.timers[path] = t
}

func (w *Watcher) run(ctx context.Context, op, path string, fn func(context.Context, string) error) {
	if err := fn(ctx, path); err != nil {
		w.logger.Error("document watcher failed", "op", op, "file", filepath.Base(path), "error", err)
		return
	}
	w.logger.Info("document watcher applied change", "op", op, "file", filepath.Base(path))
}
