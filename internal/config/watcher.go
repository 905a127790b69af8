package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadHandler is invoked when a watched config file changes.
type ReloadHandler func(path string) error

// Watcher watches a config directory and calls registered handlers when a
// file they subscribed to is created or modified. Used for hot-reloading the
// tool rate-limit file without a restart.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	mu       sync.RWMutex
	handlers map[string][]ReloadHandler // keyed by base filename
	stopCh   chan struct{}
	started  bool

	// Events arriving within the window are coalesced per file. Editors
	// often emit several writes for one save.
	debounce time.Duration
}

// NewWatcher creates a watcher for dir. Call Start to begin delivering
// events and Stop to shut it down.
func NewWatcher(dir string, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		logger:   logger,
		handlers: make(map[string][]ReloadHandler),
		stopCh:   make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}, nil
}

// OnChange registers a handler for one file (base name, not path) inside the
// watched directory.
func (w *Watcher) OnChange(file string, h ReloadHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[file] = append(w.handlers[file], h)
}

// Start begins watching. It returns once the directory is registered; event
// delivery happens on a background goroutine until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

// Stop terminates the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	pending := make(map[string]*time.Timer)
	var pendingMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(evt.Name)
			w.mu.RLock()
			_, watched := w.handlers[name]
			w.mu.RUnlock()
			if !watched {
				continue
			}

			pendingMu.Lock()
			if t, ok := pending[name]; ok {
				t.Stop()
			}
			path := evt.Name
			pending[name] = time.AfterFunc(w.debounce, func() {
				pendingMu.Lock()
				delete(pending, name)
				pendingMu.Unlock()
				w.fire(name, path)
			})
			pendingMu.Unlock()
		}
	}
}

func (w *Watcher) fire(name, path string) {
	w.mu.RLock()
	handlers := append([]ReloadHandler(nil), w.handlers[name]...)
	w.mu.RUnlock()

	for _, h := range handlers {
		if err := h(path); err != nil {
			w.logger.Warn("Config reload handler failed",
				zap.String("file", name), zap.Error(err))
			continue
		}
		w.logger.Info("Config reloaded", zap.String("file", name))
	}
}
