package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long the file must stay quiet before a
// reload runs.
const DefaultDebounceInterval = 100 * time.Millisecond

// Watcher reloads the configuration file after it changes. It watches the
// file's directory, so editors that save by rename are still seen.
type Watcher struct {
	path   string
	quiet  time.Duration
	fsw    *fsnotify.Watcher
	logger *slog.Logger
	active atomic.Bool
}

// NewWatcher creates a watcher for the file at path. A non-positive quiet
// period uses DefaultDebounceInterval.
func NewWatcher(path string, quiet time.Duration) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("configuration path is required")
	}
	if quiet <= 0 {
		quiet = DefaultDebounceInterval
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:   abs,
		quiet:  quiet,
		fsw:    fsw,
		logger: slog.Default().With("component", "config.watcher"),
	}, nil
}

// Watch blocks until ctx is cancelled or Close is called. A burst of writes
// produces one ReloadConfig once the file has been quiet; a valid result is
// handed to onReload, an invalid one is logged and the current
// configuration stays in place.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config) error) error {
	if !w.active.CompareAndSwap(false, true) {
		return errors.New("watcher already running")
	}
	defer w.active.Store(false)

	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}
	w.logger.Info("watching configuration", "path", w.path)

	settle := time.NewTimer(w.quiet)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.touches(ev) {
				w.logger.Debug("configuration file changed", "op", ev.Op.String())
				settle.Reset(w.quiet)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("configuration watch error", "error", err)
		case <-settle.C:
			w.reload(onReload)
		}
	}
}

// Close releases the underlying fsnotify watcher, which also ends a running
// Watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) reload(onReload func(*Config) error) {
	cfg, err := ReloadConfig(w.path)
	if err != nil {
		w.logger.Error("configuration rejected, keeping previous", "path", w.path, "error", err)
		return
	}
	w.logger.Info("configuration reloaded", "path", w.path)
	if onReload == nil {
		return
	}
	if err := onReload(cfg); err != nil {
		w.logger.Error("failed to apply reloaded configuration", "error", err)
	}
}

// touches reports whether ev wrote or created the watched file.
func (w *Watcher) touches(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Clean(ev.Name) == w.path
}
