// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/parley/internal/debounce"
)

// DefaultReloadDelay coalesces the burst of events an editor save produces.
const DefaultReloadDelay = 250 * time.Millisecond

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// Watcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file itself so that
// editors and AtomicWriteFile, which replace the file by rename, keep
// triggering reloads. Bursts of events settle through a debounce filter
// before a single reload runs.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	filter   *debounce.Filter[struct{}]
	onChange func(*Config)
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// reloadMu serializes reloads against Close.
	reloadMu sync.Mutex
	closed   bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*watcherOptions)

type watcherOptions struct {
	delay  time.Duration
	clock  debounce.Clock
	logger *slog.Logger
}

// WithReloadDelay sets the quiet period before a reload.
func WithReloadDelay(d time.Duration) WatcherOption {
	return func(o *watcherOptions) { o.delay = d }
}

// WithWatchClock injects the debounce clock.
func WithWatchClock(c debounce.Clock) WatcherOption {
	return func(o *watcherOptions) { o.clock = c }
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(o *watcherOptions) { o.logger = l }
}

// NewWatcher starts watching path. onChange receives each successfully
// reloaded and validated config. Invalid files are logged and skipped, so
// the caller keeps its last good config.
func NewWatcher(path string, onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	o := watcherOptions{delay: DefaultReloadDelay, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     abs,
		watcher:  fsw,
		onChange: onChange,
		logger:   o.logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	var filterOpts []debounce.Option
	if o.clock != nil {
		filterOpts = append(filterOpts, debounce.WithClock(o.clock))
	}
	w.filter = debounce.New(o.delay, func(struct{}) { w.reload() }, filterOpts...)

	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("CONFIG_WATCH_PANIC", "panic", fmt.Sprint(r))
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.filter.Push(struct{}{})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("CONFIG_WATCH_ERROR", "error", err)
		}
	}
}

// reload runs once per settled burst of events.
func (w *Watcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	if w.closed {
		return
	}
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		w.logger.Warn("CONFIG_RELOAD_FAILED", "path", w.path, "error", err)
		return
	}
	w.logger.Info("CONFIG_RELOADED", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops watching. No reload runs after Close returns.
func (w *Watcher) Close() error {
	w.reloadMu.Lock()
	w.closed = true
	w.reloadMu.Unlock()

	w.cancel()
	w.filter.Close()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
