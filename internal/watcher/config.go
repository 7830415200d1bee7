// Package watcher reloads the swarmkeep configuration when the file changes
// on disk.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/swarmkeep/swarmkeep/internal/config"
)

// ConfigWatcher watches a config file and invokes a callback with the
// freshly loaded configuration after each change. Events are debounced:
// editors and atomic-rename writers emit several events per save.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	onChange func(*config.Config)
	onError  func(error)

	fw       *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a ConfigWatcher.
type Option func(*ConfigWatcher)

// WithDebounce overrides the 500ms debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *ConfigWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler receives load failures after a change. Without one,
// failed reloads are silently skipped and the previous config stays active.
func WithErrorHandler(fn func(error)) Option {
	return func(w *ConfigWatcher) { w.onError = fn }
}

// Watch starts watching the config at path. The parent directory is watched
// rather than the file itself, because atomic saves replace the inode. The
// returned watcher must be closed.
func Watch(path string, onChange func(*config.Config), opts ...Option) (*ConfigWatcher, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &ConfigWatcher{
		path:     abs,
		debounce: 500 * time.Millisecond,
		onChange: onChange,
		fw:       fw,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *ConfigWatcher) Close() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	return w.fw.Close()
}

func (w *ConfigWatcher) loop() {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		if w.onError != nil {
			w.onError(fmt.Errorf("reloading config: %w", err))
		}
		return
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
