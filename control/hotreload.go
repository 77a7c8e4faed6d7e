// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Hooks and interfaces for hot-reload-compatible components, plus an
// fsnotify-backed watcher that reloads IOCPConfig from a file on change.

package control

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var reloadHooks []func()

// RegisterReloadHook adds a component reload listener.
func RegisterReloadHook(fn func()) {
	reloadHooks = append(reloadHooks, fn)
}

// TriggerHotReload dispatches all reload hooks.
func TriggerHotReload() {
	for _, fn := range reloadHooks {
		go fn()
	}
}

// ConfigFileWatcher reloads a ConfigStore's IOCPConfig whenever the backing
// JSON file changes, debouncing rapid successive writes.
type ConfigFileWatcher struct {
	mu            sync.Mutex
	watcher       *fsnotify.Watcher
	store         *ConfigStore
	path          string
	debounceTimer *time.Timer
}

// NewConfigFileWatcher creates a watcher bound to store, reloading from path.
func NewConfigFileWatcher(store *ConfigStore, path string) (*ConfigFileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &ConfigFileWatcher{watcher: watcher, store: store, path: path}, nil
}

// Watch starts watching the configured file's parent directory and begins
// dispatching debounced reloads in the background.
func (w *ConfigFileWatcher) Watch() error {
	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	w.path = absPath

	dir := filepath.Dir(absPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	go w.loop()
	return nil
}

func (w *ConfigFileWatcher) loop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			w.mu.Lock()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.debounceTimer = time.AfterFunc(debounceInterval, w.reload)
			w.mu.Unlock()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *ConfigFileWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	var cfg IOCPConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return
	}
	w.store.SetIOCPConfig(cfg)
	TriggerHotReload()
}

// Close stops the underlying fsnotify watcher.
func (w *ConfigFileWatcher) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
