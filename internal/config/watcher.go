package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadCallback is called with the freshly loaded configuration after the
// config file changes on disk.
type ReloadCallback func(cfg *Config)

// Watcher monitors the config file for changes and reloads it.
type Watcher struct {
	watcher       *fsnotify.Watcher
	configPath    string
	debounceDelay time.Duration
	onReload      ReloadCallback
	done          chan struct{}
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	stopOnce      sync.Once
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(configPath string, onReload ReloadCallback) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:       watcher,
		configPath:    configPath,
		debounceDelay: 500 * time.Millisecond,
		onReload:      onReload,
		done:          make(chan struct{}),
	}, nil
}

// Start starts watching the config file's directory. Watching the directory
// instead of the file itself survives editors that replace the file on save.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.eventLoop()

	log.Info().
		Str("path", w.configPath).
		Msg("Config watcher started")

	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Msg("Config watcher stopped")
	return nil
}

// eventLoop processes file system events
func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-w.done:
			return
		}
	}
}

// handleEvent debounces write and create events on the config file
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case <-w.done:
			return
		default:
			w.reload()
		}
	})
}

// reload loads the config file and invokes the callback
func (w *Watcher) reload() {
	cfg, err := Load(w.configPath)
	if err != nil {
		log.Error().
			Err(err).
			Str("path", w.configPath).
			Msg("Failed to reload config")
		return
	}

	if err := NewValidator().Validate(cfg); err != nil {
		log.Error().
			Err(err).
			Msg("Reloaded config is invalid, keeping previous settings")
		return
	}

	log.Info().Msg("Config reloaded")

	if w.onReload != nil {
		w.onReload(cfg)
	}
}
