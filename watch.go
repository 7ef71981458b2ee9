package semcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reviewloop/semcache/internal/observability"
)

// ConfigWatcher reloads the configuration file on change and notifies
// listeners. It uses atomic pointer swaps so Get never blocks on a reload,
// and debounces rapid write events from editors and orchestrators.
type ConfigWatcher struct {
	config   atomic.Pointer[Config]
	path     string
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	logger   *observability.Logger
}

// NewConfigWatcher loads the file once and returns a watcher that is not
// yet watching; call Watch to start.
func NewConfigWatcher(path string, logger *observability.Logger) (*ConfigWatcher, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.Nop()
	}

	w := &ConfigWatcher{
		path:   path,
		logger: logger,
	}
	w.config.Store(cfg)

	return w, nil
}

// Get returns the current configuration.
// Safe to call concurrently from multiple goroutines.
func (w *ConfigWatcher) Get() *Config {
	return w.config.Load()
}

// OnChange registers a callback invoked after a successful reload.
// Register all callbacks before calling Watch.
func (w *ConfigWatcher) OnChange(fn func(*Config)) {
	w.onChange = append(w.onChange, fn)
}

// Watch starts watching the configuration file until ctx is canceled.
func (w *ConfigWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(w.path); err != nil {
		_ = watcher.Close()
		return err
	}

	go w.watchLoop(ctx)
	return nil
}

func (w *ConfigWatcher) watchLoop(ctx context.Context) {
	const debounceDelay = 500 * time.Millisecond
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					w.reload()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *ConfigWatcher) reload() {
	newCfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Error("failed to reload config, keeping current", "error", err)
		return
	}

	w.config.Store(newCfg)
	w.logger.Info("configuration reloaded")

	for _, fn := range w.onChange {
		fn(newCfg)
	}
}

// Close stops the configuration watcher.
func (w *ConfigWatcher) Close() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
