package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"ordex/internal/logger"
)

// Watcher re-reads the config file on change and pushes the hot-reloadable
// routing section to subscribers. A file that fails to parse keeps the last
// good values.
type Watcher struct {
	path string
	v    *viper.Viper

	mu      sync.RWMutex
	routing RoutingConfig
	subs    []func(RoutingConfig)
}

func NewWatcher(path string) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	w := &Watcher{path: path, v: v}
	if err := w.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		w.notify()
	})
	v.WatchConfig()
	return w, nil
}

func (w *Watcher) reload() error {
	if err := w.v.ReadInConfig(); err != nil {
		return err
	}
	var cfg Config
	if err := w.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(w.v.AllSettings(), setKeys)
	cfg.Routing.applyDefaults(setKeys)
	if err := cfg.Routing.validate(); err != nil {
		return err
	}
	w.mu.Lock()
	w.routing = cfg.Routing
	w.mu.Unlock()
	logger.Infof("config: routing reloaded small_max=%.2f large_min=%.2f", cfg.Routing.SmallMaxUSD, cfg.Routing.LargeMinUSD)
	return nil
}

func (w *Watcher) notify() {
	w.mu.RLock()
	routing := w.routing
	subs := append([]func(RoutingConfig){}, w.subs...)
	w.mu.RUnlock()
	for _, fn := range subs {
		fn(routing)
	}
}

// Routing returns the last good routing section.
func (w *Watcher) Routing() RoutingConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.routing
}

// OnRoutingChange registers a callback invoked after every successful reload.
func (w *Watcher) OnRoutingChange(fn func(RoutingConfig)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.subs = append(w.subs, fn)
	w.mu.Unlock()
}
