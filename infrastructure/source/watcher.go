package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// Default watcher timing.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultDebounce     = 200 * time.Millisecond
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// PollInterval runs a pass even without filesystem events (0 disables polling).
	PollInterval time.Duration
	// Debounce coalesces bursts of events into one pass.
	Debounce time.Duration
	// Notify disables fsnotify when false; only polling is used.
	Notify bool
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: DefaultPollInterval,
		Debounce:     DefaultDebounce,
		Notify:       true,
	}
}

// Watcher runs Loader passes in the background when the tools directory
// changes.
type Watcher struct {
	loader   *Loader
	config   WatcherConfig
	onChange func(Report)
}

// NewWatcher creates a watcher. onChange, when set, is called after every
// pass that registered or removed tools or raised new load errors.
func NewWatcher(loader *Loader, config WatcherConfig, onChange func(Report)) *Watcher {
	return &Watcher{loader: loader, config: config, onChange: onChange}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w.config.Notify {
		fw, err := w.notifier()
		if err != nil {
			logging.Warn().
				Add(logging.Component("watcher")).
				Add(logging.ErrorField(err)).
				Msg("filesystem notifications unavailable, polling only")
		} else {
			defer func() { _ = fw.Close() }()
			events, errs = fw.Events, fw.Errors
		}
	}
	if events == nil && w.config.PollInterval <= 0 {
		return errors.New("watcher has neither notifications nor a poll interval")
	}

	var poll <-chan time.Time
	if w.config.PollInterval > 0 {
		ticker := time.NewTicker(w.config.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !relevant(ev) {
				continue
			}
			debounce.Reset(w.config.Debounce)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.Warn().
				Add(logging.Component("watcher")).
				Add(logging.ErrorField(err)).
				Msg("filesystem watch error")

		case <-debounce.C:
			w.pass(ctx)

		case <-poll:
			w.pass(ctx)
		}
	}
}

func (w *Watcher) notifier() (*fsnotify.Watcher, error) {
	dir := w.loader.Dir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create tools directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return fw, nil
}

func (w *Watcher) pass(ctx context.Context) {
	report, err := w.loader.Scan(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Error().
				Add(logging.Component("watcher")).
				Add(logging.ErrorField(err)).
				Msg("tool source pass failed")
		}
		return
	}
	if report.Changed() || len(report.Failed) > 0 {
		logging.Debug().
			Add(logging.Component("watcher")).
			Add(logging.Count("loaded", len(report.Loaded))).
			Add(logging.Count("removed", len(report.Removed))).
			Add(logging.Count("errors", len(report.Errors))).
			Msg("tool sources reloaded")
		if w.onChange != nil {
			w.onChange(report)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if len(base) > 0 && base[0] == '.' {
		return false
	}
	return IsManifest(ev.Name) || filepath.Ext(ev.Name) == ".wasm"
}
