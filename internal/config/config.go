// Package config implements the controller's optional YAML overlay: a
// file watched with fsnotify whose heartbeat_seconds/chunk_size keys
// can adjust a running controller without a restart. Absent --config,
// the controller just keeps its flag-derived values forever.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Overlay is the mutable subset of controller tuning a config file can
// adjust post-startup.
type Overlay struct {
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`
	ChunkSize        int `yaml:"chunk_size"`
}

func load(path string) (Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overlay{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Overlay{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return o, nil
}

// Watcher holds the last-loaded Overlay and notifies subscribers of
// reloads. It never has an opinion on defaults; the caller seeds the
// initial value from its own flags before Start is called.
type Watcher struct {
	mu       sync.RWMutex
	current  Overlay
	logger   *logrus.Logger
	onChange func(Overlay)
}

// NewWatcher returns a Watcher seeded with initial (typically the
// values given on the CLI flags), invoking onChange every time the file changes
// and parses cleanly. onChange may be nil.
func NewWatcher(initial Overlay, logger *logrus.Logger, onChange func(Overlay)) *Watcher {
	return &Watcher{current: initial, logger: logger, onChange: onChange}
}

// Current returns the most recently applied Overlay.
func (w *Watcher) Current() Overlay {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start loads path once synchronously (so bad config fails fast at
// startup) then watches it for writes, applying a reload on every
// settle. It blocks until stop is closed; run it in its own goroutine.
func (w *Watcher) Start(path string, stop <-chan struct{}) error {
	o, err := load(path)
	if err != nil {
		return err
	}
	w.apply(o)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	// debounce: editors/filesystems often fire Write+Chmod or multiple
	// Write events for a single save.
	var debounce *time.Timer
	const settleDelay = 200 * time.Millisecond

	for {
		select {
		case <-stop:
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(settleDelay, func() {
				o, err := load(path)
				if err != nil {
					w.logger.WithError(err).Warn("config: reload failed, keeping previous overlay")
					return
				}
				w.apply(o)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("config: watcher error")
		}
	}
}

func (w *Watcher) apply(o Overlay) {
	w.mu.Lock()
	w.current = o
	w.mu.Unlock()
	w.logger.WithFields(logrus.Fields{
		"heartbeat_seconds": o.HeartbeatSeconds,
		"chunk_size":        o.ChunkSize,
	}).Info("config: overlay applied")
	if w.onChange != nil {
		w.onChange(o)
	}
}
