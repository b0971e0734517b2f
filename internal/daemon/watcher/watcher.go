// Package watcher reloads the daemon configuration when its file changes.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/tabd/config"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// ConfigWatcher watches one configuration file and hands every successfully
// reloaded configuration to onReload. Invalid edits are logged and ignored so
// the daemon keeps running on the last good configuration.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	file     string
	target   string // symlink target of file, if any
	debounce time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	logger   *logrus.Entry
	onReload func(*config.Config)
}

// NewConfigWatcher watches the directory holding file, since editors often
// replace files by rename. If file is a symlink its target directory is
// watched too, because fsnotify does not follow symlinks.
func NewConfigWatcher(file string, debounce time.Duration, logger *logrus.Entry, onReload func(*config.Config)) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &ConfigWatcher{
		watcher:  watcher,
		file:     abs,
		debounce: debounce,
		logger:   logger,
		onReload: onReload,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if target, err := filepath.EvalSymlinks(abs); err == nil && target != abs {
		w.target = target
		if filepath.Dir(target) != filepath.Dir(abs) {
			if err := watcher.Add(filepath.Dir(target)); err != nil {
				logger.WithError(err).Warnf("Failed to watch symlink target dir %s", filepath.Dir(target))
			}
		}
	}

	return w, nil
}

// Name returns the task's name.
func (w *ConfigWatcher) Name() string { return "config-watcher" }

// Run processes file events until ctx is canceled, then closes the watcher.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	defer w.stopTimer()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			w.handleChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *ConfigWatcher) matches(name string) bool {
	name = filepath.Clean(name)
	return name == w.file || (w.target != "" && name == w.target)
}

// handleChange schedules a reload once the file has been quiet for the
// debounce window. Every event inside the window restarts it.
func (w *ConfigWatcher) handleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.logger.Debugf("Debounced: %s", filepath.Base(w.file))
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *ConfigWatcher) reload() {
	cfg, err := config.Load(w.file)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring invalid configuration change")
		return
	}

	w.logger.Infof("Config changed: %s", filepath.Base(w.file))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func (w *ConfigWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
