package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/pit/pkg/log"
)

// DefaultDebounce is how long LevelWatcher waits after the last write
// before re-reading the file.
const DefaultDebounce = 100 * time.Millisecond

// LevelWatcher re-reads log_level from a config file whenever it changes
// and hands the new value to SetLevel.
type LevelWatcher struct {
	Path     string
	SetLevel func(level string)
	Logger   log.Logger
	Debounce time.Duration

	mu       sync.Mutex
	debounce *time.Timer
	current  string
}

// Run watches the file's directory until ctx is done. Editors often replace
// the file instead of writing it in place, so the directory is watched.
func (w *LevelWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}
	delay := w.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	defer w.stopTimer()

	name := filepath.Base(w.Path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(delay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *LevelWatcher) schedule(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *LevelWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

func (w *LevelWatcher) reload() {
	fc, err := LoadFileConfig(w.Path)
	if err != nil {
		w.Logger.Warn("failed to reload config", log.String("path", w.Path), log.Err(err))
		return
	}
	if fc.LogLevel == "" {
		return
	}

	w.mu.Lock()
	changed := fc.LogLevel != w.current
	w.current = fc.LogLevel
	w.mu.Unlock()

	if changed {
		w.SetLevel(fc.LogLevel)
		w.Logger.Info("log level changed", log.String("level", fc.LogLevel))
	}
}
