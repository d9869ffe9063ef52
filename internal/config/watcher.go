package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"allycheck/internal/logging"
)

// DefaultDebounce is how long Watch waits after the last write before
// reloading. Editors often save in several steps.
const DefaultDebounce = 300 * time.Millisecond

// Watch reloads the configuration file at path whenever it changes and
// passes every valid result to fn. Invalid files are logged and skipped so
// the previous configuration stays in effect. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file, so atomic renames
// by editors are picked up.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	return watch(ctx, path, DefaultDebounce, fn)
}

func watch(ctx context.Context, path string, debounce time.Duration, fn func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logging.Boot("config watcher: watching %s", abs)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.BootWarn("config watcher: %v", err)

		case <-timer.C:
			cfg, err := Load(abs)
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				logging.BootWarn("config watcher: keeping previous configuration: %v", err)
				continue
			}
			logging.Boot("config watcher: reloaded %s", abs)
			fn(cfg)
		}
	}
}
