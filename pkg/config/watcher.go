package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 300 * time.Millisecond

// WatchFiles calls onChange with the path of a watched file once its
// writes have settled. The parent directories are watched instead of the
// files so atomic rename-on-save is seen. Callbacks never overlap and stop
// when ctx is done.
func WatchFiles(ctx context.Context, debounce time.Duration, onChange func(path string), files ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	targets := make(map[string]string) // absolute path -> path as given
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Cannot resolve watch path", "file", file, "error", err)
			continue
		}
		targets[abs] = file
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Cannot watch directory", "dir", dir, "error", err)
			continue
		}
		dirs[dir] = true
	}
	if len(dirs) == 0 {
		watcher.Close()
		return fmt.Errorf("nothing to watch")
	}

	go func() {
		defer watcher.Close()

		var mu sync.Mutex // serialises onChange
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				name, watched := targets[filepath.Clean(event.Name)]
				if !watched {
					continue
				}
				if t, ok := timers[name]; ok {
					t.Stop()
				}
				timers[name] = time.AfterFunc(debounce, func() {
					if ctx.Err() != nil {
						return
					}
					mu.Lock()
					defer mu.Unlock()
					slog.Info("Configuration file changed", "file", name)
					onChange(name)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			}
		}
	}()

	return nil
}
