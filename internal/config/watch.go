package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceWindow is how long Watch waits for writes to settle.
const DebounceWindow = 250 * time.Millisecond

// Watch reloads path whenever it or one of its included files changes and
// passes the result to onChange. Editors that replace files are handled by
// watching the containing directories. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*LoadResult, error)) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer watcher.Close()

	target, err := canonicalPath(path)
	if err != nil {
		return err
	}
	targets := map[string]bool{}
	dirs := map[string]bool{}
	track := func(files []string) {
		targets = map[string]bool{target: true}
		for _, f := range files {
			targets[filepath.Clean(f)] = true
		}
		for f := range targets {
			dir := filepath.Dir(f)
			if dirs[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				logger.Warn("config watch failed", "dir", dir, "error", err)
				continue
			}
			dirs[dir] = true
		}
	}
	if res, err := LoadFromPath(path); err == nil {
		track(res.Files)
	} else {
		track(nil)
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(DebounceWindow)
				timerCh = timer.C
			} else {
				timer.Reset(DebounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			res, err := LoadFromPath(path)
			if err == nil {
				track(res.Files)
			}
			onChange(res, err)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
