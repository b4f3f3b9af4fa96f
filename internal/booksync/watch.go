package booksync

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch runs SyncOnce when the bookmarks file changes and again every
// interval as a safety net for missed notifications. The watch is on the
// parent directory because browsers replace the file by rename. Sync errors
// are logged and the watch continues; only a watcher setup failure or context
// cancellation ends it.
func (s *Syncer) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.bookmarksFile)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	if err := s.SyncOnce(ctx); err != nil {
		s.logf("initial sync failed: %v", err)
	}

	target := filepath.Clean(s.bookmarksFile)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(watchDebounce)
			}
		case <-debounceC:
			debounce = nil
			debounceC = nil
			if err := s.SyncOnce(ctx); err != nil {
				s.logf("sync after file change failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logf("watch error: %v", err)
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.logf("periodic sync failed: %v", err)
			}
		}
	}
}
