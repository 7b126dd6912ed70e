package library

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// rescanDelay coalesces bursts of filesystem events into one scan.
const rescanDelay = 500 * time.Millisecond

// Watch rescans the library whenever files are created, removed or renamed
// under its directory. It blocks until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	if l.dir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := l.addDirs(watcher, l.dir); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New subdirectories are not watched recursively by fsnotify.
				if err := l.addDirs(watcher, event.Name); err != nil {
					l.logger.Debug("not watching new path", zap.String("path", event.Name), zap.Error(err))
				}
			}
			if timer == nil {
				timer = time.NewTimer(rescanDelay)
			} else {
				timer.Reset(rescanDelay)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if _, err := l.Scan(); err != nil {
				l.logger.Warn("rescan failed", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("library watcher error", zap.Error(err))
		}
	}
}

// addDirs adds root and every directory below it to watcher. Non-directories are ignored.
func (l *Library) addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
