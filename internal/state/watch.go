package state

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reports external changes to the state file until ctx is
// cancelled. Each write or rename of the file produces one tick on the
// returned channel. The directory is watched rather than the file so
// the atomic rename performed by Save is observed.
func (fs *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(fs.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	ticks := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(ticks)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(fs.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case ticks <- struct{}{}:
				default:
					// a tick is already pending
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fs.logger.Warn("state watcher error", zap.Error(err))
			}
		}
	}()

	return ticks, nil
}
