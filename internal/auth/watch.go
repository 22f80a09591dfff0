package auth

import (
	"context"
	"os"
	"path/filepath"

	"github.com/adamavenir/coverchat/internal/types"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch calls fn whenever another process logs in, logs out or switches
// workspace. It blocks until ctx is done.
func (s *FileSource) Watch(ctx context.Context, logger *zap.Logger, fn func(*types.Session)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// The file is replaced by rename, so watch the directory.
	if err := watcher.Add(dir); err != nil {
		return err
	}

	last := s.Current()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != sessionFileName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			next, err := s.Load()
			if err != nil {
				logger.Debug("session reload failed", zap.Error(err))
				continue
			}
			if last.SameWorkspace(next) {
				continue
			}
			last = next
			fn(next)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Debug("session watcher error", zap.Error(err))
		}
	}
}
