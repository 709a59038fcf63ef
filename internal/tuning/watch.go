package tuning

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the tuning file whenever it changes and hands every valid
// result to apply. Invalid edits are logged and skipped. It blocks until ctx
// is done.
func Watch(ctx context.Context, path string, logger *zap.Logger, apply func(Tuning)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerCh = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("tuning watcher error", zap.Error(err))
		case <-timerCh:
			timerCh = nil
			t, err := Load(path)
			if err != nil {
				logger.Warn("tuning reload rejected", zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Info("tuning reloaded", zap.String("path", path))
			apply(t)
		}
	}
}
