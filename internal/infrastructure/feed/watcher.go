package feed

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"threatcache/internal/bootstrap/logging"
	"threatcache/internal/errs"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher calls OnChange after the feed file has been written or replaced
// and then left alone for the debounce period.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context) error
}

func NewWatcher(path string, debounce time.Duration, onChange func(ctx context.Context) error) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("watch path is required")
	}
	if onChange == nil {
		return nil, errors.New("onChange is required")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.Wrap(err, "resolve watch path")
	}
	return &Watcher{path: abs, debounce: debounce, onChange: onChange}, nil
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are still seen. OnChange errors are
// logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	logCtx := logging.WithAttrs(logging.WithComponent(ctx, "feed.watcher"), slog.String("path", w.path))

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fsnotify watcher")
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return errs.Wrap(err, "watch feed directory")
	}
	logging.Info(logCtx, "watching feed file")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "feed watcher error", slog.Any("err", errs.Loggable(err)))

		case <-timer.C:
			logging.Info(logCtx, "feed file changed")
			if err := w.onChange(ctx); err != nil {
				logging.Error(logCtx, "feed reload failed", slog.Any("err", errs.Loggable(err)))
			}
		}
	}
}
