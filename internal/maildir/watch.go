package maildir

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch returns a channel that receives a signal whenever new/ changes, as
// a latency optimization for the queue processor's polling loop. It is
// best-effort: if the underlying watcher cannot be created (for example,
// because the platform lacks inotify/kqueue support), Watch logs a warning
// and returns a channel that is never written to. The caller's interval
// poll remains the only required drain mechanism; Watch only shortens the
// wait between ticks.
func Watch(ctx context.Context, s *Spool, logger *slog.Logger) <-chan struct{} {
	ch := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if logger != nil {
			logger.Warn("maildir: fsnotify unavailable, falling back to interval-only polling", "error", err)
		}
		return ch
	}

	if err := watcher.Add(s.NewDir()); err != nil {
		if logger != nil {
			logger.Warn("maildir: could not watch new/", "error", err)
		}
		_ = watcher.Close()
		return ch
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.Warn("maildir: fsnotify error", "error", err)
				}
			}
		}
	}()

	return ch
}
