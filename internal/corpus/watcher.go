package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change before
// reloading. Scrapers write two files and often several times each.
const DefaultDebounce = 2 * time.Second

// Watcher reloads a [Store] when either corpus file changes on disk.
//
// The parent directories are watched rather than the files themselves so
// that replacement by rename, the usual way of swapping in a fresh scrape, is
// seen. Bursts of events are collapsed into one reload.
type Watcher struct {
	store    *Store
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload. Default: [DefaultDebounce].
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher returns a Watcher for the files of the store's loader.
func NewWatcher(s *Store, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:    s,
		files:    make(map[string]struct{}, 2),
		debounce: DefaultDebounce,
	}
	seen := make(map[string]bool, 2)
	ent, resp := s.loader.Files()
	for _, f := range []string{ent, resp} {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = filepath.Clean(f)
		}
		w.files[abs] = struct{}{}
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches until ctx is cancelled. It returns an error only if the
// watch could not be established.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("corpus: create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("corpus: watch %q: %w", dir, err)
		}
	}
	slog.Info("corpus: watching for changes", "dirs", w.dirs)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("corpus: change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("corpus: watcher error", "err", err)

		case <-timer.C:
			if _, err := w.store.Reload(ctx); err != nil {
				slog.Error("corpus: reload after change failed", "err", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}
