// Package watch reports changes to a single file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no positive debounce is given.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls a function after the watched file settles following a
// write or re-creation. The parent directory is watched so editors that
// replace files on save are seen too.
type Watcher struct {
	fw       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	onChange func(path string)

	mu     sync.Mutex
	target string
	dir    string
}

// New creates a watcher. onChange runs on its own goroutine.
func New(debounce time.Duration, onChange func(path string), logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{fw: fw, logger: logger, debounce: debounce, onChange: onChange}, nil
}

// Watch replaces the watched file with path.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if dir != w.dir {
		if err := w.fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		if w.dir != "" {
			_ = w.fw.Remove(w.dir)
		}
		w.dir = dir
	}
	w.target = abs
	w.logger.Debug("watching file", "path", abs)
	return nil
}

// Unwatch stops reporting changes until the next Watch.
func (w *Watcher) Unwatch() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dir != "" {
		_ = w.fw.Remove(w.dir)
	}
	w.dir, w.target = "", ""
	w.logger.Debug("watch cleared")
}

// Target returns the absolute path of the watched file.
func (w *Watcher) Target() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

// Run delivers change notifications until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			target := w.Target()
			if target == "" || filepath.Clean(event.Name) != target {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil || w.Target() != target {
					return
				}
				w.logger.Debug("file changed", "path", target)
				w.onChange(target)
			})

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
