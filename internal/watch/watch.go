// Package watch re-runs analysis when supported source files change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/repograph/internal/discover"
	"github.com/jward/repograph/internal/lang"
)

// DefaultDebounce is the quiet period after the last change before analysis
// runs.
const DefaultDebounce = 500 * time.Millisecond

// AnalyzeFunc is invoked with the changed files (absolute paths, sorted)
// once changes settle.
type AnalyzeFunc func(ctx context.Context, changed []string) error

// Watcher watches a directory tree and triggers a full re-analysis after
// supported files change.
type Watcher struct {
	root     string
	analyze  AnalyzeFunc
	debounce time.Duration
	logger   *slog.Logger
	fs       *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger. A nil logger keeps the default, which
// discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Watcher over root. Call Run to start it.
func New(root string, analyze AnalyzeFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		root:     root,
		analyze:  analyze,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
		fs:       fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addDirs(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addDirs(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && discover.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is done. Analysis runs on this goroutine,
// so runs never overlap; changes arriving during a run are batched into the
// next one.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				pending[ev.Name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			w.logger.Info("changes detected", "files", len(changed))
			if err := w.analyze(ctx, changed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("re-analysis failed", "err", err)
			}
		}
	}
}

// handle updates the watch set for new directories and reports whether ev
// should trigger analysis.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !discover.SkipDir(ev.Name) {
				if err := w.addDirs(ev.Name); err != nil {
					w.logger.Warn("watch new directory", "path", ev.Name, "err", err)
				}
			}
			return false
		}
	}
	return lang.Supported(ev.Name)
}
