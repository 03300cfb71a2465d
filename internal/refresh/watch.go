package refresh

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"opsboard/internal/config"
	"opsboard/internal/logger"
)

// WatchPaths lists the local files behind cfg's feeds and registry.
func WatchPaths(cfg *config.Config) []string {
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" {
			return
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		seen[p] = true
	}
	for _, fc := range cfg.Feeds {
		switch fc.Kind {
		case config.FeedFile, config.FeedXLSX:
			add(fc.Path)
		}
	}
	add(cfg.Registry.Path)

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Watcher calls trigger after watched files change, once per quiet period.
// Directories are watched rather than the files so that editors replacing a
// file through rename are still noticed.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	trigger  func()
	log      logger.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher starts watching the directories of paths.
func NewWatcher(paths []string, debounce time.Duration, trigger func(), log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{fs: fw, files: make(map[string]bool), debounce: debounce, trigger: trigger, log: log}
	dirs := make(map[string]bool)
	for _, p := range paths {
		w.files[filepath.Clean(p)] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run dispatches events until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("Watched file changed", logger.String("path", event.Name), logger.String("op", event.Op.String()))
			w.schedule()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("File watcher error", logger.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.trigger)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.fs.Close()
}
