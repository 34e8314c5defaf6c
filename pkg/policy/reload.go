package policy

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jingkaihe/pkgveil/internal/errx"
)

// Reloader watches a policy file and pushes every valid revision into an
// Engine. Invalid revisions are logged and the previous rules stay active.
type Reloader struct {
	watcher  *fsnotify.Watcher
	engine   *Engine
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	reloads  int
	onReload func()
}

// NewReloader watches the directory holding path so that editors that
// replace the file by rename are still observed.
func NewReloader(engine *Engine, path string, debounce time.Duration, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errx.Wrap(ErrCreateWatcher, err)
	}
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, errx.With(ErrWatchPolicy, " %q: %w", path, err)
	}
	return &Reloader{
		watcher:  watcher,
		engine:   engine,
		path:     path,
		debounce: debounce,
		logger:   logger.With("component", "policy-reloader", "path", path),
	}, nil
}

// Reload loads the policy file once and swaps it into the engine.
func (r *Reloader) Reload() error {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		return err
	}
	if err := r.engine.Update(cfg); err != nil {
		return err
	}
	r.mu.Lock()
	r.reloads++
	fn := r.onReload
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// OnReload registers fn to run after every applied revision. Call it
// before Run.
func (r *Reloader) OnReload(fn func()) {
	r.mu.Lock()
	r.onReload = fn
	r.mu.Unlock()
}

// Reloads returns how many revisions have been applied.
func (r *Reloader) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

// Run blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(r.debounce, func() {
				if err := r.Reload(); err != nil {
					r.logger.Error("policy reload failed, keeping previous rules", "error", err)
					return
				}
				r.logger.Info("policy reloaded")
			})

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("policy watcher error", "error", err)
		}
	}
}
