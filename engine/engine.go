// Package engine wires the watched-root store to the watch manager and the
// debounce, activity and task stages behind it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/justin-molloy/mediawatch/activity"
	"github.com/justin-molloy/mediawatch/config"
	"github.com/justin-molloy/mediawatch/processor"
	"github.com/justin-molloy/mediawatch/selector"
	"github.com/justin-molloy/mediawatch/store"
	"github.com/justin-molloy/mediawatch/tracker"
	"github.com/justin-molloy/mediawatch/walker"
	"github.com/justin-molloy/mediawatch/watcher"
)

var (
	ErrInvalidPath   = errors.New("path must be absolute")
	ErrUnknownRemote = errors.New("unknown remote")
)

// Store is the persistence the engine needs. *store.Store satisfies it.
type Store interface {
	FindAll(ctx context.Context) ([]store.WatchedRoot, error)
	FindOne(ctx context.Context, path string) (store.WatchedRoot, error)
	Create(ctx context.Context, path string) (store.WatchedRoot, error)
	Delete(ctx context.Context, path string) error
	FindOneAndUpdate(ctx context.Context, path string, lastUpdate time.Time) (store.WatchedRoot, error)
}

// RemoteFS is a browsable remote filesystem that holds a connection.
type RemoteFS interface {
	walker.FS
	Close() error
}

// Deps are the engine's collaborators. Only Store is required.
type Deps struct {
	Store  Store
	Source watcher.Source
	Clock  clockwork.Clock
	Dial   func(config.RemoteEntry) (RemoteFS, error)
}

type Engine struct {
	cfg   *config.ConfigData
	store Store
	dial  func(config.RemoteEntry) (RemoteFS, error)

	manager   *tracker.Manager
	debouncer *selector.Debouncer
	throttle  *activity.Throttle
	queue     *processor.Queue

	cancel context.CancelFunc
}

func New(cfg *config.ConfigData, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine needs a store")
	}

	hidden, err := tracker.NewHiddenFilter(cfg.HiddenPattern)
	if err != nil {
		return nil, err
	}

	source := deps.Source
	if source == nil {
		source = watcher.NewSource()
	}
	dial := deps.Dial
	if dial == nil {
		dial = func(r config.RemoteEntry) (RemoteFS, error) {
			fsys, err := walker.DialSFTP(r)
			if err != nil {
				return nil, err
			}
			return fsys, nil
		}
	}

	workers, size := config.DefaultWorkers, config.DefaultQueueSize
	if cfg.Workers != nil {
		workers = *cfg.Workers
	}
	if cfg.QueueSize != nil {
		size = *cfg.QueueSize
	}

	e := &Engine{
		cfg:   cfg,
		store: deps.Store,
		dial:  dial,
		queue: processor.NewQueue(workers, size),
	}

	e.queue.Register(selector.TaskAnalyze, processor.LogAnalyze)
	e.queue.Subscribe(selector.EventRemoved, func(event, path string) {
		slog.Info("Media removed", "event", event, "path", path)
	})

	e.debouncer = selector.NewDebouncer(cfg.DebounceWindow(), e.queue, deps.Clock)
	e.throttle = activity.New(cfg.ThrottleWindow(), e.touch, deps.Clock)
	e.manager = tracker.NewManager(source, e.debouncer, e.throttle, hidden)

	return e, nil
}

// Queue exposes the task queue so callers can register handlers before
// Start.
func (e *Engine) Queue() *processor.Queue {
	return e.queue
}

// touch records activity for a root. A root deleted while its window was
// open is not an error.
func (e *Engine) touch(ctx context.Context, root string, at time.Time) error {
	_, err := e.store.FindOneAndUpdate(ctx, root, at)
	if errors.Is(err, store.ErrNotFound) {
		slog.Debug("Activity for root no longer stored", "root", root)
		return nil
	}
	return err
}

// Start seeds the configured watch dirs into the store and then watches
// every stored root. Roots that can't be watched are logged and skipped.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.queue.Start(runCtx)

	if err := e.seed(ctx); err != nil {
		return err
	}

	roots, err := e.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("can't load watched dirs: %w", err)
	}

	for _, r := range roots {
		if err := e.manager.AddRoot(r.Path); err != nil {
			slog.Warn("Stored root not watched", "root", r.Path, "error", err)
		}
	}

	slog.Info("Engine started", "roots", len(roots), "watching", len(e.manager.Roots()))
	return nil
}

func (e *Engine) seed(ctx context.Context) error {
	for _, dir := range e.cfg.Watch {
		_, err := e.store.Create(ctx, dir)
		switch {
		case err == nil:
			slog.Info("Seeded watched dir from config", "path", dir)
		case errors.Is(err, store.ErrConflict):
		default:
			return fmt.Errorf("can't seed %s: %w", dir, err)
		}
	}
	return nil
}

// CreateRoot stores a new root and starts watching it. A root that is
// stored but can't be watched yet is logged, not returned.
func (e *Engine) CreateRoot(ctx context.Context, path string) (store.WatchedRoot, error) {
	path, err := normalize(path)
	if err != nil {
		return store.WatchedRoot{}, err
	}

	root, err := e.store.Create(ctx, path)
	if err != nil {
		return store.WatchedRoot{}, err
	}

	if err := e.manager.AddRoot(path); err != nil {
		slog.Warn("Created root not watched", "root", path, "error", err)
	}
	return root, nil
}

func (e *Engine) DeleteRoot(ctx context.Context, path string) error {
	path, err := normalize(path)
	if err != nil {
		return err
	}

	if err := e.store.Delete(ctx, path); err != nil {
		return err
	}

	e.manager.RemoveRoot(path)
	return nil
}

func (e *Engine) ListRoots(ctx context.Context) ([]store.WatchedRoot, error) {
	return e.store.FindAll(ctx)
}

func (e *Engine) GetRoot(ctx context.Context, path string) (store.WatchedRoot, error) {
	path, err := normalize(path)
	if err != nil {
		return store.WatchedRoot{}, err
	}
	return e.store.FindOne(ctx, path)
}

// Watching reports whether path currently has a live subscription.
func (e *Engine) Watching(path string) bool {
	return e.manager.Watching(path)
}

// Browse lists the subdirectories of path, locally when remote is empty or
// on the named remote otherwise.
func (e *Engine) Browse(ctx context.Context, remote, path string) ([]walker.Entry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if remote == "" {
		return walker.ListSubdirectories(ctx, walker.LocalFS{}, path)
	}

	entry, ok := e.cfg.Remote(remote)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRemote, remote)
	}

	fsys, err := e.dial(entry)
	if err != nil {
		return nil, err
	}
	defer fsys.Close()

	return walker.ListSubdirectories(ctx, fsys, path)
}

// Close stops watching, drops pending debounce and activity work and drains
// the task queue. The store is left open for its owner to close.
func (e *Engine) Close() {
	e.manager.Close()
	e.debouncer.Stop()
	e.throttle.Stop()
	e.queue.Close()
	if e.cancel != nil {
		e.cancel()
	}
	slog.Info("Engine stopped")
}

func normalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" || !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Clean(path), nil
}
