package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/justin-molloy/mediawatch/watcher"
)

var ErrClosed = errors.New("tracker is closed")

// Signaler receives every non-hidden raw event, keyed by file path.
type Signaler interface {
	Signal(op watcher.Op, path string)
}

// Marker receives one mark per raw event, keyed by the owning root.
type Marker interface {
	Mark(root string)
}

// Manager owns the mapping from watched root to its live subscription.
// Calls for the same root are linearized; different roots proceed in
// parallel.
type Manager struct {
	source   watcher.Source
	signaler Signaler
	marker   Marker
	hidden   *HiddenFilter

	mu     sync.Mutex
	subs   map[string]watcher.Subscription
	locks  map[string]*rootLock
	closed bool

	wg sync.WaitGroup
}

func NewManager(source watcher.Source, signaler Signaler, marker Marker, hidden *HiddenFilter) *Manager {
	slog.Debug("New watch manager")
	return &Manager{
		source:   source,
		signaler: signaler,
		marker:   marker,
		hidden:   hidden,
		subs:     make(map[string]watcher.Subscription),
		locks:    make(map[string]*rootLock),
	}
}

// AddRoot starts watching root unless it is already watched. A failed
// subscription is logged and returned and leaves the root unwatched.
func (m *Manager) AddRoot(root string) error {
	root = filepath.Clean(root)

	unlock := m.lockRoot(root)
	defer unlock()

	m.mu.Lock()
	closed := m.closed
	_, exists := m.subs[root]
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if exists {
		slog.Debug("Root already watched", "root", root)
		return nil
	}

	sub, err := m.source.Watch(root)
	if err != nil {
		slog.Error("Failed to watch root", "root", root, "error", err)
		return fmt.Errorf("failed to watch root: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	m.subs[root] = sub
	m.wg.Add(1)
	m.mu.Unlock()

	go m.forward(root, sub)

	slog.Info("Watching root", "root", root)
	return nil
}

// RemoveRoot stops watching root. Removing a root that isn't watched is a
// no-op.
func (m *Manager) RemoveRoot(root string) {
	root = filepath.Clean(root)

	unlock := m.lockRoot(root)
	defer unlock()

	m.mu.Lock()
	sub, exists := m.subs[root]
	delete(m.subs, root)
	m.mu.Unlock()

	if !exists {
		slog.Debug("Root not watched, nothing to remove", "root", root)
		return
	}

	if err := sub.Close(); err != nil {
		slog.Warn("Error closing subscription", "root", root, "error", err)
	}
	slog.Info("Stopped watching root", "root", root)
}

// Watching reports whether root has an active subscription.
func (m *Manager) Watching(root string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.subs[filepath.Clean(root)]
	return exists
}

// Roots returns the watched roots in sorted order.
func (m *Manager) Roots() []string {
	m.mu.Lock()
	roots := make([]string, 0, len(m.subs))
	for root := range m.subs {
		roots = append(roots, root)
	}
	m.mu.Unlock()

	slices.Sort(roots)
	return roots
}

// Close tears down every subscription and waits for the forwarders to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	subs := m.subs
	m.subs = make(map[string]watcher.Subscription)
	m.mu.Unlock()

	for root, sub := range subs {
		if err := sub.Close(); err != nil {
			slog.Warn("Error closing subscription", "root", root, "error", err)
		}
	}
	m.wg.Wait()
}

// forward pumps one subscription into the coalescer and the activity
// throttle until its event stream ends.
func (m *Manager) forward(root string, sub watcher.Subscription) {
	defer m.wg.Done()

	events, errs := sub.Events(), sub.Errors()
	for events != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			m.marker.Mark(root)

			if m.hidden.Match(event.Path) {
				slog.Debug("Ignoring hidden file", "Op", event.Op, "Name", event.Path)
				continue
			}
			m.signaler.Signal(event.Op, event.Path)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Error("Watcher error", "root", root, "error", err)
		}
	}

	m.detach(root, sub)
}

// detach drops a subscription whose stream ended on its own so that a later
// AddRoot can subscribe again.
func (m *Manager) detach(root string, sub watcher.Subscription) {
	m.mu.Lock()
	current, exists := m.subs[root]
	if exists && current == sub {
		delete(m.subs, root)
	} else {
		exists = false
	}
	m.mu.Unlock()

	if exists {
		sub.Close()
		slog.Warn("Subscription ended, root no longer watched", "root", root)
	}
}
