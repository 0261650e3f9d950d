// Package activity throttles "last activity" updates per watched root.
//
// The first Mark after an idle period runs the action right away. Marks that
// arrive while the window is open are folded into a single trailing run when
// it closes, and that run opens a new window. A burst therefore costs at most
// two runs per window, and the last mark of a burst is never lost. Runs for
// one root never overlap: a trailing run waits for the one before it.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultWindow = 2 * time.Second

// Action persists the activity timestamp for root.
type Action func(ctx context.Context, root string, at time.Time) error

// state is one root's throttle. At most one action runs per root, so stored
// timestamps never go backwards.
type state struct {
	timer    clockwork.Timer
	open     bool
	running  bool
	trailing bool
}

type Throttle struct {
	window time.Duration
	clock  clockwork.Clock
	action Action

	// runs outlive the Mark call that triggered them
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	roots   map[string]*state
	stopped bool
	wg      sync.WaitGroup
}

func New(window time.Duration, action Action, clock clockwork.Clock) *Throttle {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Throttle{
		window: window,
		clock:  clock,
		action: action,
		ctx:    ctx,
		cancel: cancel,
		roots:  make(map[string]*state),
	}
}

// Mark records activity for root. It never blocks on the action.
func (t *Throttle) Mark(root string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	if st, ok := t.roots[root]; ok {
		st.trailing = true
		return
	}

	st := &state{}
	t.roots[root] = st
	t.flush(root, st)
}

// windowClosed either flushes the trailing mark and opens a new window, or
// forgets the root. A run still in flight finishes the job in runDone.
func (t *Throttle) windowClosed(root string, st *state) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.roots[root] != st {
		return
	}
	st.open = false
	t.settle(root, st)
}

// runDone is called when an action returns.
func (t *Throttle) runDone(root string, st *state) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st.running = false
	if t.stopped || t.roots[root] != st || st.open {
		return
	}
	t.settle(root, st)
}

// settle handles a closed window with no action running. Called with t.mu
// held.
func (t *Throttle) settle(root string, st *state) {
	if st.running {
		return
	}
	if !st.trailing {
		delete(t.roots, root)
		return
	}
	st.trailing = false
	t.flush(root, st)
}

// flush opens a window and starts the action on its own goroutine. Called
// with t.mu held.
func (t *Throttle) flush(root string, st *state) {
	at := t.clock.Now()
	st.open = true
	st.running = true
	st.timer = t.clock.AfterFunc(t.window, func() { t.windowClosed(root, st) })

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.runDone(root, st)
		if err := t.action(t.ctx, root, at); err != nil {
			slog.Error("Failed to record directory activity", "root", root, "error", err)
			return
		}
		slog.Debug("Recorded directory activity", "root", root, "at", at)
	}()
}

// Stop cancels pending trailing runs and waits for running actions.
func (t *Throttle) Stop() {
	t.mu.Lock()
	t.stopped = true
	for root, st := range t.roots {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(t.roots, root)
	}
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

// Tracked returns the number of roots with an open window or a running action.
func (t *Throttle) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.roots)
}
