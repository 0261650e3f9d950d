// Package selector coalesces bursts of raw events per path into a single
// downstream signal once the path has been quiet for the debounce window.
package selector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/justin-molloy/mediawatch/watcher"
)

const (
	DefaultWindow = 2 * time.Second

	TaskAnalyze  = "analyze"
	EventRemoved = "removed"
)

// Sink receives settled decisions.
type Sink interface {
	Enqueue(task, path string) error
	Emit(event, path string)
}

// Debouncer keeps at most one pending entry per path. A new signal for a
// pending path replaces its op and restarts the window, so each quiet period
// produces exactly one call on the sink.
type Debouncer struct {
	window time.Duration
	clock  clockwork.Clock
	sink   Sink

	mu      sync.Mutex
	pending map[string]*entry
	seq     uint64
	stopped bool
}

func NewDebouncer(window time.Duration, sink Sink, clock clockwork.Clock) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer{
		window:  window,
		clock:   clock,
		sink:    sink,
		pending: make(map[string]*entry),
	}
}

// Signal records op for path and (re)schedules its fire.
func (d *Debouncer) Signal(op watcher.Op, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.seq++
	gen := d.seq

	e, exists := d.pending[path]
	if exists {
		e.timer.Stop()
	} else {
		e = &entry{}
		d.pending[path] = e
	}
	e.op = op
	e.gen = gen
	e.timer = d.clock.AfterFunc(d.window, func() { d.fire(path, gen) })

	slog.Debug("Debounce scheduled", "path", path, "op", op, "reset", exists)
}

// fire runs on the timer goroutine. A fire whose generation no longer
// matches was superseded after its timer had already started.
func (d *Debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	e, exists := d.pending[path]
	if !exists || e.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	op := e.op
	d.mu.Unlock()

	d.dispatch(op, path)
}

func (d *Debouncer) dispatch(op watcher.Op, path string) {
	if op == watcher.Removed {
		slog.Info("Path removed", "path", path)
		d.sink.Emit(EventRemoved, path)
		return
	}

	slog.Info("Queued path for analysis", "path", path, "op", op)
	if err := d.sink.Enqueue(TaskAnalyze, path); err != nil {
		slog.Error("Failed to enqueue analysis", "path", path, "error", err)
	}
}

// Stop cancels every pending entry. Signals after Stop are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for path, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, path)
	}
}

func (d *Debouncer) Window() time.Duration {
	return d.window
}
