package selector

import (
	"github.com/jonboulle/clockwork"

	"github.com/justin-molloy/mediawatch/watcher"
)

type entry struct {
	op    watcher.Op
	timer clockwork.Timer
	gen   uint64
}

// Pending returns the number of paths waiting for their window to close.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// IsPending reports whether path has an unfired entry and its current op.
func (d *Debouncer) IsPending(path string) (watcher.Op, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, exists := d.pending[path]
	if !exists {
		return 0, false
	}
	return e.op, true
}
