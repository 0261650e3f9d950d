//go:build darwin

package watcher

// NewSource returns the platform's default event source. FSEvents streams
// are recursive, so there is no per-directory bookkeeping on darwin.
func NewSource() Source {
	return NewFSEventsSource()
}
