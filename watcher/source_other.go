//go:build !darwin

package watcher

// NewSource returns the platform's default event source.
func NewSource() Source {
	return NewFSNotifySource()
}
