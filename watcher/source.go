// Package watcher subscribes to raw filesystem events beneath a watched root.
package watcher

import (
	"errors"
	"fmt"
)

// Op is the kind of change reported for a path.
type Op int

const (
	Added Op = iota
	Modified
	Removed
)

func (op Op) String() string {
	switch op {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// Event is a single raw change for an absolute file path.
type Event struct {
	Op   Op
	Path string
}

var ErrNotDirectory = errors.New("not a directory")

// Source creates one subscription per watched root.
type Source interface {
	Watch(root string) (Subscription, error)
}

// Subscription is a live stream of events for one root's subtree. Events is
// closed once the subscription ends, either through Close or because the
// root itself went away.
type Subscription interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}
