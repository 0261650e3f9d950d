//go:build darwin

package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsevents"
)

type fseventsSource struct {
	latency time.Duration
}

// NewFSEventsSource returns a Source backed by one FSEvents stream per root.
func NewFSEventsSource() Source {
	return fseventsSource{latency: 500 * time.Millisecond}
}

func (f fseventsSource) Watch(root string) (Subscription, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("can't watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("can't watch %s: %w", root, ErrNotDirectory)
	}

	dev, err := fsevents.DeviceForPath(root)
	if err != nil {
		return nil, fmt.Errorf("can't find device for %s: %w", root, err)
	}

	es := &fsevents.EventStream{
		Paths:   []string{root},
		Latency: f.latency,
		Device:  dev,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot,
	}
	if err := es.Start(); err != nil {
		return nil, fmt.Errorf("failed to start event stream for %s: %w", root, err)
	}

	s := &fseventsSubscription{
		root:   root,
		es:     es,
		events: make(chan Event, 64),
		errors: make(chan error),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

type fseventsSubscription struct {
	root   string
	es     *fsevents.EventStream
	events chan Event
	errors chan error
	done   chan struct{}
	once   sync.Once
}

func (s *fseventsSubscription) Events() <-chan Event { return s.events }
func (s *fseventsSubscription) Errors() <-chan error { return s.errors }

func (s *fseventsSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.es.Stop()
	})
	return nil
}

func (s *fseventsSubscription) run() {
	defer close(s.errors)
	defer close(s.events)
	defer s.Close()

	for {
		select {
		case <-s.done:
			return
		case batch, ok := <-s.es.Events:
			if !ok {
				return
			}
			for _, ev := range batch {
				slog.Debug("Filesystem event", "Flags", ev.Flags, "Name", ev.Path)

				if ev.Flags&fsevents.RootChanged != 0 {
					slog.Warn("Watched root went away", "root", s.root)
					return
				}
				if ev.Flags&fsevents.ItemIsFile == 0 {
					continue
				}
				op, ok := translate(ev)
				if !ok {
					continue
				}
				select {
				case s.events <- Event{Op: op, Path: ev.Path}:
				case <-s.done:
					return
				}
			}
		}
	}
}

// translate folds the coalesced FSEvents flags into a single Op. A rename
// reports both the old and the new name, so existence decides which one
// this is.
func translate(ev fsevents.Event) (Op, bool) {
	switch {
	case ev.Flags&(fsevents.ItemRemoved|fsevents.ItemRenamed) != 0:
		if _, err := os.Stat(ev.Path); err != nil {
			return Removed, true
		}
		return Added, true
	case ev.Flags&fsevents.ItemCreated != 0:
		return Added, true
	case ev.Flags&fsevents.ItemModified != 0:
		return Modified, true
	}
	return 0, false
}
