package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type fsnotifySource struct{}

// NewFSNotifySource returns a Source that runs one fsnotify watcher per root.
// fsnotify is not recursive, so every directory below the root gets its own
// watch and directories created later are picked up as they appear.
func NewFSNotifySource() Source {
	return fsnotifySource{}
}

func (fsnotifySource) Watch(root string) (Subscription, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("can't watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("can't watch %s: %w", root, ErrNotDirectory)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	s := &fsSubscription{
		root:   root,
		w:      w,
		events: make(chan Event, 64),
		errors: make(chan error, 8),
		done:   make(chan struct{}),
		dirs:   make(map[string]struct{}),
	}

	if err := s.addTree(root, false); err != nil {
		w.Close()
		return nil, err
	}

	go s.run()
	return s, nil
}

type fsSubscription struct {
	root   string
	w      *fsnotify.Watcher
	events chan Event
	errors chan error
	done   chan struct{}
	once   sync.Once

	// only touched by the run goroutine once it has started
	dirs map[string]struct{}
}

func (s *fsSubscription) Events() <-chan Event { return s.events }
func (s *fsSubscription) Errors() <-chan error { return s.errors }

func (s *fsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.w.Close()
	})
	return err
}

func (s *fsSubscription) run() {
	defer close(s.errors)
	defer close(s.events)
	defer s.Close()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.w.Events:
			if !ok {
				return
			}

			slog.Debug("Filesystem event", "Op", event.Op, "Name", event.Name)

			if !s.handle(event) {
				slog.Warn("Watched root went away", "root", s.root)
				return
			}

		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			default:
				slog.Warn("Dropped watcher error", "root", s.root, "error", err)
			}
		}
	}
}

// handle translates one fsnotify event. It returns false when the root
// itself has been removed or renamed and the subscription should end.
func (s *fsSubscription) handle(event fsnotify.Event) bool {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			// already gone again, the matching Remove follows
			return true
		}
		if info.IsDir() {
			if err := s.addTree(event.Name, true); err != nil {
				slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
		s.emit(Event{Op: Added, Path: event.Name})

	case event.Has(fsnotify.Write):
		s.emit(Event{Op: Modified, Path: event.Name})

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if event.Name == s.root {
			return false
		}
		if _, isDir := s.dirs[event.Name]; isDir {
			s.forgetTree(event.Name)
			return true
		}
		s.emit(Event{Op: Removed, Path: event.Name})
	}

	return true
}

// addTree watches dir and every directory below it. With report set, the
// files found along the way are emitted as Added; a directory moved into the
// tree arrives as a single Create for the directory only.
func (s *fsSubscription) addTree(dir string, report bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			if report {
				s.emit(Event{Op: Added, Path: path})
			}
			return nil
		}

		if err := s.w.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("failed to add %s to watcher: %w", path, err)
			}
			slog.Warn("Failed to add directory to watcher", "path", path, "error", err)
			return filepath.SkipDir
		}
		s.dirs[path] = struct{}{}
		return nil
	})
}

func (s *fsSubscription) forgetTree(dir string) {
	prefix := dir + string(filepath.Separator)
	for p := range s.dirs {
		if p == dir || strings.HasPrefix(p, prefix) {
			// a renamed directory keeps its inotify watch under the old name
			_ = s.w.Remove(p)
			delete(s.dirs, p)
		}
	}
}

func (s *fsSubscription) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
