package tracker

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gobwas/glob"
)

// DefaultHiddenPattern matches AppleDouble and similar sidecar files.
const DefaultHiddenPattern = "._*"

// HiddenFilter matches paths whose last segment is a hidden or temporary
// file that never counts as a content change.
type HiddenFilter struct {
	pattern string
	g       glob.Glob
}

func NewHiddenFilter(pattern string) (*HiddenFilter, error) {
	if pattern == "" {
		pattern = DefaultHiddenPattern
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid hidden pattern %q: %w", pattern, err)
	}
	return &HiddenFilter{pattern: pattern, g: g}, nil
}

// Match reports whether the final segment of path is hidden. A nil filter
// matches nothing.
func (f *HiddenFilter) Match(path string) bool {
	if f == nil {
		return false
	}
	return f.g.Match(filepath.Base(path))
}

func (f *HiddenFilter) Pattern() string {
	if f == nil {
		return ""
	}
	return f.pattern
}

type rootLock struct {
	sync.Mutex
	refs int
}

// lockRoot serializes AddRoot/RemoveRoot per root. Lock entries are dropped
// once nobody holds or waits on them.
func (m *Manager) lockRoot(root string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[root]
	if !ok {
		l = &rootLock{}
		m.locks[root] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, root)
		}
		m.mu.Unlock()
	}
}
