package walker

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.Mkdir(filepath.Join(root, n), 0o755))
	}
}

func TestListSubdirectories_SortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "b", "a", ".hidden", "c")
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0o644))

	got, err := ListSubdirectories(context.Background(), LocalFS{}, root)
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Name: "a", Path: filepath.Join(root, "a")},
		{Name: "b", Path: filepath.Join(root, "b")},
		{Name: "c", Path: filepath.Join(root, "c")},
	}, got)
}

func TestListSubdirectories_Empty(t *testing.T) {
	got, err := ListSubdirectories(context.Background(), LocalFS{}, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListSubdirectories_FollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	if err := os.Symlink(target, filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, err := ListSubdirectories(context.Background(), LocalFS{}, root)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "linked", got[0].Name)
}

func TestListSubdirectories_MissingRoot(t *testing.T) {
	_, err := ListSubdirectories(context.Background(), LocalFS{}, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
}

func TestListSubdirectories_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := ListSubdirectories(context.Background(), LocalFS{}, file)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ENOTDIR), "got %v", err)
}

func TestListSubdirectories_BrokenChildFailsWholeListing(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a", "b")
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, err := ListSubdirectories(context.Background(), LocalFS{}, root)
	require.Error(t, err)
	assert.Nil(t, got, "no partial result")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
}

// fakeFS fails Stat for one name and counts calls.
type fakeFS struct {
	names  []string
	dirs   map[string]bool
	failOn string
	stats  atomic.Int32
}

type fakeInfo struct {
	name string
	dir  bool
}

func (i fakeInfo) Name() string { return i.name }
func (i fakeInfo) Size() int64  { return 0 }
func (i fakeInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir
	}
	return 0
}
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

func (f *fakeFS) ReadDirNames(string) ([]string, error) { return f.names, nil }

func (f *fakeFS) Stat(name string) (fs.FileInfo, error) {
	f.stats.Add(1)
	base := filepath.Base(name)
	if base == f.failOn {
		return nil, fs.ErrPermission
	}
	return fakeInfo{name: base, dir: f.dirs[base]}, nil
}

func (f *fakeFS) Join(elem ...string) string { return filepath.Join(elem...) }

func TestListSubdirectories_StatFailure(t *testing.T) {
	f := &fakeFS{
		names:  []string{"a", "b", "secret", "c"},
		dirs:   map[string]bool{"a": true, "b": true, "secret": true, "c": true},
		failOn: "secret",
	}

	got, err := ListSubdirectories(context.Background(), f, "/srv")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestListSubdirectories_StatsEveryChild(t *testing.T) {
	names := make([]string, 100)
	dirs := map[string]bool{}
	for i := range names {
		names[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
		dirs[names[i]] = i%2 == 0
	}
	f := &fakeFS{names: names, dirs: dirs}

	got, err := ListSubdirectories(context.Background(), f, "/srv")
	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, int32(100), f.stats.Load())
	assert.IsNonDecreasing(t, entryNames(got))
}

func entryNames(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestListSubdirectories_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFS{names: []string{"a"}, dirs: map[string]bool{"a": true}}
	_, err := ListSubdirectories(ctx, f, "/srv")
	assert.ErrorIs(t, err, context.Canceled)
}
