package walker

import (
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFS reads the local disk. Stat follows symlinks, so a link to a
// directory is listed as a directory.
type LocalFS struct{}

func (LocalFS) ReadDirNames(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (LocalFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (LocalFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}
