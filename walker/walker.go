// Package walker lists the immediate subdirectories of a directory for the
// interactive directory browser.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// maxInFlight bounds concurrent stats per listing.
const maxInFlight = 16

// Entry is one subdirectory with its full path.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// FS is the filesystem surface the lister needs.
type FS interface {
	ReadDirNames(name string) ([]string, error)
	Stat(name string) (fs.FileInfo, error)
	Join(elem ...string) string
}

// ListSubdirectories returns the non-hidden subdirectories of root sorted by
// name. Every child is stat'ed; if enumeration or any stat fails the listing
// fails with that error and no partial result.
func ListSubdirectories(ctx context.Context, fsys FS, root string) ([]Entry, error) {
	names, err := fsys.ReadDirNames(root)
	if err != nil {
		return nil, fmt.Errorf("can't list %s: %w", root, err)
	}

	infos := make([]fs.FileInfo, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := fsys.Stat(fsys.Join(root, name))
			if err != nil {
				return fmt.Errorf("can't inspect %s: %w", name, err)
			}
			infos[i] = info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for i, name := range names {
		if strings.HasPrefix(name, ".") || !infos[i].IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: name, Path: fsys.Join(root, name)})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})

	return entries, nil
}
