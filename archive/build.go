package archive

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/gordonbrander/szdat/szerr"
)

const defaultWorkers = 8

// Builder snapshots directories into Archives.
//
// The zero value is ready to use: it stamps archives with SystemClock and
// reads up to 8 files concurrently.
type Builder struct {
	// Clock stamps CreatedAt. It is read once, before any file is read.
	Clock Clock
	// Workers bounds concurrent file reads. Values < 1 mean the default.
	Workers int
}

// FromDir snapshots root with a zero Builder.
func FromDir(root string) (*Archive, error) {
	return Builder{}.FromDir(root)
}

// FromDir walks root recursively and returns an Archive holding every regular
// file beneath it. Paths are relative to root, slash-separated and sorted
// bytewise, so the result (and its encoding) does not depend on read order.
// A symlinked root is followed; symlinks and other non-regular entries
// beneath it are skipped. A file name that could not be extracted again
// (invalid UTF-8, a backslash) fails the build with a KindPath error before
// any content is read.
//
// The first unreadable entry aborts the build; no partial archive is returned.
func (b Builder) FromDir(root string) (*Archive, error) {
	createdAt, err := Stamp(b.Clock)
	if err != nil {
		return nil, err
	}

	// WalkDir does not descend into a symlinked root.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, szerr.Wrap(szerr.KindIO, "SZDAT-IO-001", "stat archive root", err)
	}
	root = resolved
	info, err := os.Stat(root)
	if err != nil {
		return nil, szerr.Wrap(szerr.KindIO, "SZDAT-IO-001", "stat archive root", err)
	}
	if !info.IsDir() {
		return nil, szerr.New(szerr.KindIO, "SZDAT-IO-002", "archive root is not a directory: "+root)
	}

	paths, err := listRegular(root)
	if err != nil {
		return nil, err
	}

	workers := b.Workers
	if workers < 1 {
		workers = defaultWorkers
	}

	files := make([]File, len(paths))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return szerr.Wrap(szerr.KindIO, "SZDAT-IO-004", "read "+rel, err)
			}
			files[i] = File{path: rel, content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Archive{createdAt: createdAt, files: files}, nil
}

func listRegular(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if err := ValidatePath(rel); err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if szerr.IsKind(err, szerr.KindPath) {
		return nil, err
	}
	if err != nil {
		return nil, szerr.Wrap(szerr.KindIO, "SZDAT-IO-003", "walk archive root", err)
	}
	sort.Strings(paths)
	return paths, nil
}
