package archive

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gordonbrander/szdat/szerr"
)

// ExistingPolicy decides what WriteDir does with files that already exist.
type ExistingPolicy int

const (
	// Overwrite replaces existing regular files.
	Overwrite ExistingPolicy = iota
	// FailIfExists refuses to extract if any target path already exists.
	// The check covers every file before anything is written.
	FailIfExists
)

// ExtractOptions controls WriteDir.
type ExtractOptions struct {
	Policy ExistingPolicy
}

// ValidatePath reports whether p is a valid UTF-8, slash-separated relative
// path that stays inside the directory it is joined to.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return szerr.New(szerr.KindPath, "SZDAT-PATH-001", "empty path")
	case !utf8.ValidString(p):
		return szerr.New(szerr.KindPath, "SZDAT-PATH-013", "path is not valid UTF-8: "+strconv.Quote(p))
	case strings.ContainsRune(p, 0):
		return szerr.New(szerr.KindPath, "SZDAT-PATH-002", "path contains NUL: "+p)
	case strings.Contains(p, `\`):
		return szerr.New(szerr.KindPath, "SZDAT-PATH-003", "path contains backslash: "+p)
	case strings.HasPrefix(p, "/"):
		return szerr.New(szerr.KindPath, "SZDAT-PATH-004", "absolute path: "+p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			return szerr.New(szerr.KindPath, "SZDAT-PATH-005", "non-canonical path: "+p)
		case "..":
			return szerr.New(szerr.KindPath, "SZDAT-PATH-006", "path escapes root: "+p)
		}
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return szerr.New(szerr.KindPath, "SZDAT-PATH-007", "path is not local on this platform: "+p)
	}
	return nil
}

// WriteDir writes every file of a beneath root, creating root and any missing
// intermediate directories.
//
// All paths are validated before anything is written: unsafe paths, duplicate
// paths and (under FailIfExists) existing targets abort the extraction with
// nothing on disk changed. WriteDir never writes through a symlink found
// beneath root.
func WriteDir(a *Archive, root string, opts ExtractOptions) error {
	if a == nil {
		return szerr.New(szerr.KindInternal, "SZDAT-EXT-001", "nil archive")
	}

	seen := make(map[string]struct{}, len(a.files))
	for _, f := range a.files {
		if err := ValidatePath(f.path); err != nil {
			return err
		}
		if _, dup := seen[f.path]; dup {
			return szerr.New(szerr.KindPath, "SZDAT-PATH-008", "duplicate path: "+f.path)
		}
		seen[f.path] = struct{}{}
	}
	for _, f := range a.files {
		for i := strings.IndexByte(f.path, '/'); i >= 0; i = nextSlash(f.path, i) {
			if _, clash := seen[f.path[:i]]; clash {
				return szerr.New(szerr.KindPath, "SZDAT-PATH-012", "path is nested under a file: "+f.path)
			}
		}
	}

	for _, f := range a.files {
		if err := checkTarget(root, f.path, opts.Policy); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return szerr.Wrap(szerr.KindIO, "SZDAT-IO-005", "create output directory", err)
	}
	for _, f := range a.files {
		target := filepath.Join(root, filepath.FromSlash(f.path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return szerr.Wrap(szerr.KindIO, "SZDAT-IO-006", "create directory for "+f.path, err)
		}
		if err := os.WriteFile(target, f.content, 0o644); err != nil {
			return szerr.Wrap(szerr.KindIO, "SZDAT-IO-007", "write "+f.path, err)
		}
	}
	return nil
}

// checkTarget walks the components of rel beneath root with Lstat. It rejects
// symlinks and non-directories on the way, and an existing final entry when
// policy is FailIfExists. Missing components are fine; they are created later.
func checkTarget(root, rel string, policy ExistingPolicy) error {
	segs := strings.Split(rel, "/")
	cur := root
	for i, seg := range segs {
		cur = filepath.Join(cur, seg)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return szerr.Wrap(szerr.KindIO, "SZDAT-IO-008", "stat "+rel, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return szerr.New(szerr.KindPath, "SZDAT-PATH-009", "refusing to write through symlink: "+rel)
		}
		last := i == len(segs)-1
		if !last && !info.IsDir() {
			return szerr.New(szerr.KindPath, "SZDAT-PATH-010", "parent is not a directory: "+rel)
		}
		if last {
			if info.IsDir() {
				return szerr.New(szerr.KindPath, "SZDAT-PATH-011", "target is a directory: "+rel)
			}
			if policy == FailIfExists {
				return szerr.Wrap(szerr.KindIO, "SZDAT-IO-009", "file exists: "+rel, fs.ErrExist)
			}
		}
	}
	return nil
}

func nextSlash(p string, i int) int {
	j := strings.IndexByte(p[i+1:], '/')
	if j < 0 {
		return -1
	}
	return i + 1 + j
}
