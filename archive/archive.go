// Package archive implements the szdat content model: an immutable snapshot of
// a directory (a creation timestamp plus an ordered list of files) and its
// canonical binary encoding.
//
// The encoding is the byte sequence that gets signed, so it is deterministic:
// encoding the same Archive twice yields identical bytes, and file order is
// part of the encoding.
package archive

import (
	"bytes"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/gordonbrander/szdat/szerr"
)

// ContentType tags envelope bodies that hold an encoded Archive.
const ContentType = "application/vnd.szdat.archive+cbor"

// File is a single archived file. Path is slash-separated and relative to the
// archive root.
type File struct {
	path    string
	content []byte
}

// NewFile returns a File for path with a private copy of content.
// path must be a safe relative path (see ValidatePath).
func NewFile(path string, content []byte) (File, error) {
	if err := ValidatePath(path); err != nil {
		return File{}, err
	}
	return File{path: path, content: append([]byte{}, content...)}, nil
}

func (f File) Path() string { return f.path }

// Content returns the raw file bytes. Callers must not modify the result.
func (f File) Content() []byte { return f.content }

// Equal reports structural equality (path and content).
func (f File) Equal(o File) bool {
	return f.path == o.path && bytes.Equal(f.content, o.content)
}

// Archive is an immutable directory snapshot.
type Archive struct {
	createdAt uint64
	files     []File
}

// New returns an Archive created at createdAt (Unix seconds) holding files in
// the given order.
func New(createdAt uint64, files []File) *Archive {
	return &Archive{createdAt: createdAt, files: append([]File(nil), files...)}
}

// NewNow is like New but stamps the archive with the current time from clock.
func NewNow(clock Clock, files []File) (*Archive, error) {
	ts, err := Stamp(clock)
	if err != nil {
		return nil, err
	}
	return New(ts, files), nil
}

// CreatedAt returns the creation time in seconds since the Unix epoch.
func (a *Archive) CreatedAt() uint64 { return a.createdAt }

// Files returns a copy of the file list in archive order.
func (a *Archive) Files() []File { return append([]File(nil), a.files...) }

// Len returns the number of files.
func (a *Archive) Len() int { return len(a.files) }

// Equal reports structural equality, including file order.
func (a *Archive) Equal(o *Archive) bool {
	if a == nil || o == nil {
		return a == o
	}
	if a.createdAt != o.createdAt || len(a.files) != len(o.files) {
		return false
	}
	for i := range a.files {
		if !a.files[i].Equal(o.files[i]) {
			return false
		}
	}
	return true
}

// Clock supplies the wall-clock time used to stamp new archives.
type Clock func() time.Time

// SystemClock reads the process wall clock.
var SystemClock Clock = time.Now

// Stamp returns clock's current time as Unix seconds. It fails if the clock
// reports a time before the epoch. A nil clock means SystemClock.
func Stamp(clock Clock) (uint64, error) {
	if clock == nil {
		clock = SystemClock
	}
	sec := clock().Unix()
	if sec < 0 {
		return 0, szerr.New(szerr.KindClock, "SZDAT-CLK-001", "clock reports a time before the Unix epoch")
	}
	return uint64(sec), nil
}

// ManifestEntry summarises one archived file.
type ManifestEntry struct {
	Path string
	Size int
	SHA3 [32]byte
}

// Manifest lists every file with its size and SHA3-256 digest, in archive order.
func (a *Archive) Manifest() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(a.files))
	for _, f := range a.files {
		out = append(out, ManifestEntry{
			Path: f.path,
			Size: len(f.content),
			SHA3: sha3.Sum256(f.content),
		})
	}
	return out
}
