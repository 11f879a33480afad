package archive

import (
	"github.com/gordonbrander/szdat/internal/canon"
	"github.com/gordonbrander/szdat/szerr"
)

// Wire shapes. Pointer fields distinguish "absent" from "zero" on decode.
type wireArchive struct {
	CreatedAt *uint64     `cbor:"created_at"`
	Files     *[]wireFile `cbor:"files"`
}

type wireFile struct {
	Path    *string `cbor:"path"`
	Content *[]byte `cbor:"content"`
}

// Encode returns the canonical encoding of a.
func Encode(a *Archive) ([]byte, error) {
	if a == nil {
		return nil, szerr.New(szerr.KindInternal, "SZDAT-ENC-001", "nil archive")
	}
	files := make([]wireFile, len(a.files))
	for i := range a.files {
		f := &a.files[i]
		files[i] = wireFile{Path: &f.path, Content: &f.content}
	}
	b, err := canon.Marshal(wireArchive{CreatedAt: &a.createdAt, Files: &files})
	if err != nil {
		return nil, szerr.Wrap(szerr.KindInternal, "SZDAT-ENC-002", "encode archive", err)
	}
	return b, nil
}

// Decode parses a canonical archive encoding. Any deviation from the schema
// fails with a KindDecode error; nothing is partially recovered.
//
// Decode does not judge whether file paths are safe to extract; WriteDir does.
func Decode(b []byte) (*Archive, error) {
	var w wireArchive
	if err := canon.Unmarshal(b, &w); err != nil {
		return nil, szerr.Wrap(szerr.KindDecode, "SZDAT-DEC-001", "malformed archive", err)
	}
	if w.CreatedAt == nil {
		return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-002", "malformed archive: missing created_at")
	}
	if w.Files == nil {
		return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-003", "malformed archive: missing files")
	}
	files := make([]File, 0, len(*w.Files))
	for _, wf := range *w.Files {
		if wf.Path == nil || *wf.Path == "" {
			return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-004", "malformed archive: file without path")
		}
		if wf.Content == nil {
			return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-005", "malformed archive: file without content")
		}
		content := *wf.Content
		if content == nil {
			content = []byte{}
		}
		files = append(files, File{path: *wf.Path, content: content})
	}
	return &Archive{createdAt: *w.CreatedAt, files: files}, nil
}
