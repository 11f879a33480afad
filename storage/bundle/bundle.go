// Package bundle moves envelopes between stores as a single tar file.
//
// A bundle holds one regular file per envelope at envelopes/<ID>.szdat and,
// optionally, a non-authoritative index.json. Export is deterministic: entries
// are sorted by ID and tar headers are normalized. Import trusts nothing in
// the bundle: every entry is checked against its ID and parsed as an envelope
// before anything is written. Signatures are not verified here.
package bundle

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-cid"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/storage"
)

// FormatVersion is the current index.json schema version.
const FormatVersion = 1

const (
	entryDir  = "envelopes/"
	entryExt  = ".szdat"
	indexName = "index.json"
)

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels is optional, non-authoritative metadata mapping names to IDs.
	Labels map[string]cid.Cid
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes the envelopes with the given IDs from store to w.
// Duplicate IDs are written once.
func Export(w io.Writer, store storage.Store, ids []cid.Cid, opts ExportOptions) error {
	if store == nil {
		return fmt.Errorf("bundle: nil store")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	entries := make([]indexEntry, 0, len(names))
	for _, s := range names {
		id := uniq[s]
		b, err := store.Get(id)
		if err != nil {
			return fail(fmt.Errorf("bundle: %s: %w", s, err))
		}
		if err := storage.CheckID(id, b); err != nil {
			return fail(err)
		}
		env, err := envelope.Unmarshal(b)
		if err != nil {
			return fail(fmt.Errorf("bundle: %s: %w", s, err))
		}
		if err := writeFile(tw, entryDir+s+entryExt, b); err != nil {
			return fail(err)
		}
		entries = append(entries, indexEntry{ID: s, Size: len(b), ContentType: env.ContentType})
	}

	if opts.IncludeIndex {
		idx := index{Version: FormatVersion, Envelopes: entries}
		if len(opts.Labels) > 0 {
			keys := make([]string, 0, len(opts.Labels))
			for k := range opts.Labels {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if k == "" {
					return fail(fmt.Errorf("bundle: empty label key"))
				}
				v := opts.Labels[k]
				if !v.Defined() {
					return fail(storage.ErrInvalidID)
				}
				idx.Labels = append(idx.Labels, indexLabel{Name: k, ID: v.String()})
			}
		}
		b, err := json.Marshal(idx)
		if err != nil {
			return fail(err)
		}
		if err := writeFile(tw, indexName, append(b, '\n')); err != nil {
			return fail(err)
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips entries that are not envelopes or the index.
	// The default is fail-closed.
	IgnoreUnknown bool
}

// Import reads a bundle from r into store and returns the imported IDs in
// bundle order.
//
// The whole bundle is validated first. If any entry is bad, nothing is
// written and the returned error lists every problem found.
func Import(r io.Reader, store storage.Store, opts ImportOptions) ([]cid.Cid, error) {
	if store == nil {
		return nil, fmt.Errorf("bundle: nil store")
	}

	type object struct {
		id cid.Cid
		b  []byte
	}
	var (
		objects  []object
		problems *multierror.Error
	)
	seen := map[string]struct{}{}
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bundle: %w", err)
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			problems = multierror.Append(problems, fmt.Errorf("invalid entry path %q", h.Name))
			continue
		}
		if h.Typeflag != tar.TypeReg {
			if !opts.IgnoreUnknown {
				problems = multierror.Append(problems, fmt.Errorf("%s: unexpected entry type %q", name, h.Typeflag))
			}
			continue
		}
		if name == indexName {
			continue
		}
		if !strings.HasPrefix(name, entryDir) || !strings.HasSuffix(name, entryExt) {
			if !opts.IgnoreUnknown {
				problems = multierror.Append(problems, fmt.Errorf("%s: unknown entry", name))
			}
			continue
		}

		id, derr := cid.Decode(strings.TrimSuffix(strings.TrimPrefix(name, entryDir), entryExt))
		if derr != nil || !id.Defined() {
			problems = multierror.Append(problems, fmt.Errorf("%s: %w", name, storage.ErrInvalidID))
			continue
		}
		if h.Size > envelope.MaxEncodedSize {
			problems = multierror.Append(problems, fmt.Errorf("%s: entry too large", name))
			continue
		}
		payload, rerr := io.ReadAll(io.LimitReader(tr, envelope.MaxEncodedSize+1))
		if rerr != nil {
			return nil, fmt.Errorf("bundle: %s: %w", name, rerr)
		}
		if err := storage.CheckID(id, payload); err != nil {
			problems = multierror.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if _, err := envelope.Unmarshal(payload); err != nil {
			problems = multierror.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if _, dup := seen[id.String()]; dup {
			problems = multierror.Append(problems, fmt.Errorf("%s: duplicate entry", name))
			continue
		}
		seen[id.String()] = struct{}{}
		objects = append(objects, object{id: id, b: payload})
	}
	if err := problems.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("bundle: rejected: %w", err)
	}

	imported := make([]cid.Cid, 0, len(objects))
	for _, o := range objects {
		got, err := store.Put(o.b)
		if err != nil {
			return imported, fmt.Errorf("bundle: %s: %w", o.id, err)
		}
		if !got.Equals(o.id) {
			return imported, storage.ErrIDMismatch
		}
		imported = append(imported, o.id)
	}
	return imported, nil
}

type index struct {
	Version   int          `json:"version"`
	Envelopes []indexEntry `json:"envelopes"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexEntry struct {
	ID          string `json:"id"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
}

type indexLabel struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
