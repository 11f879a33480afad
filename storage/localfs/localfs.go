// Package localfs stores encoded envelopes in a local directory tree.
package localfs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/storage"
)

// Ext is the file extension of stored envelopes.
const Ext = ".szdat"

// Store is a local filesystem-backed content-addressed store.
//
// Objects live at <root>/<last two ID characters>/<ID>.szdat and are written
// once through a synced temporary file renamed into place. The store never
// uses the network or the wall clock.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// New constructs a store rooted at root. The directory is created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(b []byte) (cid.Cid, error) {
	id, err := envelope.ID(b)
	if err != nil {
		return cid.Undef, err
	}
	path := s.pathFor(id)

	if _, err := os.Stat(path); err == nil {
		existing, rerr := s.Get(id)
		if rerr != nil {
			// Present but unreadable or corrupted.
			return cid.Undef, storage.ErrImmutable
		}
		if string(existing) != string(b) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cid.Undef, err
	}
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return cid.Undef, err
	}
	fail := func(err error) (cid.Cid, error) {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return cid.Undef, err
	}

	if _, err := tmp.Write(b); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o444); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	return id, nil
}

func (s *Store) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidID
	}
	b, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := storage.CheckID(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

// pathFor shards on the tail of the ID; every CIDv1 string shares its head.
func (s *Store) pathFor(id cid.Cid) string {
	name := id.String()
	if len(name) < 2 {
		return filepath.Join(s.root, name+Ext)
	}
	return filepath.Join(s.root, name[len(name)-2:], name+Ext)
}
