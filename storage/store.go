// Package storage distributes encoded envelopes through content-addressed
// stores.
//
// A Store holds opaque immutable objects keyed by the content identifier of
// their bytes (see envelope.ID). Stores are transport: nothing they return is
// trusted until the caller verifies the envelope under a key it already holds.
package storage

import (
	"errors"

	"github.com/ipfs/go-cid"
)

var (
	ErrNotFound   = errors.New("storage: not found")
	ErrInvalidID  = errors.New("storage: invalid id")
	ErrIDMismatch = errors.New("storage: id mismatch")
	ErrImmutable  = errors.New("storage: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store is a minimal content-addressed object store.
//
// Contract:
//   - Put MUST be idempotent and return the ID derived from the bytes written.
//   - Stored objects MUST be immutable.
//   - Get MUST return ErrNotFound when the ID is absent and MUST NOT return
//     bytes whose ID differs from the one requested.
type Store interface {
	Put(b []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
