package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/gordonbrander/szdat/envelope"
)

// Envelopes publishes and fetches envelopes through a Store.
//
// Fetch checks that the bytes match the requested ID and parse as an
// envelope. It does not verify the signature; callers must still call
// Verify or Open with the publisher's key.
type Envelopes struct {
	Store Store
}

// Publish stores the canonical encoding of env and returns its ID.
func (e Envelopes) Publish(env *envelope.Envelope) (cid.Cid, error) {
	if e.Store == nil {
		return cid.Undef, fmt.Errorf("storage: nil store")
	}
	b, err := envelope.Marshal(env)
	if err != nil {
		return cid.Undef, err
	}
	want, err := envelope.ID(b)
	if err != nil {
		return cid.Undef, err
	}
	got, err := e.Store.Put(b)
	if err != nil {
		return cid.Undef, err
	}
	if !got.Equals(want) {
		return cid.Undef, ErrIDMismatch
	}
	return got, nil
}

// Fetch retrieves and parses the envelope stored under id.
func (e Envelopes) Fetch(id cid.Cid) (*envelope.Envelope, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("storage: nil store")
	}
	if !id.Defined() {
		return nil, ErrInvalidID
	}
	b, err := e.Store.Get(id)
	if err != nil {
		return nil, err
	}
	if err := CheckID(id, b); err != nil {
		return nil, err
	}
	return envelope.Unmarshal(b)
}

// CheckID returns ErrIDMismatch unless b hashes to id.
func CheckID(id cid.Cid, b []byte) error {
	got, err := envelope.ID(b)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrIDMismatch
	}
	return nil
}
