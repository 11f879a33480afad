package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/gordonbrander/szdat/envelope"
)

// WritePolicy selects which backends a Mirror writes to.
type WritePolicy string

const (
	// WriteFirst writes only to the first backend.
	WriteFirst WritePolicy = "first"
	// WriteAll writes to every backend and requires all of them to agree on the ID.
	WriteAll WritePolicy = "all"
)

// NamedStore associates a Store with a stable backend name.
type NamedStore struct {
	Name  string
	Store Store
}

// Mirror spreads objects over several backends.
//
// Reads fall back in slice order; callers MUST supply a fixed order so the
// retrieval strategy is explicit. An empty Policy means WriteFirst.
type Mirror struct {
	Backends []NamedStore
	Policy   WritePolicy
}

var _ Store = Mirror{}

// PutAll writes b according to the policy and returns the canonical ID plus
// the ID each backend reported.
func (m Mirror) PutAll(b []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := envelope.ID(b)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(m.Backends) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: mirror has no backends")
	}
	targets := m.Backends
	switch m.Policy {
	case "", WriteFirst:
		targets = targets[:1]
	case WriteAll:
	default:
		return cid.Undef, nil, fmt.Errorf("storage: invalid write policy %q", m.Policy)
	}

	out := make(map[string]cid.Cid, len(targets))
	for _, t := range targets {
		if t.Store == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil store for backend %q", t.Name)
		}
		got, err := t.Store.Put(b)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", t.Name, err)
		}
		out[t.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, ErrIDMismatch
		}
	}
	return want, out, nil
}

func (m Mirror) Put(b []byte) (cid.Cid, error) {
	id, _, err := m.PutAll(b)
	return id, err
}

// Get returns the first copy found. A backend error other than ErrNotFound
// stops the search.
func (m Mirror) Get(id cid.Cid) ([]byte, error) {
	for _, n := range m.Backends {
		if n.Store == nil {
			continue
		}
		b, err := n.Store.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, fmt.Errorf("storage: backend %q: %w", n.Name, err)
	}
	return nil, ErrNotFound
}

func (m Mirror) Has(id cid.Cid) bool {
	for _, n := range m.Backends {
		if n.Store != nil && n.Store.Has(id) {
			return true
		}
	}
	return false
}
