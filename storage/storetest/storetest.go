// Package storetest is a conformance suite for storage.Store implementations.
package storetest

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/storage"
)

// NewStore constructs a fresh, empty store for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

// Run exercises the storage.Store contract against stores built by newStore.
func Run(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, szdat storage")

		id, err := s.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := envelope.ID(want)
		if err != nil {
			t.Fatalf("envelope.ID failed: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put ID mismatch: got %s want %s", id, wantID)
		}

		got, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		id1, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("EmptyObject", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Put(nil)
		if err != nil {
			t.Fatalf("Put(nil) failed: %v", err)
		}
		got, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty object, got %d bytes", len(got))
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id, err := envelope.ID(b)
		if err != nil {
			t.Fatalf("envelope.ID failed: %v", err)
		}

		if s.Has(id) {
			t.Fatalf("Has returned true for missing ID")
		}
		if _, err := s.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		if s.Has(undef) {
			t.Fatalf("Has should be false for undefined ID")
		}
		if _, err := s.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined ID")
		}
	})
}
