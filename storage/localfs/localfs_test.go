package localfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/storetest"
)

func TestLocalFS_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		t.Helper()
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s
	})
}

func TestLocalFS_Layout(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, err := s.Put([]byte("envelope bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	name := id.String()
	shard := filepath.Join(root, name[len(name)-2:])
	if _, err := os.Stat(filepath.Join(shard, name+Ext)); err != nil {
		t.Fatalf("expected object under %s: %v", shard, err)
	}
	leftovers, err := filepath.Glob(filepath.Join(shard, ".put-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temporary files left behind: %v", leftovers)
	}
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	orig := []byte("original")
	id, err := envelope.ID(orig)
	if err != nil {
		t.Fatal(err)
	}

	// Plant a corrupted object out-of-band.
	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := s.Get(id); err != storage.ErrIDMismatch {
		t.Fatalf("expected ErrIDMismatch, got %v", err)
	}
	if _, err := s.Put(orig); err != storage.ErrImmutable {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
}

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
