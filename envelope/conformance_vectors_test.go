package envelope_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gordonbrander/szdat/archive"
	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/keys"
)

// Fixture inputs for testdata/conformance/szdat-v1. The bytes there were
// produced independently of this package.
var vectorFiles = []struct {
	path    string
	content []byte
}{
	{"a.txt", []byte("hello\n")},
	{"dir/b.bin", []byte{0, 1, 2, 255}},
	{"dir/nested/empty", nil},
}

const vectorCreatedAt = 1700000000

func readVector(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "testdata", "conformance", "szdat-v1", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return b
}

func TestConformanceVectors_SealReproducesBytes(t *testing.T) {
	priv, err := keys.ParsePrivateKey(string(readVector(t, "privkey.txt")))
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	wantPub := strings.TrimSpace(string(readVector(t, "pubkey.txt")))
	if got := keys.EncodePublicKey(priv.Public()); got != wantPub {
		t.Fatalf("public key mismatch: got %s want %s", got, wantPub)
	}

	files := make([]archive.File, 0, len(vectorFiles))
	for _, f := range vectorFiles {
		file, err := archive.NewFile(f.path, f.content)
		if err != nil {
			t.Fatalf("NewFile(%q): %v", f.path, err)
		}
		files = append(files, file)
	}
	a := archive.New(vectorCreatedAt, files)

	body, err := archive.Encode(a)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := readVector(t, "body.cbor"); !bytes.Equal(body, want) {
		t.Fatalf("archive encoding mismatch:\n got %x\nwant %x", body, want)
	}

	env, err := envelope.SealArchive(a, priv)
	if err != nil {
		t.Fatalf("SealArchive: %v", err)
	}
	encoded, err := envelope.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := readVector(t, "envelope.szdat"); !bytes.Equal(encoded, want) {
		t.Fatalf("envelope encoding mismatch:\n got %x\nwant %x", encoded, want)
	}

	id, err := envelope.ID(encoded)
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if want := strings.TrimSpace(string(readVector(t, "envelope.id"))); id.String() != want {
		t.Fatalf("ID mismatch: got %s want %s", id, want)
	}
}

func TestConformanceVectors_OpenDecodesFixture(t *testing.T) {
	pub, err := keys.ParsePublicKey(string(readVector(t, "pubkey.txt")))
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	env, err := envelope.Read(bytes.NewReader(readVector(t, "envelope.szdat")))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	a, err := env.Open(pub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if a.CreatedAt() != vectorCreatedAt || a.Len() != len(vectorFiles) {
		t.Fatalf("unexpected archive: created_at=%d files=%d", a.CreatedAt(), a.Len())
	}
	for i, f := range a.Files() {
		if f.Path() != vectorFiles[i].path || !bytes.Equal(f.Content(), vectorFiles[i].content) {
			t.Fatalf("file %d mismatch: %q", i, f.Path())
		}
	}
}
