package storeconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/localfs"
	"github.com/gordonbrander/szdat/storage/registry"
)

func TestParse_JSONAndYAML(t *testing.T) {
	want := Config{
		WritePolicy: "all",
		Backends: []BackendConfig{
			{Name: "localfs", Config: map[string]string{"dir": "/a"}},
			{Name: "localfs", ID: "second", Config: map[string]string{"dir": "/b"}},
		},
	}

	jsonDoc := `{"write_policy":"all","backends":[
		{"name":"localfs","config":{"dir":"/a"}},
		{"name":"localfs","id":"second","config":{"dir":"/b"}}]}`
	got, err := Parse("stores.json", []byte(jsonDoc))
	if err != nil {
		t.Fatalf("Parse JSON: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("JSON config mismatch (-want +got):\n%s", diff)
	}

	yamlDoc := `write_policy: all
backends:
  - name: localfs
    config:
      dir: /a
  - name: localfs
    id: second
    config:
      dir: /b
`
	got, err = Parse("stores.yaml", []byte(yamlDoc))
	if err != nil {
		t.Fatalf("Parse YAML: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("YAML config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Config{
		"no backends":  {},
		"missing name": {Backends: []BackendConfig{{}}},
		"duplicate id": {Backends: []BackendConfig{{Name: "localfs"}, {Name: "localfs"}}},
		"bad policy":   {WritePolicy: "some", Backends: []BackendConfig{{Name: "localfs"}}},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if _, err := Parse("x.json", []byte(`{"backends":[{"name":"localfs"}],"extra":1}`)); err == nil {
		t.Fatalf("expected unknown JSON field to be rejected")
	}
}

func TestOpen_MirrorAllWritesEveryBackend(t *testing.T) {
	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	cfg := Config{
		WritePolicy: "all",
		Backends: []BackendConfig{
			{Name: "localfs", ID: "a", Config: map[string]string{"dir": dirA}},
			{Name: "localfs", ID: "b", Config: map[string]string{"dir": dirB}},
		},
	}
	s, closeFn, err := cfg.Open(registry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	payload := []byte("mirrored")
	id, err := s.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	for _, dir := range []string{dirA, dirB} {
		direct, err := localfs.New(dir)
		if err != nil {
			t.Fatal(err)
		}
		got, err := direct.Get(id)
		if err != nil {
			t.Fatalf("backend %s: %v", dir, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("backend %s: bytes mismatch", dir)
		}
	}
}

func TestOpen_PreferredBackendTakesWrites(t *testing.T) {
	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	cfg := Config{
		Backends: []BackendConfig{
			{Name: "localfs", ID: "a", Config: map[string]string{"dir": dirA}},
			{Name: "localfs", ID: "b", Config: map[string]string{"dir": dirB}},
		},
	}
	s, _, err := cfg.Open(registry.UsageCLI, "b")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := s.Put([]byte("preferred"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	a, _ := localfs.New(dirA)
	b, _ := localfs.New(dirB)
	if a.Has(id) || !b.Has(id) {
		t.Fatalf("expected write only to preferred backend")
	}
	if !s.Has(id) {
		t.Fatalf("expected mirror to find object")
	}

	if _, _, err := cfg.Open(registry.UsageCLI, "missing"); err == nil {
		t.Fatalf("expected error for unknown preferred backend")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stores.yml")
	doc := "backends:\n  - name: localfs\n    config:\n      dir: " + filepath.Join(dir, "store") + "\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	s, _, err := cfg.Open(registry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(storage.Mirror); ok {
		t.Fatalf("single backend should not be wrapped in a mirror")
	}
}
