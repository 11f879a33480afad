// Command szdat_vector_gen writes the fixture set under
// testdata/conformance/szdat-v1 from a fixed seed, clock and file list.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gordonbrander/szdat/archive"
	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/keys"
)

func mustKey(seedByte byte) keys.PrivateKey {
	priv, err := keys.PrivateKeyFromSeed(bytes.Repeat([]byte{seedByte}, keys.SeedSize))
	if err != nil {
		panic(err)
	}
	return priv
}

func mustFile(path string, content []byte) archive.File {
	f, err := archive.NewFile(path, content)
	if err != nil {
		panic(err)
	}
	return f
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: szdat_vector_gen <out-dir>")
		os.Exit(2)
	}
	dir := os.Args[1]

	priv := mustKey(0xA1)
	a := archive.New(1700000000, []archive.File{
		mustFile("a.txt", []byte("hello\n")),
		mustFile("dir/b.bin", []byte{0, 1, 2, 255}),
		mustFile("dir/nested/empty", nil),
	})

	body, err := archive.Encode(a)
	if err != nil {
		panic(err)
	}
	env, err := envelope.SealArchive(a, priv)
	if err != nil {
		panic(err)
	}
	encoded, err := envelope.Marshal(env)
	if err != nil {
		panic(err)
	}
	id, err := envelope.ID(encoded)
	if err != nil {
		panic(err)
	}

	outputs := map[string][]byte{
		"privkey.txt":    []byte(keys.EncodePrivateKey(priv) + "\n"),
		"pubkey.txt":     []byte(keys.EncodePublicKey(priv.Public()) + "\n"),
		"body.cbor":      body,
		"envelope.szdat": encoded,
		"envelope.id":    []byte(id.String() + "\n"),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}
	for name, b := range outputs {
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			panic(err)
		}
	}
	fmt.Printf("ID=%s\n", id)
}
