package keys

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gordonbrander/szdat/szerr"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestGenerate_UsesInjectedRandomSource(t *testing.T) {
	a, _, err := Generate(&deterministicReader{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _, err := Generate(&deterministicReader{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(a.Seed(), b.Seed()) {
		t.Fatalf("expected identical keys from identical sources")
	}
	want := make([]byte, SeedSize)
	for i := range want {
		want[i] = byte(i)
	}
	if !bytes.Equal(a.Seed(), want) {
		t.Fatalf("seed does not come from the reader")
	}
}

func TestGenerate_DistinctKeysFromCryptoRand(t *testing.T) {
	a, pa, err := Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, pb, err := Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bytes.Equal(a.Seed(), b.Seed()) || pa.Equal(pb) {
		t.Fatalf("expected distinct keys")
	}
}

func TestGenerate_ShortReader(t *testing.T) {
	_, _, err := Generate(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatalf("expected error from short random source")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := Generate(&deterministicReader{b: 9})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := []byte("hello")
	sig, err := priv.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != SignatureSize {
		t.Fatalf("expected %d byte signature, got %d", SignatureSize, len(sig))
	}
	if !pub.Verify(msg, sig) {
		t.Fatalf("signature did not verify")
	}
	if pub.Verify([]byte("hellO"), sig) {
		t.Fatalf("signature verified for a different message")
	}
	if pub.Verify(msg, sig[:63]) {
		t.Fatalf("short signature verified")
	}
	if (PublicKey{}).Verify(msg, sig) {
		t.Fatalf("zero public key verified")
	}
	if _, err := (PrivateKey{}).Sign(msg); err == nil {
		t.Fatalf("expected zero private key to refuse signing")
	}
}

func TestText_RoundTrip(t *testing.T) {
	for i := 0; i < 16; i++ {
		priv, pub, err := Generate(nil)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		privText := EncodePrivateKey(priv)
		gotPriv, err := ParsePrivateKey(privText)
		if err != nil {
			t.Fatalf("ParsePrivateKey(%q): %v", privText, err)
		}
		if !bytes.Equal(gotPriv.Seed(), priv.Seed()) {
			t.Fatalf("private key round trip mismatch")
		}

		pubText := EncodePublicKey(pub)
		gotPub, err := ParsePublicKey(strings.ToLower(pubText))
		if err != nil {
			t.Fatalf("ParsePublicKey(lower %q): %v", pubText, err)
		}
		if !gotPub.Equal(pub) {
			t.Fatalf("public key round trip mismatch")
		}
		if !gotPriv.Public().Equal(pub) {
			t.Fatalf("derived public key mismatch")
		}
	}
}

func TestText_Format(t *testing.T) {
	priv, _, err := Generate(&deterministicReader{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	s := EncodePrivateKey(priv)
	if len(s) != 52 {
		t.Fatalf("expected 52 characters for a 32-byte key, got %d (%q)", len(s), s)
	}
	if strings.ToUpper(s) != s || strings.Contains(s, "=") {
		t.Fatalf("expected unpadded upper-case text, got %q", s)
	}
	if _, err := ParsePrivateKey("  " + s + "\n"); err != nil {
		t.Fatalf("expected surrounding whitespace to be ignored: %v", err)
	}
}

func TestText_AcceptsPaddedForm(t *testing.T) {
	priv, pub, err := Generate(&deterministicReader{b: 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// 32 bytes encode to 52 characters plus 4 padding characters.
	privText := EncodePrivateKey(priv) + "===="
	got, err := ParsePrivateKey(strings.ToLower(privText) + "\n")
	if err != nil {
		t.Fatalf("ParsePrivateKey(%q): %v", privText, err)
	}
	if !bytes.Equal(got.Seed(), priv.Seed()) {
		t.Fatalf("padded private key decoded to a different seed")
	}
	gotPub, err := ParsePublicKey(EncodePublicKey(pub) + "====")
	if err != nil {
		t.Fatalf("ParsePublicKey padded: %v", err)
	}
	if !gotPub.Equal(pub) {
		t.Fatalf("padded public key mismatch")
	}
}

func TestText_RejectsMalformed(t *testing.T) {
	priv, _, err := Generate(&deterministicReader{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	good := EncodePrivateKey(priv)

	// The last character of a 52-char encoding carries 4 unused bits; setting
	// one of them yields the same bytes under a lenient decoder.
	nonCanonical := good[:len(good)-1] + string(good[len(good)-1]+1)

	cases := map[string]string{
		"empty":         "",
		"short padding": good + "===",
		"long padding":  good + "=====",
		"inner padding": good[:50] + "=" + good[51:],
		"only padding":  "========",
		"bad alphabet":  good[:51] + "1",
		"too short":     good[:40],
		"too long":      good + "AAAAAAAA",
		"non-canonical": nonCanonical,
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePrivateKey(s)
			if !szerr.IsKind(err, szerr.KindKeyFormat) {
				t.Fatalf("expected KindKeyFormat for %q, got %v", s, err)
			}
		})
	}

	if _, err := ParsePublicKey(good[:10]); !szerr.IsKind(err, szerr.KindKeyFormat) {
		t.Fatalf("expected KindKeyFormat for short public key, got %v", err)
	}
}

func TestKeyStore_SaveLoadList(t *testing.T) {
	ks, err := OpenKeyStore(filepath.Join(t.TempDir(), "keys"))
	if err != nil {
		t.Fatalf("OpenKeyStore: %v", err)
	}
	names, err := ks.List()
	if err != nil || len(names) != 0 {
		t.Fatalf("expected empty store, got %v (%v)", names, err)
	}

	priv, _, err := Generate(&deterministicReader{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path, err := ks.Save("publisher", priv, false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 key file, got %o", perm)
	}

	if _, err := ks.Save("publisher", priv, false); !os.IsExist(err) {
		t.Fatalf("expected exists error without overwrite, got %v", err)
	}
	other, _, err := Generate(&deterministicReader{b: 100})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := ks.Save("publisher", other, true); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if _, err := ks.Save("archive", priv, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := ks.Load("publisher")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded.Seed(), other.Seed()) {
		t.Fatalf("expected overwritten key")
	}

	names, err = ks.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if strings.Join(names, ",") != "archive,publisher" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestCheckKeyName(t *testing.T) {
	for _, ok := range []string{"a", "Key_1", "my-key"} {
		if err := CheckKeyName(ok); err != nil {
			t.Fatalf("CheckKeyName(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "../x", "a b", "a/b"} {
		if err := CheckKeyName(bad); err == nil {
			t.Fatalf("CheckKeyName(%q): expected error", bad)
		}
	}
}
