package keys

import (
	"strings"

	"github.com/multiformats/go-base32"

	"github.com/gordonbrander/szdat/szerr"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// textEncoding is RFC 4648 base32 without padding. Decoding is
// case-insensitive; encoding is upper-case.
var textEncoding = base32.NewEncodingCI(alphabet).WithPadding(base32.NoPadding)

// paddedEncoding is the same alphabet with '=' padding, as printed by older
// szdat releases.
var paddedEncoding = base32.NewEncodingCI(alphabet)

// EncodeText returns the text form of raw key bytes.
func EncodeText(b []byte) string {
	return textEncoding.EncodeToString(b)
}

// DecodeText parses the text form of a key of exactly size bytes.
//
// Surrounding whitespace is ignored and case does not matter. Besides the
// unpadded form, the exact RFC 4648 padded form is accepted. Any other
// padding and non-canonical trailing bits are rejected, so every key has
// exactly two accepted text forms (up to case).
func DecodeText(s string, size int) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-001", "empty key text")
	}
	padded := s
	s = strings.TrimRight(s, "=")
	if strings.ContainsRune(s, '=') {
		return nil, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-002", "misplaced padding in key text")
	}
	b, err := textEncoding.DecodeString(s)
	if err != nil {
		return nil, szerr.Wrap(szerr.KindKeyFormat, "SZDAT-KEY-003", "invalid base32 key text", err)
	}
	if len(b) != size {
		return nil, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-004", "key text has wrong length")
	}
	if EncodeText(b) != strings.ToUpper(s) {
		return nil, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-005", "non-canonical key text")
	}
	if padded != s && paddedEncoding.EncodeToString(b) != strings.ToUpper(padded) {
		return nil, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-002", "wrong padding in key text")
	}
	return b, nil
}

// EncodePrivateKey returns the text form of k's seed.
func EncodePrivateKey(k PrivateKey) string { return EncodeText(k.Seed()) }

// ParsePrivateKey decodes a private key from its text form.
func ParsePrivateKey(s string) (PrivateKey, error) {
	seed, err := DecodeText(s, SeedSize)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKeyFromSeed(seed)
}

// EncodePublicKey returns the text form of p.
func EncodePublicKey(p PublicKey) string { return EncodeText(p.key) }

// ParsePublicKey decodes a public key from its text form.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := DecodeText(s, PublicKeySize)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKeyFromBytes(b)
}
