package keys

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/gordonbrander/szdat/szerr"
)

const (
	// SeedSize is the length of a private key's text-encoded seed.
	SeedSize = ed25519.SeedSize
	// PublicKeySize is the length of a raw public key.
	PublicKeySize = ed25519.PublicKeySize
	// SignatureSize is the length of every envelope signature.
	SignatureSize = ed25519.SignatureSize
)

// PrivateKey is an Ed25519 signing key. The zero value is not usable.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// PublicKey is an Ed25519 verification key. The zero value is not usable.
type PublicKey struct {
	key ed25519.PublicKey
}

// Generate returns a fresh keypair whose seed is read from random.
// A nil random uses crypto/rand.
func Generate(random io.Reader) (PrivateKey, PublicKey, error) {
	if random == nil {
		random = rand.Reader
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(random, seed); err != nil {
		return PrivateKey{}, PublicKey{}, fmt.Errorf("keys: read seed: %w", err)
	}
	priv, err := PrivateKeyFromSeed(seed)
	if err != nil {
		return PrivateKey{}, PublicKey{}, err
	}
	return priv, priv.Public(), nil
}

// PrivateKeyFromSeed expands a 32-byte seed into a private key.
func PrivateKeyFromSeed(seed []byte) (PrivateKey, error) {
	if l := len(seed); l != SeedSize {
		return PrivateKey{}, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-101", fmt.Sprintf("ed25519 seed must be %d bytes, got %d", SeedSize, l))
	}
	return PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKeyFromBytes validates and copies a raw 32-byte public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if l := len(b); l != PublicKeySize {
		return PublicKey{}, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-102", fmt.Sprintf("ed25519 public key must be %d bytes, got %d", PublicKeySize, l))
	}
	return PublicKey{key: append(ed25519.PublicKey(nil), b...)}, nil
}

// Seed returns a copy of the 32-byte seed the key was derived from.
func (k PrivateKey) Seed() []byte {
	if k.key == nil {
		return nil
	}
	return append([]byte(nil), k.key.Seed()...)
}

// Public returns the matching public key.
func (k PrivateKey) Public() PublicKey {
	if k.key == nil {
		return PublicKey{}
	}
	return PublicKey{key: k.key.Public().(ed25519.PublicKey)}
}

// IsZero reports whether k holds no key.
func (k PrivateKey) IsZero() bool { return k.key == nil }

// Sign returns the deterministic Ed25519 signature of message.
func (k PrivateKey) Sign(message []byte) ([]byte, error) {
	if k.key == nil {
		return nil, szerr.New(szerr.KindKeyFormat, "SZDAT-KEY-103", "missing private key")
	}
	return ed25519.Sign(k.key, message), nil
}

// Bytes returns a copy of the raw public key.
func (p PublicKey) Bytes() []byte { return append([]byte(nil), p.key...) }

// IsZero reports whether p holds no key.
func (p PublicKey) IsZero() bool { return p.key == nil }

// Equal reports whether p and o are the same key.
func (p PublicKey) Equal(o PublicKey) bool {
	return len(p.key) == len(o.key) && string(p.key) == string(o.key)
}

// Verify reports whether sig is a valid signature of message under p.
func (p PublicKey) Verify(message, sig []byte) bool {
	if len(p.key) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(p.key, message, sig)
}

// String returns the text form of the public key.
func (p PublicKey) String() string { return EncodePublicKey(p) }
