// Package keys provides Ed25519 signing keys for szdat envelopes.
//
// Stable:
//   - Key generation from an injected random source, signing and verification.
//   - The text form of keys: unpadded RFC 4648 base32, decoded case-insensitively.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). This is a local convenience
//     and not part of the envelope protocol.
package keys
