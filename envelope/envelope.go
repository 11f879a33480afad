// Package envelope implements the szdat envelope: an opaque body tagged with a
// content type and bound to an Ed25519 key by a detached signature.
//
// The signature covers the body bytes only. The content type travels beside
// the body unsigned, so a party in the transport path can re-tag an envelope
// without invalidating it; Open therefore checks the tag only after the body
// has been verified, and treats it as a schema hint rather than an assertion
// by the signer.
//
// Envelopes carry no public key. The verifier supplies the key it trusts.
// Bodies are never decoded before verification: the only exported way to get
// at the decoded Archive is Open, which verifies first.
package envelope

import (
	"github.com/gordonbrander/szdat/archive"
	"github.com/gordonbrander/szdat/keys"
	"github.com/gordonbrander/szdat/szerr"
)

// SignatureSize is the fixed length of Envelope.Signature.
const SignatureSize = keys.SignatureSize

// Envelope is the signed unit of persistence and transmission.
// Treat it as immutable once sealed.
type Envelope struct {
	ContentType string
	Body        []byte
	Signature   [SignatureSize]byte
}

// Seal signs body with priv and returns the envelope. The body is copied.
func Seal(contentType string, body []byte, priv keys.PrivateKey) (*Envelope, error) {
	sig, err := priv.Sign(body)
	if err != nil {
		return nil, err
	}
	env := &Envelope{ContentType: contentType, Body: append([]byte{}, body...)}
	copy(env.Signature[:], sig)
	return env, nil
}

// SealArchive encodes a and seals it with archive.ContentType. An archive
// whose envelope would exceed MaxEncodedSize is refused before signing.
func SealArchive(a *archive.Archive, priv keys.PrivateKey) (*Envelope, error) {
	body, err := archive.Encode(a)
	if err != nil {
		return nil, err
	}
	if len(body) > maxEncodedSize {
		return nil, errTooLarge()
	}
	return Seal(archive.ContentType, body, priv)
}

// Verify checks the signature over the body under pub.
// It never looks inside the body.
func (e *Envelope) Verify(pub keys.PublicKey) error {
	if e == nil {
		return szerr.New(szerr.KindVerification, "SZDAT-SIG-001", "nil envelope")
	}
	if pub.IsZero() {
		return szerr.New(szerr.KindVerification, "SZDAT-SIG-002", "missing public key")
	}
	if !pub.Verify(e.Body, e.Signature[:]) {
		return szerr.New(szerr.KindVerification, "SZDAT-SIG-401", "signature invalid")
	}
	return nil
}

// Open verifies e under pub and, only if that succeeds, decodes the body as an
// Archive. The content type must be archive.ContentType.
func (e *Envelope) Open(pub keys.PublicKey) (*archive.Archive, error) {
	if err := e.Verify(pub); err != nil {
		return nil, err
	}
	if e.ContentType != archive.ContentType {
		return nil, szerr.New(szerr.KindDecode, "SZDAT-ENV-201", "unexpected content type: "+e.ContentType)
	}
	return archive.Decode(e.Body)
}
