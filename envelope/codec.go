package envelope

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/gordonbrander/szdat/internal/canon"
	"github.com/gordonbrander/szdat/szerr"
)

// MaxEncodedSize bounds an encoded envelope. Marshal refuses to produce a
// larger one and Read refuses to buffer one.
const MaxEncodedSize = 1 << 30

var maxEncodedSize = MaxEncodedSize

type wireEnvelope struct {
	ContentType *string `cbor:"content_type"`
	Body        *[]byte `cbor:"body"`
	Signature   *[]byte `cbor:"signature"`
}

// Marshal returns the canonical encoding of e.
func Marshal(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, szerr.New(szerr.KindInternal, "SZDAT-ENV-001", "nil envelope")
	}
	sig := e.Signature[:]
	b, err := canon.Marshal(wireEnvelope{ContentType: &e.ContentType, Body: &e.Body, Signature: &sig})
	if err != nil {
		return nil, szerr.Wrap(szerr.KindInternal, "SZDAT-ENV-002", "encode envelope", err)
	}
	if len(b) > maxEncodedSize {
		return nil, errTooLarge()
	}
	return b, nil
}

// Unmarshal parses the canonical encoding of an envelope. It checks structure
// only; the signature is not verified.
func Unmarshal(b []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := canon.Unmarshal(b, &w); err != nil {
		return nil, szerr.Wrap(szerr.KindDecode, "SZDAT-DEC-101", "malformed envelope", err)
	}
	switch {
	case w.ContentType == nil:
		return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-102", "malformed envelope: missing content_type")
	case w.Body == nil:
		return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-103", "malformed envelope: missing body")
	case w.Signature == nil:
		return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-104", "malformed envelope: missing signature")
	case len(*w.Signature) != SignatureSize:
		return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-105", "malformed envelope: signature must be 64 bytes")
	}
	e := &Envelope{ContentType: *w.ContentType, Body: *w.Body}
	if e.Body == nil {
		e.Body = []byte{}
	}
	copy(e.Signature[:], *w.Signature)
	return e, nil
}

// WriteTo writes the canonical encoding of e to w.
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
	b, err := Marshal(e)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	if err != nil {
		return int64(n), szerr.Wrap(szerr.KindIO, "SZDAT-IO-101", "write envelope", err)
	}
	return int64(n), nil
}

// Read consumes r to EOF and parses one envelope. Like Unmarshal, it does not
// verify the signature.
func Read(r io.Reader) (*Envelope, error) {
	b, err := io.ReadAll(io.LimitReader(r, int64(maxEncodedSize)+1))
	if err != nil {
		return nil, szerr.Wrap(szerr.KindIO, "SZDAT-IO-102", "read envelope", err)
	}
	if len(b) > maxEncodedSize {
		return nil, szerr.New(szerr.KindDecode, "SZDAT-DEC-106", "envelope exceeds maximum size")
	}
	return Unmarshal(b)
}

// ID returns the content identifier of an encoded envelope: a CIDv1 with the
// raw codec and a sha2-256 multihash.
func ID(encoded []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(encoded, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// IDOf encodes e and returns its content identifier.
func IDOf(e *Envelope) (cid.Cid, error) {
	b, err := Marshal(e)
	if err != nil {
		return cid.Undef, err
	}
	return ID(b)
}

func errTooLarge() error {
	return szerr.New(szerr.KindInternal, "SZDAT-ENV-003", fmt.Sprintf("envelope exceeds maximum size of %d bytes", maxEncodedSize))
}
