// Package canon holds the canonical CBOR modes shared by every szdat wire
// structure.
//
// Encoding follows RFC 8949 core deterministic encoding with nil and empty
// containers encoded identically, so equal values always produce equal bytes.
// Decoding is strict: duplicate or unknown map keys, indefinite lengths, tags
// and trailing bytes are all rejected.
package canon

import "github.com/fxamacker/cbor/v2"

// MaxElements is the largest array or map the decoder accepts. It is the
// library ceiling, so anything the encoder can produce from an in-memory
// value decodes again.
const MaxElements = 2147483647

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.NilContainers = cbor.NilContainerAsEmpty
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		TagsMd:            cbor.TagsForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		MaxArrayElements:  MaxElements,
		MaxMapPairs:       MaxElements,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	encMode, decMode = em, dm
}

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal strictly decodes exactly one CBOR data item from b into v.
func Unmarshal(b []byte, v any) error { return decMode.Unmarshal(b, v) }
