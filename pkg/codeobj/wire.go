package codeobj

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Canonical mode keeps encodings deterministic, so equal code objects
// produce equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codeobj: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a code object to CBOR bytes. The attached descriptor
// is not serialized; only its name and fingerprint are.
func Marshal(c *CodeObject) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// Unmarshal deserializes a code object from CBOR bytes. The result has no
// descriptor attached; call Attach before disassembling it.
func Unmarshal(data []byte) (*CodeObject, error) {
	var c CodeObject
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("codeobj: unmarshal: %w", err)
	}
	return &c, nil
}
