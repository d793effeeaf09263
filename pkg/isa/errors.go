package isa

import (
	"errors"
	"fmt"
)

// ErrDescriptorLookup is matched by every LookupError.
var ErrDescriptorLookup = errors.New("isa: descriptor lookup failed")

// LookupError reports a mnemonic or opcode the descriptor does not know,
// which usually means the input was produced for another instruction set.
type LookupError struct {
	Descriptor string
	Mnemonic   string // set for mnemonic lookups
	Opcode     int    // set for opcode lookups, -1 otherwise
	What       string // "opcode", "mnemonic" or "stack effect"
}

func (e *LookupError) Error() string {
	if e.Mnemonic != "" {
		return fmt.Sprintf("isa %s: unknown %s for %s", e.Descriptor, e.What, e.Mnemonic)
	}
	return fmt.Sprintf("isa %s: unknown %s %d (0x%02X)", e.Descriptor, e.What, e.Opcode, e.Opcode)
}

func (e *LookupError) Unwrap() error { return ErrDescriptorLookup }
