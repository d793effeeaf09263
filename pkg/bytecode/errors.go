package bytecode

import (
	"errors"
	"fmt"
)

// ErrStructuralEncoding is matched by every error that rejects a sequence
// because it cannot be encoded as written.
var ErrStructuralEncoding = errors.New("structural encoding error")

// Structural encoding conditions. Each is reported inside an EncodingError,
// which matches both the condition and ErrStructuralEncoding.
var (
	ErrUnexpectedArgument = errors.New("argument given to an opcode that takes none")
	ErrMissingArgument    = errors.New("opcode requires an argument")
	ErrExpectedLabel      = errors.New("jump opcode requires a label argument")
	ErrUnexpectedLabel    = errors.New("label argument given to a non-jump opcode")
	ErrForeignLabel       = errors.New("label is not part of this sequence")
	ErrDuplicateLabel     = errors.New("label appears more than once in the sequence")
	ErrArgumentRange      = errors.New("argument does not fit 32 bits")
	ErrNilElement         = errors.New("nil element")
)

// Disassembly errors.
var (
	ErrTruncated      = errors.New("bytecode: truncated instruction")
	ErrDanglingTarget = errors.New("bytecode: jump target is not the start of an instruction")
)

// EncodingError reports which element of a sequence could not be encoded.
type EncodingError struct {
	Index int    // position in the sequence
	Op    string // the offending instruction, rendered
	Kind  error  // one of the Err* conditions above
}

func (e *EncodingError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("bytecode: element %d: %v", e.Index, e.Kind)
	}
	return fmt.Sprintf("bytecode: element %d (%s): %v", e.Index, e.Op, e.Kind)
}

func (e *EncodingError) Unwrap() []error {
	return []error{e.Kind, ErrStructuralEncoding}
}
