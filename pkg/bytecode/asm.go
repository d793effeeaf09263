package bytecode

import (
	"errors"
	"fmt"
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/bcasm/pkg/isa"
)

var log = commonlog.GetLogger("bcasm.bytecode")

// errNoConvergence means the pass bound was exceeded, which the monotonic
// address argument rules out. Seeing it indicates a bug in the assembler.
var errNoConvergence = errors.New("bytecode: assembler did not converge")

// Layout is the result of assembling a sequence.
type Layout struct {
	Code   []byte         // encoded instructions
	Labels map[*Label]int // final address of every label in the sequence
	Passes int            // number of full passes that were needed
}

// Assemble encodes seq with desc.
func Assemble(seq []Element, desc *isa.Descriptor) ([]byte, error) {
	layout, err := AssembleLayout(seq, desc)
	if err != nil {
		return nil, err
	}
	return layout.Code, nil
}

// AssembleLayout encodes seq with desc and also reports the address every
// label was resolved to.
//
// The sequence is checked in full before any encoding happens, so a
// structurally invalid sequence fails with an EncodingError regardless of
// where the problem is.
func AssembleLayout(seq []Element, desc *isa.Descriptor) (*Layout, error) {
	a, err := newAssembler(seq, desc)
	if err != nil {
		return nil, err
	}

	// Every pass after the first either leaves all labels in place, which
	// ends the loop, or widens at least one jump for good.
	maxPasses := a.jumps + 2
	for passes := 1; ; passes++ {
		if passes > maxPasses {
			return nil, errNoConvergence
		}
		settled, err := a.pass()
		if err != nil {
			return nil, err
		}
		if settled {
			log.Debugf("assembled %d elements into %d bytes in %d passes", len(seq), len(a.out), passes)
			return &Layout{Code: a.out, Labels: a.addrs, Passes: passes}, nil
		}
	}
}

type assembler struct {
	seq     []Element
	desc    *isa.Descriptor
	opcodes []byte // opcode per element; unused for labels
	jumps   int

	addrs map[*Label]int
	// wide marks jumps that needed an extended-argument prefix in some
	// pass. A jump never narrows again, which keeps addresses monotonic.
	wide []bool
	out  []byte
}

func newAssembler(seq []Element, desc *isa.Descriptor) (*assembler, error) {
	a := &assembler{
		seq:     seq,
		desc:    desc,
		opcodes: make([]byte, len(seq)),
		addrs:   make(map[*Label]int),
		wide:    make([]bool, len(seq)),
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	return a, nil
}

// check validates the whole sequence against the descriptor.
func (a *assembler) check() error {
	present := make(map[*Label]bool)
	var refs []int

	for i, el := range a.seq {
		switch el := el.(type) {
		case *Label:
			if el == nil {
				return &EncodingError{Index: i, Kind: ErrNilElement}
			}
			if present[el] {
				return &EncodingError{Index: i, Op: el.String(), Kind: ErrDuplicateLabel}
			}
			present[el] = true

		case *Op:
			if el == nil {
				return &EncodingError{Index: i, Kind: ErrNilElement}
			}
			opcode, err := a.desc.Opcode(el.Name)
			if err != nil {
				return fmt.Errorf("bytecode: element %d: %w", i, err)
			}
			a.opcodes[i] = opcode

			switch arg := el.Arg.(type) {
			case nil:
				if a.desc.TakesArgument(opcode) {
					return &EncodingError{Index: i, Op: el.String(), Kind: ErrMissingArgument}
				}
			case *Label:
				if !a.desc.TakesArgument(opcode) {
					return &EncodingError{Index: i, Op: el.String(), Kind: ErrUnexpectedArgument}
				}
				if !a.desc.IsJump(opcode) {
					return &EncodingError{Index: i, Op: el.String(), Kind: ErrUnexpectedLabel}
				}
				if arg == nil {
					return &EncodingError{Index: i, Op: el.Name, Kind: ErrExpectedLabel}
				}
				refs = append(refs, i)
				a.jumps++
			case Imm:
				if !a.desc.TakesArgument(opcode) {
					return &EncodingError{Index: i, Op: el.String(), Kind: ErrUnexpectedArgument}
				}
				if a.desc.IsJump(opcode) {
					return &EncodingError{Index: i, Op: el.String(), Kind: ErrExpectedLabel}
				}
				if arg < 0 || int64(arg) > math.MaxUint32 {
					return &EncodingError{Index: i, Op: el.String(), Kind: ErrArgumentRange}
				}
			default:
				return &EncodingError{Index: i, Op: el.Name, Kind: fmt.Errorf("unsupported operand type %T", arg)}
			}

		default:
			return &EncodingError{Index: i, Kind: ErrNilElement}
		}
	}

	for _, i := range refs {
		op := a.seq[i].(*Op)
		if !present[op.Target()] {
			return &EncodingError{Index: i, Op: op.String(), Kind: ErrForeignLabel}
		}
	}
	return nil
}

// pass runs one full encoding pass. It reports settled when no label moved
// and every jump could be resolved; the output is final in that case.
func (a *assembler) pass() (settled bool, err error) {
	a.out = a.out[:0]
	settled = true
	var rangeErr error
	addr := 0

	for i, el := range a.seq {
		if label, ok := el.(*Label); ok {
			if prev, known := a.addrs[label]; !known || prev != addr {
				a.addrs[label] = addr
				settled = false
			}
			continue
		}

		op := el.(*Op)
		opcode := a.opcodes[i]

		var arg int
		switch v := op.Arg.(type) {
		case nil:
			a.out = append(a.out, opcode)
			addr++
			continue
		case Imm:
			arg = int(v)
		case *Label:
			dest, known := a.addrs[v]
			if !known {
				settled = false
				// A forward absolute jump from beyond 64K certainly
				// needs a prefix; guessing so here can save a pass.
				if a.desc.IsAbsoluteJump(opcode) && addr > 0xffff {
					addr += 6
				} else {
					addr += 3
				}
				continue
			}
			arg = dest
			if a.desc.IsRelativeJump(opcode) {
				arg = dest - (addr + 3)
				if a.wide[i] || arg > 0xffff {
					a.wide[i] = true
					arg = dest - (addr + 6)
				}
			}
		}

		if arg < 0 || int64(arg) > math.MaxUint32 {
			if rangeErr == nil {
				rangeErr = &EncodingError{Index: i, Op: op.String(), Kind: ErrArgumentRange}
			}
			arg = 0
		}
		if arg > 0xffff {
			a.wide[i] = true
		}
		if a.wide[i] {
			a.out = appendInstr(a.out, a.desc.ExtendedArg(), arg>>16)
			addr += 3
			arg &= 0xffff
		}
		a.out = appendInstr(a.out, opcode, arg)
		addr += 3
	}

	// An out-of-range argument only counts once the layout has settled;
	// before that it may come from a stale label address.
	if settled && rangeErr != nil {
		return false, rangeErr
	}
	return settled, nil
}

func appendInstr(buf []byte, opcode byte, arg int) []byte {
	return append(buf, opcode, byte(arg), byte(arg>>8))
}
