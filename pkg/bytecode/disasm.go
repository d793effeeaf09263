package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/bcasm/pkg/isa"
)

// Disassemble decodes code into a symbolic sequence.
//
// Extended-argument prefixes are folded into the instruction they extend.
// Jump arguments are replaced by labels, one per distinct target address,
// and each label is placed immediately before the instruction at its
// target.
func Disassemble(code []byte, desc *isa.Descriptor) ([]Element, error) {
	// located records where each instruction starts. Extended-argument
	// prefixes are kept with a nil op so that a jump aimed at the prefix
	// gets its label.
	type located struct {
		addr int
		op   *Op
	}

	targets := make(map[int]*Label)
	instrs := make([]located, 0, len(code)/2)
	ext := 0

	for addr := 0; addr < len(code); {
		opcode := code[addr]
		name, err := desc.Opname(opcode)
		if err != nil {
			return nil, fmt.Errorf("bytecode: at %04X: %w", addr, err)
		}

		next := addr + 1
		var arg Operand
		if desc.TakesArgument(opcode) {
			if addr+3 > len(code) {
				return nil, fmt.Errorf("%w: %s at %04X", ErrTruncated, name, addr)
			}
			value := int(binary.LittleEndian.Uint16(code[addr+1:])) + ext
			next = addr + 3

			if desc.IsRelativeJump(opcode) {
				value += next
			}
			if desc.IsJump(opcode) {
				label, ok := targets[value]
				if !ok {
					label = NewLabel()
					targets[value] = label
				}
				arg = label
			} else {
				arg = Imm(value)
			}

			if opcode == desc.ExtendedArg() {
				ext = value << 16
				instrs = append(instrs, located{addr: addr})
				addr = next
				continue
			}
		}
		ext = 0

		instrs = append(instrs, located{addr: addr, op: &Op{Name: name, Arg: arg}})
		addr = next
	}

	seq := make([]Element, 0, len(instrs)+len(targets))
	placed := make(map[int]bool, len(targets))
	for _, in := range instrs {
		if label, ok := targets[in.addr]; ok {
			seq = append(seq, label)
			placed[in.addr] = true
		}
		if in.op != nil {
			seq = append(seq, in.op)
		}
	}
	if len(placed) != len(targets) {
		dangling := -1
		for addr := range targets {
			if !placed[addr] && (dangling < 0 || addr < dangling) {
				dangling = addr
			}
		}
		return nil, fmt.Errorf("%w: %04X", ErrDanglingTarget, dangling)
	}
	return seq, nil
}
