// Package isa describes the instruction sets the assembler, disassembler and
// stack-depth analyzer work against.
//
// A Descriptor bundles everything that differs between versions of a
// bytecode format: the opcode numbering, where arguments start, which
// opcodes carry jump targets, the extended-argument prefix and the stack
// effect of every instruction. Descriptors are immutable once built and are
// passed explicitly to every operation; there is no process-wide default.
package isa

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bcasm.isa")

// Traits toggles the branch-depth corrections the stack-depth analyzer
// applies to specific control-transfer instructions.
type Traits uint8

const (
	// TraitBlockSetup: the branch of FOR_ITER sees two fewer values than
	// the fall-through path, and the branch of SETUP_EXCEPT and
	// SETUP_FINALLY sees three more (the pushed exception state).
	TraitBlockSetup Traits = 1 << 0

	// TraitOrPop: JUMP_IF_TRUE_OR_POP and JUMP_IF_FALSE_OR_POP pop their
	// operand only on the fall-through path.
	TraitOrPop Traits = 1 << 1
)

// Has reports whether all bits of t are set.
func (tr Traits) Has(t Traits) bool { return tr&t == t }

// Config is the plain-data form of a descriptor, as read from a descriptor
// file. Build a Descriptor from it with New.
type Config struct {
	Name          string             `toml:"name"`
	HaveArgument  int                `toml:"have_argument"`
	ExtendedArg   int                `toml:"extended_arg"`
	Traits        Traits             `toml:"traits"`
	Opcodes       map[string]int     `toml:"opcodes"`
	Jrel          []string           `toml:"jrel"`
	Jabs          []string           `toml:"jabs"`
	Unconditional []string           `toml:"unconditional"`
	Effects       map[string]Formula `toml:"effects"`

	// Funcs supplies stack effects that cannot be written as a Formula.
	// An entry here overrides the same mnemonic in Effects.
	Funcs map[string]EffectFunc `toml:"-"`
}

// Descriptor is a validated, immutable instruction-set description.
type Descriptor struct {
	name          string
	haveArgument  byte
	extendedArg   byte
	traits        Traits
	opnames       [256]string
	opmap         map[string]byte
	jrel          [256]bool
	jabs          [256]bool
	unconditional map[string]bool
	effects       map[string]Effect
	fingerprint   [32]byte
}

// New validates cfg and builds a Descriptor from it.
func New(cfg Config) (*Descriptor, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("isa: descriptor has no name")
	}
	if cfg.HaveArgument < 1 || cfg.HaveArgument > 255 {
		return nil, fmt.Errorf("isa %s: have_argument %d out of range 1..255", cfg.Name, cfg.HaveArgument)
	}
	if cfg.ExtendedArg < cfg.HaveArgument || cfg.ExtendedArg > 255 {
		return nil, fmt.Errorf("isa %s: extended_arg %d must take an argument (>= %d) and fit a byte",
			cfg.Name, cfg.ExtendedArg, cfg.HaveArgument)
	}

	d := &Descriptor{
		name:          cfg.Name,
		haveArgument:  byte(cfg.HaveArgument),
		extendedArg:   byte(cfg.ExtendedArg),
		traits:        cfg.Traits,
		opmap:         make(map[string]byte, len(cfg.Opcodes)),
		unconditional: make(map[string]bool, len(cfg.Unconditional)),
		effects:       make(map[string]Effect, len(cfg.Effects)+len(cfg.Funcs)),
	}

	for name, code := range cfg.Opcodes {
		if name == "" {
			return nil, fmt.Errorf("isa %s: empty mnemonic for opcode %d", cfg.Name, code)
		}
		if code < 0 || code > 255 {
			return nil, fmt.Errorf("isa %s: opcode %s = %d does not fit a byte", cfg.Name, name, code)
		}
		if prev := d.opnames[code]; prev != "" {
			return nil, fmt.Errorf("isa %s: opcode %d assigned to both %s and %s", cfg.Name, code, prev, name)
		}
		d.opnames[code] = name
		d.opmap[name] = byte(code)
	}

	jumps := func(kind string, names []string, set *[256]bool) error {
		for _, name := range names {
			code, ok := d.opmap[name]
			if !ok {
				return fmt.Errorf("isa %s: %s lists unknown mnemonic %s", cfg.Name, kind, name)
			}
			if code < d.haveArgument {
				return fmt.Errorf("isa %s: jump %s (%d) is below have_argument", cfg.Name, name, code)
			}
			if code == d.extendedArg {
				return fmt.Errorf("isa %s: extended-argument opcode %s cannot be a jump", cfg.Name, name)
			}
			set[code] = true
		}
		return nil
	}
	if err := jumps("jrel", cfg.Jrel, &d.jrel); err != nil {
		return nil, err
	}
	if err := jumps("jabs", cfg.Jabs, &d.jabs); err != nil {
		return nil, err
	}
	for code := range d.jrel {
		if d.jrel[code] && d.jabs[code] {
			return nil, fmt.Errorf("isa %s: %s is both a relative and an absolute jump", cfg.Name, d.opnames[code])
		}
	}

	for _, name := range cfg.Unconditional {
		if _, ok := d.opmap[name]; !ok {
			return nil, fmt.Errorf("isa %s: unconditional lists unknown mnemonic %s", cfg.Name, name)
		}
		d.unconditional[name] = true
	}

	for name, f := range cfg.Effects {
		if _, ok := d.opmap[name]; !ok {
			return nil, fmt.Errorf("isa %s: stack effect for unknown mnemonic %s", cfg.Name, name)
		}
		d.effects[name] = f
	}
	for name, f := range cfg.Funcs {
		if _, ok := d.opmap[name]; !ok {
			return nil, fmt.Errorf("isa %s: stack effect for unknown mnemonic %s", cfg.Name, name)
		}
		if f == nil {
			return nil, fmt.Errorf("isa %s: nil stack effect function for %s", cfg.Name, name)
		}
		d.effects[name] = f
	}

	d.fingerprint = fingerprint(cfg)
	log.Debugf("built descriptor %s: %d opcodes, %d stack effects", d.name, len(d.opmap), len(d.effects))
	return d, nil
}

// Name returns the descriptor's name, e.g. "cpython-2.7".
func (d *Descriptor) Name() string { return d.name }

// HaveArgument returns the first opcode that carries an argument.
func (d *Descriptor) HaveArgument() byte { return d.haveArgument }

// ExtendedArg returns the opcode of the extended-argument prefix.
func (d *Descriptor) ExtendedArg() byte { return d.extendedArg }

// Traits returns the analyzer traits.
func (d *Descriptor) Traits() Traits { return d.traits }

// TakesArgument reports whether op is followed by a 16-bit argument.
func (d *Descriptor) TakesArgument(op byte) bool { return op >= d.haveArgument }

// Opname returns the mnemonic of op.
func (d *Descriptor) Opname(op byte) (string, error) {
	name := d.opnames[op]
	if name == "" {
		return "", &LookupError{Descriptor: d.name, Opcode: int(op), What: "opcode"}
	}
	return name, nil
}

// Opcode returns the opcode of a mnemonic.
func (d *Descriptor) Opcode(name string) (byte, error) {
	op, ok := d.opmap[name]
	if !ok {
		return 0, &LookupError{Descriptor: d.name, Mnemonic: name, Opcode: -1, What: "mnemonic"}
	}
	return op, nil
}

// IsRelativeJump reports whether op's argument is an offset from the end of
// the instruction.
func (d *Descriptor) IsRelativeJump(op byte) bool { return d.jrel[op] }

// IsAbsoluteJump reports whether op's argument is a code address.
func (d *Descriptor) IsAbsoluteJump(op byte) bool { return d.jabs[op] }

// IsJump reports whether op carries a jump target of either kind.
func (d *Descriptor) IsJump(op byte) bool { return d.jrel[op] || d.jabs[op] }

// IsUnconditional reports whether the named instruction never falls through.
func (d *Descriptor) IsUnconditional(name string) bool { return d.unconditional[name] }

// StackEffect returns the stack effect of the named instruction with arg.
func (d *Descriptor) StackEffect(name string, arg int) (int, error) {
	e, ok := d.effects[name]
	if !ok {
		return 0, &LookupError{Descriptor: d.name, Mnemonic: name, Opcode: -1, What: "stack effect"}
	}
	return e.StackEffect(arg), nil
}

// Mnemonics returns all mnemonics ordered by opcode.
func (d *Descriptor) Mnemonics() []string {
	names := make([]string, 0, len(d.opmap))
	for _, name := range d.opnames {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Fingerprint identifies the encoding and stack semantics of the
// descriptor, independent of its name. Two descriptors with equal
// fingerprints produce and accept the same bytecode.
func (d *Descriptor) Fingerprint() [32]byte { return d.fingerprint }

// Compatible reports whether code built for d can be used with other.
func (d *Descriptor) Compatible(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.fingerprint == other.fingerprint
}

func fingerprint(cfg Config) [32]byte {
	var buf []byte
	buf = binary.BigEndian.AppendUint16(buf, uint16(cfg.HaveArgument))
	buf = binary.BigEndian.AppendUint16(buf, uint16(cfg.ExtendedArg))
	buf = append(buf, byte(cfg.Traits))

	names := sortedKeys(cfg.Opcodes)
	for _, name := range names {
		buf = fmt.Appendf(buf, "op %s %d\n", name, cfg.Opcodes[name])
	}
	for _, list := range []struct {
		tag   string
		names []string
	}{{"jrel", cfg.Jrel}, {"jabs", cfg.Jabs}, {"uncond", cfg.Unconditional}} {
		sorted := append([]string(nil), list.names...)
		sort.Strings(sorted)
		for _, name := range sorted {
			buf = fmt.Appendf(buf, "%s %s\n", list.tag, name)
		}
	}
	for _, name := range sortedKeys(cfg.Effects) {
		if _, ok := cfg.Funcs[name]; ok {
			continue
		}
		buf = fmt.Appendf(buf, "effect %s %s\n", name, cfg.Effects[name])
	}
	// Function effects are opaque; only their presence is recorded.
	for _, name := range sortedKeys(cfg.Funcs) {
		buf = fmt.Appendf(buf, "effect %s func\n", name)
	}
	return sha256.Sum256(buf)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
