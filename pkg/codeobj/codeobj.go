// Package codeobj holds the metadata of a compiled unit around its
// bytecode: argument counts, name and constant tables, line table and
// required stack size.
//
// Only Code and StackSize are interpreted here. Everything else is carried
// through untouched so a unit can be taken apart, edited and put back
// together field for field. Turning a CodeObject into something a runtime
// can call is the job of a Host.
package codeobj

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/chazu/bcasm/pkg/bytecode"
	"github.com/chazu/bcasm/pkg/isa"
)

var log = commonlog.GetLogger("bcasm.codeobj")

var (
	// ErrIncompatible is matched by every CompatibilityError.
	ErrIncompatible = errors.New("codeobj: incompatible instruction set")

	// ErrNoDescriptor is returned when a code object has no descriptor
	// attached and none was supplied.
	ErrNoDescriptor = errors.New("codeobj: no instruction-set descriptor attached")
)

// CompatibilityError reports an attempt to use a code object with an
// instruction set other than the one it was built for.
type CompatibilityError struct {
	Unit string // descriptor the code object was built for
	Host string // descriptor of the host or caller
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("codeobj: code object built for %s is not compatible with %s", e.Unit, e.Host)
}

func (e *CompatibilityError) Unwrap() error { return ErrIncompatible }

// CodeObject mirrors the fields of a compiled unit.
type CodeObject struct {
	ArgCount       int               `cbor:"1,keyasint"`
	KwOnlyArgCount int               `cbor:"2,keyasint,omitempty"`
	NLocals        int               `cbor:"3,keyasint"`
	StackSize      int               `cbor:"4,keyasint"`
	Flags          uint32            `cbor:"5,keyasint"`
	Code           []byte            `cbor:"6,keyasint"`
	Consts         []cbor.RawMessage `cbor:"7,keyasint,omitempty"` // opaque to this package
	Names          []string          `cbor:"8,keyasint,omitempty"`
	VarNames       []string          `cbor:"9,keyasint,omitempty"`
	Filename       string            `cbor:"10,keyasint"`
	Name           string            `cbor:"11,keyasint"`
	FirstLineNo    int               `cbor:"12,keyasint"`
	LineTable      []byte            `cbor:"13,keyasint,omitempty"`
	FreeVars       []string          `cbor:"14,keyasint,omitempty"`
	CellVars       []string          `cbor:"15,keyasint,omitempty"`

	// ISA and Fingerprint record the descriptor Code was produced for.
	ISA         string   `cbor:"16,keyasint"`
	Fingerprint [32]byte `cbor:"17,keyasint"`

	desc *isa.Descriptor
}

// New returns an empty code object for desc.
func New(desc *isa.Descriptor) *CodeObject {
	c := &CodeObject{}
	c.setDescriptor(desc)
	return c
}

func (c *CodeObject) setDescriptor(desc *isa.Descriptor) {
	c.desc = desc
	c.ISA = desc.Name()
	c.Fingerprint = desc.Fingerprint()
}

// Descriptor returns the attached descriptor, or nil.
func (c *CodeObject) Descriptor() *isa.Descriptor { return c.desc }

// Attach associates desc with a code object that has none, typically one
// that was just unmarshaled. A code object recorded for another
// instruction set is rejected with a CompatibilityError.
func (c *CodeObject) Attach(desc *isa.Descriptor) error {
	if c.ISA != "" && c.Fingerprint != desc.Fingerprint() {
		return &CompatibilityError{Unit: c.ISA, Host: desc.Name()}
	}
	c.setDescriptor(desc)
	return nil
}

// Disassemble decodes Code with the attached descriptor.
func (c *CodeObject) Disassemble() ([]bytecode.Element, error) {
	if c.desc == nil {
		return nil, ErrNoDescriptor
	}
	return bytecode.Disassemble(c.Code, c.desc)
}

// Assemble replaces Code and StackSize with the encoding of seq. If desc is
// not nil it becomes the code object's descriptor; otherwise the attached
// one is used. On error the code object is left unchanged.
func (c *CodeObject) Assemble(seq []bytecode.Element, desc *isa.Descriptor) error {
	if desc == nil {
		desc = c.desc
	}
	if desc == nil {
		return ErrNoDescriptor
	}

	code, err := bytecode.Assemble(seq, desc)
	if err != nil {
		return err
	}
	depth, err := bytecode.MaxStackDepth(seq, desc)
	if err != nil {
		return err
	}

	c.Code = code
	c.StackSize = depth
	c.setDescriptor(desc)
	log.Debugf("assembled %s for %s: %d bytes, stack size %d", c.displayName(), desc.Name(), len(code), depth)
	return nil
}

// Option overrides a field in With.
type Option func(*CodeObject)

// With returns a copy of c with opts applied. Fields no option touches are
// taken from c. Slices are shared with c, so mutate them through options
// rather than in place.
func (c *CodeObject) With(opts ...Option) *CodeObject {
	out := *c
	for _, opt := range opts {
		opt(&out)
	}
	return &out
}

// WithName sets Name.
func WithName(name string) Option { return func(c *CodeObject) { c.Name = name } }

// WithFilename sets Filename.
func WithFilename(filename string) Option { return func(c *CodeObject) { c.Filename = filename } }

// WithArgCount sets ArgCount.
func WithArgCount(n int) Option { return func(c *CodeObject) { c.ArgCount = n } }

// WithNLocals sets NLocals.
func WithNLocals(n int) Option { return func(c *CodeObject) { c.NLocals = n } }

// WithFlags sets Flags.
func WithFlags(flags uint32) Option { return func(c *CodeObject) { c.Flags = flags } }

// WithStackSize sets StackSize.
func WithStackSize(n int) Option { return func(c *CodeObject) { c.StackSize = n } }

// WithCode sets Code.
func WithCode(code []byte) Option { return func(c *CodeObject) { c.Code = code } }

// WithNames sets Names.
func WithNames(names ...string) Option { return func(c *CodeObject) { c.Names = names } }

// WithVarNames sets VarNames.
func WithVarNames(names ...string) Option { return func(c *CodeObject) { c.VarNames = names } }

// WithConsts sets Consts.
func WithConsts(consts ...cbor.RawMessage) Option { return func(c *CodeObject) { c.Consts = consts } }

func (c *CodeObject) displayName() string {
	if c.Name == "" {
		return "<anonymous>"
	}
	return c.Name
}
