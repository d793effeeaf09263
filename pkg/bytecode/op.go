package bytecode

import (
	"fmt"
	"strconv"
)

// Element is an item of a symbolic sequence: an *Op or a *Label.
type Element interface {
	element()
}

// Operand is the argument of an Op: an Imm or a *Label.
type Operand interface {
	operand()
}

// Imm is a literal argument: a constant, name or local index, or a count.
type Imm int

func (Imm) operand() {}

// String returns the decimal value.
func (i Imm) String() string { return strconv.Itoa(int(i)) }

// Label marks a jump target. Labels have identity semantics: two labels are
// the same target only if they are the same pointer. The name is cosmetic
// and only used when printing listings.
type Label struct {
	name string
}

// NewLabel allocates a fresh, unnamed label.
func NewLabel() *Label {
	return &Label{}
}

// NamedLabel allocates a fresh label that prints as name. Labels with equal
// names are still distinct.
func NamedLabel(name string) *Label {
	return &Label{name: name}
}

// Name returns the label's display name, or "" if it has none.
func (l *Label) Name() string { return l.name }

func (l *Label) String() string {
	if l.name != "" {
		return l.name
	}
	return fmt.Sprintf("label(%p)", l)
}

func (*Label) element() {}
func (*Label) operand() {}

// Op is a single symbolic instruction.
type Op struct {
	Name string  // mnemonic, e.g. "LOAD_CONST"
	Arg  Operand // nil for instructions without an argument
}

func (*Op) element() {}

// NewOp returns an instruction without an argument.
func NewOp(name string) *Op {
	return &Op{Name: name}
}

// NewOpArg returns an instruction with a literal argument.
func NewOpArg(name string, arg int) *Op {
	return &Op{Name: name, Arg: Imm(arg)}
}

// NewJump returns a jump instruction targeting label.
func NewJump(name string, target *Label) *Op {
	return &Op{Name: name, Arg: target}
}

// Target returns the jump target of the op, or nil if its argument is not a
// label.
func (o *Op) Target() *Label {
	l, _ := o.Arg.(*Label)
	return l
}

// IntArg returns the literal argument of the op and whether it has one.
func (o *Op) IntArg() (int, bool) {
	i, ok := o.Arg.(Imm)
	return int(i), ok
}

func (o *Op) String() string {
	if o.Arg == nil {
		return o.Name
	}
	return fmt.Sprintf("%s %v", o.Name, o.Arg)
}
