package bytecode

import (
	"fmt"
	"testing"

	"github.com/chazu/bcasm/pkg/isa"
	"github.com/chazu/bcasm/pkg/isa/tables"
)

// testDescriptor builds a small instruction set with the CPython 3.4
// opcode numbers and simple stack effects.
func testDescriptor(t testing.TB, traits isa.Traits) *isa.Descriptor {
	t.Helper()
	d, err := isa.New(isa.Config{
		Name:         fmt.Sprintf("test-%d", traits),
		HaveArgument: 90,
		ExtendedArg:  144,
		Traits:       traits,
		Opcodes: map[string]int{
			"POP_TOP":             1,
			"DUP_TOP":             4,
			"NOP":                 9,
			"GET_ITER":            68,
			"RETURN_VALUE":        83,
			"POP_BLOCK":           87,
			"FOR_ITER":            93,
			"LOAD_CONST":          100,
			"BUILD_TUPLE":         102,
			"JUMP_FORWARD":        110,
			"JUMP_IF_TRUE_OR_POP": 112,
			"JUMP_ABSOLUTE":       113,
			"POP_JUMP_IF_FALSE":   114,
			"SETUP_EXCEPT":        121,
			"STORE_FAST":          125,
			"EXTENDED_ARG":        144,
		},
		Jrel:          []string{"FOR_ITER", "JUMP_FORWARD", "SETUP_EXCEPT"},
		Jabs:          []string{"JUMP_IF_TRUE_OR_POP", "JUMP_ABSOLUTE", "POP_JUMP_IF_FALSE"},
		Unconditional: []string{"JUMP_ABSOLUTE", "JUMP_FORWARD"},
		Effects: map[string]isa.Formula{
			"POP_TOP":             {Base: -1},
			"DUP_TOP":             {Base: 1},
			"NOP":                 {},
			"GET_ITER":            {},
			"RETURN_VALUE":        {Base: -1},
			"POP_BLOCK":           {},
			"FOR_ITER":            {Base: 1},
			"LOAD_CONST":          {Base: 1},
			"BUILD_TUPLE":         {Base: 1, Arg: -1},
			"JUMP_FORWARD":        {},
			"JUMP_IF_TRUE_OR_POP": {},
			"JUMP_ABSOLUTE":       {},
			"POP_JUMP_IF_FALSE":   {Base: -1},
			"SETUP_EXCEPT":        {},
			"STORE_FAST":          {Base: -1},
			"EXTENDED_ARG":        {},
		},
	})
	if err != nil {
		t.Fatalf("building test descriptor: %v", err)
	}
	return d
}

func cpython34(t testing.TB) *isa.Descriptor {
	t.Helper()
	d, err := tables.Lookup("cpython-3.4")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// shape renders seq with each label replaced by the index of the op it
// precedes, so sequences that differ only in label identity compare equal.
// Labels that are never jumped to are left out.
func shape(seq []Element) []string {
	at := make(map[*Label]int)
	n := 0
	for _, el := range seq {
		switch el := el.(type) {
		case *Label:
			at[el] = n
		case *Op:
			n++
		}
	}

	var out []string
	for _, el := range seq {
		op, ok := el.(*Op)
		if !ok {
			continue
		}
		switch arg := op.Arg.(type) {
		case *Label:
			out = append(out, fmt.Sprintf("%s ->%d", op.Name, at[arg]))
		case Imm:
			out = append(out, fmt.Sprintf("%s %d", op.Name, arg))
		default:
			out = append(out, op.Name)
		}
	}
	return out
}

func nops(n int) []Element {
	seq := make([]Element, n)
	for i := range seq {
		seq[i] = NewOp("NOP")
	}
	return seq
}

func concat(parts ...[]Element) []Element {
	var seq []Element
	for _, p := range parts {
		seq = append(seq, p...)
	}
	return seq
}
