package isa

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Effect reports the net change in operand-stack depth caused by executing
// one instruction with the given argument. Instructions without an argument
// are evaluated with arg 0.
type Effect interface {
	StackEffect(arg int) int
}

// Fixed is an effect that does not depend on the argument.
type Fixed int

// StackEffect implements Effect.
func (f Fixed) StackEffect(int) int { return int(f) }

// EffectFunc adapts an ordinary function to Effect.
type EffectFunc func(arg int) int

// StackEffect implements Effect.
func (f EffectFunc) StackEffect(arg int) int { return f(arg) }

// Formula is a linear stack effect over the fields of an argument:
//
//	base + arg*Arg + (arg&0xff)*Lo + ((arg>>8)&0xff)*Hi + ((arg>>16)&0xffff)*Ext
//
// Cases overrides the result for specific argument values. This covers the
// call/build/unpack family of instructions, whose effect depends on counts
// packed into the argument bytes.
type Formula struct {
	Base  int
	Arg   int
	Lo    int
	Hi    int
	Ext   int
	Cases map[int]int
}

// StackEffect implements Effect.
func (f Formula) StackEffect(arg int) int {
	if v, ok := f.Cases[arg]; ok {
		return v
	}
	return f.Base +
		arg*f.Arg +
		(arg&0xff)*f.Lo +
		((arg>>8)&0xff)*f.Hi +
		((arg>>16)&0xffff)*f.Ext
}

// String renders the formula in the same inline-table form it is read from.
func (f Formula) String() string {
	if f.Arg == 0 && f.Lo == 0 && f.Hi == 0 && f.Ext == 0 && len(f.Cases) == 0 {
		return strconv.Itoa(f.Base)
	}
	var parts []string
	add := func(key string, v int) {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s = %d", key, v))
		}
	}
	add("base", f.Base)
	add("arg", f.Arg)
	add("lo", f.Lo)
	add("hi", f.Hi)
	add("ext", f.Ext)
	if len(f.Cases) > 0 {
		keys := make([]int, 0, len(f.Cases))
		for k := range f.Cases {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		cases := make([]string, len(keys))
		for i, k := range keys {
			cases[i] = fmt.Sprintf("%d = %d", k, f.Cases[k])
		}
		parts = append(parts, "cases = { "+strings.Join(cases, ", ")+" }")
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// UnmarshalTOML accepts either a bare integer or an inline table with the
// keys base, arg, lo, hi, ext and cases.
func (f *Formula) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case int64:
		*f = Formula{Base: int(v)}
		return nil
	case map[string]any:
		var out Formula
		for key, raw := range v {
			if key == "cases" {
				cases, ok := raw.(map[string]any)
				if !ok {
					return fmt.Errorf("cases must be a table, got %T", raw)
				}
				out.Cases = make(map[int]int, len(cases))
				for k, cv := range cases {
					n, err := strconv.Atoi(k)
					if err != nil {
						return fmt.Errorf("case key %q is not an integer", k)
					}
					val, ok := cv.(int64)
					if !ok {
						return fmt.Errorf("case %d must be an integer, got %T", n, cv)
					}
					out.Cases[n] = int(val)
				}
				continue
			}
			n, ok := raw.(int64)
			if !ok {
				return fmt.Errorf("%s must be an integer, got %T", key, raw)
			}
			switch key {
			case "base":
				out.Base = int(n)
			case "arg":
				out.Arg = int(n)
			case "lo":
				out.Lo = int(n)
			case "hi":
				out.Hi = int(n)
			case "ext":
				out.Ext = int(n)
			default:
				return fmt.Errorf("unknown stack effect key %q", key)
			}
		}
		*f = out
		return nil
	default:
		return fmt.Errorf("stack effect must be an integer or table, got %T", v)
	}
}
