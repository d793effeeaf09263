// Package bytecode converts between raw bytecode and a symbolic form that
// can be inspected and edited, and computes the operand-stack size a
// sequence of instructions needs.
//
// Everything here is parameterized by an instruction-set descriptor
// (package isa). The same code disassembles and reassembles any bytecode
// format that uses the classic three-byte encoding: one opcode byte,
// optionally followed by a little-endian 16-bit argument, with wider
// arguments carried by an extended-argument prefix instruction.
//
// # Symbolic Form
//
// A sequence is a []Element whose elements are *Op and *Label values:
//
//   - Op: a mnemonic and an optional Operand. The operand is either an Imm
//     (a literal index or count) or a *Label for jump instructions.
//
//   - Label: a zero-width marker for a jump target. Labels compare by
//     identity. A Label element placed before an Op means "this address is
//     jumped to".
//
// Ops are plain mutable structs; callers may edit Name and Arg in place
// between Disassemble and Assemble.
//
// # Assembly
//
// The width of a jump instruction (3 bytes, or 6 with an extended-argument
// prefix) depends on its target's address, which depends on the widths of
// everything before it. Assemble therefore runs full passes over the
// sequence until no label moves. Label addresses never decrease between
// passes and are bounded by six bytes per instruction, so the loop always
// terminates.
//
// # Stack Depth
//
// MaxStackDepth splits a sequence into basic blocks (Partition) and walks
// the resulting graph depth-first from the entry block, following both the
// fall-through and jump edges of every block. Re-entering a block that is
// on the current path, or that was already entered at an equal or greater
// depth, ends that path, so loops terminate.
//
// # Concurrency
//
// All functions are synchronous and keep no global state. A Blocks value is
// never mutated by the analyzer and may be shared between goroutines.
package bytecode
