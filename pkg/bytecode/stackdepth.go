package bytecode

import (
	"math"

	"github.com/chazu/bcasm/pkg/isa"
)

// MaxStackDepth returns the largest operand-stack depth seq can reach when
// entered with an empty stack.
func MaxStackDepth(seq []Element, desc *isa.Descriptor) (int, error) {
	return Partition(seq).MaxStackDepth(desc)
}

// MaxStackDepth walks the block graph from the entry block. The per-block
// markers live in the walker, so b itself is left untouched.
func (b *Blocks) MaxStackDepth(desc *isa.Descriptor) (int, error) {
	w := &depthWalker{
		blocks:  b,
		desc:    desc,
		visited: make([]bool, len(b.order)),
		start:   make([]int, len(b.order)),
	}
	for i := range w.start {
		w.start[i] = math.MinInt
	}
	return w.walk(b.Entry, 0, 0)
}

type depthWalker struct {
	blocks *Blocks
	desc   *isa.Descriptor

	visited []bool // block is on the current path
	start   []int  // deepest depth the block was entered at
}

func (w *depthWalker) walk(blk *Block, depth, maxDepth int) (int, error) {
	if w.visited[blk.index] || w.start[blk.index] >= depth {
		return maxDepth, nil
	}
	w.visited[blk.index] = true
	w.start[blk.index] = depth

	traits := w.desc.Traits()
	fallsThrough := true

	for _, op := range blk.Ops {
		arg, _ := op.IntArg()
		effect, err := w.desc.StackEffect(op.Name, arg)
		if err != nil {
			return 0, err
		}
		depth += effect
		if depth > maxDepth {
			maxDepth = depth
		}

		opcode, err := w.desc.Opcode(op.Name)
		if err != nil {
			return 0, err
		}
		if w.desc.IsJump(opcode) {
			target := op.Target()
			if target == nil {
				return 0, &EncodingError{Index: -1, Op: op.String(), Kind: ErrExpectedLabel}
			}
			next, ok := w.blocks.Lookup(target)
			if !ok {
				return 0, &EncodingError{Index: -1, Op: op.String(), Kind: ErrForeignLabel}
			}

			targetDepth := depth
			if traits.Has(isa.TraitBlockSetup) {
				switch op.Name {
				case "FOR_ITER":
					targetDepth -= 2
				case "SETUP_FINALLY", "SETUP_EXCEPT":
					targetDepth += 3
					if targetDepth > maxDepth {
						maxDepth = targetDepth
					}
				}
			}
			if traits.Has(isa.TraitOrPop) {
				switch op.Name {
				case "JUMP_IF_TRUE_OR_POP", "JUMP_IF_FALSE_OR_POP":
					depth--
				}
			}

			maxDepth, err = w.walk(next, targetDepth, maxDepth)
			if err != nil {
				return 0, err
			}
		}

		if w.desc.IsUnconditional(op.Name) {
			fallsThrough = false
			break
		}
	}

	if fallsThrough && blk.Next != nil {
		var err error
		maxDepth, err = w.walk(blk.Next, depth, maxDepth)
		if err != nil {
			return 0, err
		}
	}

	w.visited[blk.index] = false
	return maxDepth, nil
}
