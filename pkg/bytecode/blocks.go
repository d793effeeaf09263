package bytecode

import "fmt"

// Block is a run of instructions that is only entered at the top.
type Block struct {
	Label *Label // nil for the entry block
	Ops   []*Op
	Next  *Block // fall-through successor, nil for the last block

	index int
}

// String describes the block for debugging.
func (blk *Block) String() string {
	if blk.Label == nil {
		return fmt.Sprintf("entry (%d ops)", len(blk.Ops))
	}
	return fmt.Sprintf("%s (%d ops)", blk.Label, len(blk.Ops))
}

// Blocks is a sequence split at its labels. Jump targets are found by
// looking up the block of the jump's label.
type Blocks struct {
	Entry *Block

	order   []*Block
	byLabel map[*Label]*Block
}

// Partition splits seq into blocks. A new block starts at every label and
// is linked as the fall-through successor of the block before it.
func Partition(seq []Element) *Blocks {
	entry := &Block{}
	b := &Blocks{
		Entry:   entry,
		order:   []*Block{entry},
		byLabel: make(map[*Label]*Block),
	}

	current := entry
	for _, el := range seq {
		switch el := el.(type) {
		case *Label:
			next := &Block{Label: el, index: len(b.order)}
			b.order = append(b.order, next)
			b.byLabel[el] = next
			current.Next = next
			current = next
		case *Op:
			if el != nil {
				current.Ops = append(current.Ops, el)
			}
		}
	}
	return b
}

// Lookup returns the block that starts at label. A nil label returns the
// entry block.
func (b *Blocks) Lookup(label *Label) (*Block, bool) {
	if label == nil {
		return b.Entry, true
	}
	blk, ok := b.byLabel[label]
	return blk, ok
}

// All returns the blocks in sequence order, starting with the entry block.
func (b *Blocks) All() []*Block {
	return append([]*Block(nil), b.order...)
}

// Len returns the number of blocks, including the entry block.
func (b *Blocks) Len() int { return len(b.order) }
