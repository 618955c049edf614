package cfg

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/jflow/pkg/frame"
	"github.com/chazu/jflow/pkg/instr"
)

// BasicBlock is a maximal straight-line run of instructions with a single
// entry. Only its last instruction may transfer control elsewhere.
type BasicBlock struct {
	entry        int
	instructions []*instr.Instruction
	vt           *instr.VariableTable

	once  sync.Once
	manip *BlockManipulation
	err   error
}

// Entry returns the index of the first instruction, which also identifies
// the block in its graph.
func (b *BasicBlock) Entry() int { return b.entry }

// Len returns the number of instructions.
func (b *BasicBlock) Len() int { return len(b.instructions) }

// Instructions returns the block's instructions in order.
func (b *BasicBlock) Instructions() []*instr.Instruction {
	return append([]*instr.Instruction(nil), b.instructions...)
}

// Terminal returns the last instruction.
func (b *BasicBlock) Terminal() *instr.Instruction {
	return b.instructions[len(b.instructions)-1]
}

// Contains reports whether the instruction index lies in the block.
func (b *BasicBlock) Contains(index int) bool {
	return index >= b.entry && index < b.entry+len(b.instructions)
}

// StartOffset returns the bytecode offset of the first instruction.
func (b *BasicBlock) StartOffset() int { return b.instructions[0].Offset }

// EndOffset returns the bytecode offset just past the last instruction.
func (b *BasicBlock) EndOffset() int {
	last := b.Terminal()
	n := last.Raw().Len
	if n == 0 {
		n = 1
	}
	return last.Offset + n
}

// Manipulation returns the block's internal transitions, computing them on
// first use.
func (b *BasicBlock) Manipulation() (*BlockManipulation, error) {
	b.once.Do(func() {
		b.manip, b.err = b.computeManipulation()
	})
	return b.manip, b.err
}

func (b *BasicBlock) computeManipulation() (*BlockManipulation, error) {
	steps := make([]*instr.Transition, 0, len(b.instructions)-1)
	for i := 0; i+1 < len(b.instructions); i++ {
		t, err := b.instructions[i].StackManipulation(b.vt, b.instructions[i+1])
		if err != nil {
			return nil, fmt.Errorf("cfg: block %d: %w", b.entry, err)
		}
		steps = append(steps, t)
	}
	return &BlockManipulation{entry: b.entry, steps: steps}, nil
}

func (b *BasicBlock) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("block %d [%d-%d):\n", b.entry, b.StartOffset(), b.EndOffset()))
	for _, in := range b.instructions {
		sb.WriteString(fmt.Sprintf("  %04X %s\n", in.Offset, in))
	}
	return sb.String()
}

// BlockManipulation is the ordered list of transitions between consecutive
// instructions of a block. A block of n instructions has n-1 of them; the
// transition out of the last instruction belongs to the graph edge.
//
// Whole-block application is not supported yet: the Apply methods return
// ErrBlockApplyUnsupported. Callers step through Transitions instead.
type BlockManipulation struct {
	entry int
	steps []*instr.Transition
}

// Transitions returns the internal transitions in execution order.
func (m *BlockManipulation) Transitions() []*instr.Transition {
	return append([]*instr.Transition(nil), m.steps...)
}

// Len returns the number of internal transitions.
func (m *BlockManipulation) Len() int { return len(m.steps) }

func (m *BlockManipulation) unsupported(what string) error {
	return fmt.Errorf("%w: %s on block %d", ErrBlockApplyUnsupported, what, m.entry)
}

func (m *BlockManipulation) Apply(frame.TypeStack) (frame.TypeStack, error) {
	return frame.TypeStack{}, m.unsupported("Apply")
}

func (m *BlockManipulation) ApplyBackwards(frame.TypeStack) (frame.TypeStack, error) {
	return frame.TypeStack{}, m.unsupported("ApplyBackwards")
}

func (m *BlockManipulation) ApplyLayout(frame.Layout) (frame.Layout, error) {
	return frame.Layout{}, m.unsupported("ApplyLayout")
}

func (m *BlockManipulation) ApplyLayoutBackwards(frame.Layout) (frame.Layout, error) {
	return frame.Layout{}, m.unsupported("ApplyLayoutBackwards")
}
