package cfg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/instr"
)

// Edge is a control transfer from the block entered at From to the block
// entered at To, or to instr.MethodExit. Transition is the stack effect of
// the source block's last instruction along this edge.
type Edge struct {
	From       int
	To         int
	Transition *instr.Transition
}

// Graph is the control-flow graph of one method. Blocks are identified by
// the index of their first instruction. Loops are allowed.
type Graph struct {
	method       *bytecode.Method
	instructions []*instr.Instruction
	vt           *instr.VariableTable

	blocks   []*BasicBlock       // Offset order
	byEntry  map[int]*BasicBlock // Entry index -> block
	blockOf  []int               // Instruction index -> position in blocks
	edges    map[int][]Edge      // Entry -> outgoing edges
	preds    map[int][]int       // Entry (or MethodExit) -> predecessor entries
	handlers []int               // Handler entry indices, exception table order
}

// Method returns the analysed method.
func (g *Graph) Method() *bytecode.Method { return g.method }

// Instructions returns the resolved instruction list.
func (g *Graph) Instructions() []*instr.Instruction {
	return append([]*instr.Instruction(nil), g.instructions...)
}

// VariableTable returns the table built for the method.
func (g *Graph) VariableTable() *instr.VariableTable { return g.vt }

// Blocks returns every block in offset order.
func (g *Graph) Blocks() []*BasicBlock {
	return append([]*BasicBlock(nil), g.blocks...)
}

// Entry returns the block holding instruction 0.
func (g *Graph) Entry() *BasicBlock { return g.blocks[0] }

// Block returns the block entered at index.
func (g *Graph) Block(entry int) (*BasicBlock, bool) {
	b, ok := g.byEntry[entry]
	return b, ok
}

// BlockOf returns the block containing the instruction at index.
func (g *Graph) BlockOf(index int) (*BasicBlock, error) {
	if index < 0 || index >= len(g.blockOf) {
		return nil, fmt.Errorf("%w: instruction %d", ErrNoBlock, index)
	}
	return g.blocks[g.blockOf[index]], nil
}

func (g *Graph) lookup(entry int) error {
	if _, ok := g.byEntry[entry]; !ok {
		return fmt.Errorf("%w: no block entered at %d", ErrNoBlock, entry)
	}
	return nil
}

// Successors returns the distinct successor entries of a block in the order
// its last instruction lists them. instr.MethodExit stands for leaving the
// method.
func (g *Graph) Successors(entry int) ([]int, error) {
	if err := g.lookup(entry); err != nil {
		return nil, err
	}
	var out []int
	seen := make(map[int]bool)
	for _, e := range g.edges[entry] {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out, nil
}

// Predecessors returns the entries of the blocks with an edge into entry,
// ascending. entry may be instr.MethodExit.
func (g *Graph) Predecessors(entry int) ([]int, error) {
	if entry != instr.MethodExit {
		if err := g.lookup(entry); err != nil {
			return nil, err
		}
	}
	return append([]int(nil), g.preds[entry]...), nil
}

// OutEdges returns the edges leaving a block, one per successor of its last
// instruction, duplicates included.
func (g *Graph) OutEdges(entry int) ([]Edge, error) {
	if err := g.lookup(entry); err != nil {
		return nil, err
	}
	return append([]Edge(nil), g.edges[entry]...), nil
}

// Edges returns every edge, grouped by source block in offset order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, b := range g.blocks {
		out = append(out, g.edges[b.entry]...)
	}
	return out
}

// HandlerEntries returns the block entries of the exception handlers.
func (g *Graph) HandlerEntries() []int {
	return append([]int(nil), g.handlers...)
}

// Reachable returns the entries reachable from a block along normal
// control-flow edges, the block itself included, ascending.
func (g *Graph) Reachable(from int) ([]int, error) {
	if err := g.lookup(from); err != nil {
		return nil, err
	}
	seen := g.walk([]int{from}, false)
	return sortedKeys(seen), nil
}

// ReachableFromEntry returns the entries reachable from the method entry.
// A handler counts as reachable when its protected range overlaps a
// reachable block.
func (g *Graph) ReachableFromEntry() []int {
	return sortedKeys(g.walk([]int{0}, true))
}

// Unreachable returns the entries ReachableFromEntry does not reach.
func (g *Graph) Unreachable() []int {
	seen := g.walk([]int{0}, true)
	var out []int
	for _, b := range g.blocks {
		if !seen[b.entry] {
			out = append(out, b.entry)
		}
	}
	return out
}

// walk is a worklist traversal from roots. With handlers set, exception
// handlers protecting a reached block are added as roots.
func (g *Graph) walk(roots []int, handlers bool) map[int]bool {
	seen := make(map[int]bool)
	work := append([]int(nil), roots...)
	for {
		for len(work) > 0 {
			entry := work[len(work)-1]
			work = work[:len(work)-1]
			if seen[entry] {
				continue
			}
			seen[entry] = true
			for _, e := range g.edges[entry] {
				if e.To != instr.MethodExit && !seen[e.To] {
					work = append(work, e.To)
				}
			}
		}
		if !handlers {
			return seen
		}
		for i, h := range g.method.ExceptionTable {
			entry := g.handlers[i]
			if !seen[entry] && g.protects(h, seen) {
				work = append(work, entry)
			}
		}
		if len(work) == 0 {
			return seen
		}
	}
}

// protects reports whether a handler's range overlaps any block in seen.
func (g *Graph) protects(h bytecode.ExceptionHandler, seen map[int]bool) bool {
	for entry := range seen {
		b := g.byEntry[entry]
		if b.StartOffset() < h.EndPC && h.StartPC < b.EndOffset() {
			return true
		}
	}
	return false
}

// InstructionCount returns the number of instructions in the method.
func (g *Graph) InstructionCount() int { return len(g.instructions) }

// String renders every block followed by its successors.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, b := range g.blocks {
		sb.WriteString(b.String())
		succ, _ := g.Successors(b.entry)
		parts := make([]string, len(succ))
		for i, s := range succ {
			if s == instr.MethodExit {
				parts[i] = "exit"
			} else {
				parts[i] = fmt.Sprint(s)
			}
		}
		sb.WriteString("  -> " + strings.Join(parts, ", ") + "\n")
	}
	return sb.String()
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
