package cfg

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/instr"
)

var log = commonlog.GetLogger("jflow.cfg")

// Build errors.
var (
	ErrEmptyMethod    = fmt.Errorf("%w: method has no instructions", bytecode.ErrMalformed)
	ErrDanglingOffset = fmt.Errorf("%w: offset does not start an instruction", bytecode.ErrMalformed)
	ErrFallsOffEnd    = fmt.Errorf("%w: control falls off the end of the code", bytecode.ErrMalformed)

	ErrNoBlock               = fmt.Errorf("%w: no such block", bytecode.ErrContractViolation)
	ErrBlockApplyUnsupported = fmt.Errorf("%w: whole-block stack application", bytecode.ErrUnsupported)
)

// Option configures Build.
type Option func(*options)

type options struct {
	eager bool
}

// WithEagerStack computes every block's manipulation during Build, so stack
// errors surface there instead of on first use.
func WithEagerStack(eager bool) Option {
	return func(o *options) { o.eager = eager }
}

// builder holds the state of one Build call.
type builder struct {
	m       *bytecode.Method
	vt      *instr.VariableTable
	arena   []*instr.Instruction
	offsets map[int]int // Bytecode offset -> instruction index
}

// Build constructs the control-flow graph of m.
//
// A first pass creates one instruction per raw instruction, with jumps and
// switches as placeholders. The second pass resolves every placeholder
// against the offset map, then partitions the instructions into blocks at
// branch targets, handler entries and after every branching or returning
// instruction. Stores are recorded in the variable table once the block
// entries are known.
func Build(m *bytecode.Method, opts ...Option) (*Graph, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if m.DecodeErr != nil {
		return nil, fmt.Errorf("cfg: %s: %w", m.Key(), m.DecodeErr)
	}
	if len(m.Instructions) == 0 {
		return nil, fmt.Errorf("cfg: %s: %w", m.Key(), ErrEmptyMethod)
	}

	vt, err := instr.NewVariableTableFor(m)
	if err != nil {
		return nil, fmt.Errorf("cfg: %w", err)
	}
	b := &builder{
		m:       m,
		vt:      vt,
		arena:   make([]*instr.Instruction, len(m.Instructions)),
		offsets: make(map[int]int, len(m.Instructions)),
	}

	if err := b.scan(); err != nil {
		return nil, fmt.Errorf("cfg: %s: %w", m.Key(), err)
	}
	handlers, err := b.handlerEntries()
	if err != nil {
		return nil, fmt.Errorf("cfg: %s: %w", m.Key(), err)
	}
	targets, err := b.resolve()
	if err != nil {
		return nil, fmt.Errorf("cfg: %s: %w", m.Key(), err)
	}
	if err := b.checkSuccessors(); err != nil {
		return nil, fmt.Errorf("cfg: %s: %w", m.Key(), err)
	}

	g := b.partition(append(targets, handlers...))
	g.handlers = handlers
	b.recordStores(g)
	if err := b.connect(g); err != nil {
		return nil, fmt.Errorf("cfg: %s: %w", m.Key(), err)
	}

	if o.eager {
		for _, blk := range g.blocks {
			if _, err := blk.Manipulation(); err != nil {
				return nil, err
			}
		}
	}

	log.Debugf("%s: %d instructions, %d blocks, %d handlers",
		m.Key(), len(b.arena), len(g.blocks), len(handlers))
	return g, nil
}

// scan is the first pass.
func (b *builder) scan() error {
	for i, raw := range b.m.Instructions {
		if _, dup := b.offsets[raw.Offset]; dup {
			return fmt.Errorf("%w: two instructions at offset %d", bytecode.ErrMalformed, raw.Offset)
		}
		in, err := instr.New(instr.Meta{
			ClassName:  b.m.ClassName,
			MethodName: b.m.Name,
			Descriptor: b.m.Descriptor,
			Index:      i,
		}, raw)
		if err != nil {
			return err
		}
		b.arena[i] = in
		b.offsets[raw.Offset] = i
	}
	return nil
}

// recordStores types the slot of every store. A store inside a block takes
// the type pushed by the instruction before it; a store at a block entry can
// be reached from several producers and records the full store type.
func (b *builder) recordStores(g *Graph) {
	for i, in := range b.arena {
		var prev *instr.Instruction
		if _, entry := g.byEntry[i]; !entry {
			prev = b.arena[i-1]
		}
		if t, ok := in.StoredTypeAfter(prev); ok {
			b.vt.Assign(in.Raw().Slot, t, in.Offset)
		}
	}
}

func (b *builder) index(offset int) (int, error) {
	i, ok := b.offsets[offset]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrDanglingOffset, offset)
	}
	return i, nil
}

// codeLength is the offset just past the last instruction.
func (b *builder) codeLength() int {
	last := b.m.Instructions[len(b.m.Instructions)-1]
	n := last.Len
	if n == 0 {
		n = 1
	}
	return last.Offset + n
}

// handlerEntries maps every exception handler to its instruction index and
// validates the protected range.
func (b *builder) handlerEntries() ([]int, error) {
	out := make([]int, 0, len(b.m.ExceptionTable))
	end := b.codeLength()
	for _, h := range b.m.ExceptionTable {
		if _, err := b.index(h.StartPC); err != nil {
			return nil, fmt.Errorf("handler start: %w", err)
		}
		if h.EndPC != end {
			if _, err := b.index(h.EndPC); err != nil {
				return nil, fmt.Errorf("handler end: %w", err)
			}
		}
		if h.EndPC <= h.StartPC {
			return nil, fmt.Errorf("%w: empty handler range %d-%d", bytecode.ErrMalformed, h.StartPC, h.EndPC)
		}
		i, err := b.index(h.HandlerPC)
		if err != nil {
			return nil, fmt.Errorf("handler: %w", err)
		}
		out = append(out, i)
	}
	return out, nil
}

// resolve replaces every placeholder by its resolved instruction and returns
// the target indices.
func (b *builder) resolve() ([]int, error) {
	var targets []int
	for i, in := range b.arena {
		if !in.IsPlaceholder() {
			continue
		}
		offs := in.TargetOffsets()
		dest := make([]*instr.Instruction, len(offs))
		for j, off := range offs {
			t, err := b.index(off)
			if err != nil {
				return nil, fmt.Errorf("%s at offset %d: %w", in.Opcode, in.Offset, err)
			}
			dest[j] = b.arena[t]
			targets = append(targets, t)
		}

		var resolved *instr.Instruction
		var err error
		if in.Kind() == instr.KindSwitch {
			resolved, err = in.SetDestinations(dest[0], dest[1:])
		} else {
			resolved, err = in.SetDestination(dest[0])
		}
		if err != nil {
			return nil, err
		}
		b.arena[i] = resolved
	}
	return targets, nil
}

// checkSuccessors verifies that every successor is an instruction or the
// method exit.
func (b *builder) checkSuccessors() error {
	for _, in := range b.arena {
		succ, err := in.Successors()
		if err != nil {
			return err
		}
		for _, s := range succ {
			if s != instr.MethodExit && (s < 0 || s >= len(b.arena)) {
				return fmt.Errorf("%w: after %s at offset %d", ErrFallsOffEnd, in.Opcode, in.Offset)
			}
		}
	}
	return nil
}

// partition splits the arena into blocks at the leaders.
func (b *builder) partition(targets []int) *Graph {
	leaders := map[int]bool{0: true}
	for _, t := range targets {
		leaders[t] = true
	}
	for i, in := range b.arena {
		if in.EndsBlock() && i+1 < len(b.arena) {
			leaders[i+1] = true
		}
	}
	starts := sortedKeys(leaders)

	g := &Graph{
		method:       b.m,
		instructions: b.arena,
		vt:           b.vt,
		byEntry:      make(map[int]*BasicBlock, len(starts)),
		blockOf:      make([]int, len(b.arena)),
		edges:        make(map[int][]Edge, len(starts)),
		preds:        make(map[int][]int),
	}
	for k, start := range starts {
		end := len(b.arena)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		blk := &BasicBlock{entry: start, instructions: b.arena[start:end:end], vt: b.vt}
		g.blocks = append(g.blocks, blk)
		g.byEntry[start] = blk
		for i := start; i < end; i++ {
			g.blockOf[i] = k
		}
	}
	return g
}

// connect adds one edge per successor of each block's last instruction.
func (b *builder) connect(g *Graph) error {
	for _, blk := range g.blocks {
		last := blk.Terminal()
		succ, err := last.Successors()
		if err != nil {
			return err
		}
		seen := make(map[int]bool)
		for _, s := range succ {
			var next *instr.Instruction
			if s != instr.MethodExit {
				next = b.arena[s]
			}
			t, err := last.StackManipulation(b.vt, next)
			if err != nil {
				return err
			}
			g.edges[blk.entry] = append(g.edges[blk.entry], Edge{From: blk.entry, To: s, Transition: t})
			if !seen[s] {
				seen[s] = true
				g.preds[s] = append(g.preds[s], blk.entry)
			}
		}
	}
	return nil
}
