package instr

import (
	"fmt"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/frame"
)

// MethodExit is the successor of instructions that leave the method.
const MethodExit = -1

// State is the resolution state of an instruction. Jumps and switches start
// Unresolved because their destinations are offsets that only map to
// instruction indices once the whole method has been scanned.
type State uint8

const (
	Resolved State = iota
	Unresolved
)

func (s State) String() string {
	if s == Unresolved {
		return "unresolved"
	}
	return "resolved"
}

// Meta is the record every instruction carries.
type Meta struct {
	ClassName  string
	MethodName string
	Descriptor string // Method descriptor
	Line       int
	Index      int // Dense position in the method's instruction list
	Offset     int // Bytecode offset
	Opcode     bytecode.Opcode
	Label      string
}

// Instruction is a decoded instruction with its stack contract, variable
// effects and successors. Instructions are immutable; resolving a
// placeholder returns a new Instruction.
type Instruction struct {
	Meta
	kind  Kind
	state State
	raw   bytecode.RawInstruction

	// Successor indices, set on resolution.
	target int
	cases  []int
}

// New builds the instruction for raw at position meta.Index. Jumps and
// switches are returned as Unresolved placeholders.
func New(meta Meta, raw bytecode.RawInstruction) (*Instruction, error) {
	kind, err := KindOf(raw.Opcode)
	if err != nil {
		return nil, fmt.Errorf("offset %d: %w", raw.Offset, err)
	}
	if kind == KindSubroutine {
		return nil, fmt.Errorf("%w: %s at offset %d", ErrUnsupportedOpcode, raw.Opcode, raw.Offset)
	}
	if kind == KindSwitch && raw.Switch == nil {
		return nil, fmt.Errorf("%w: %s at offset %d without a table", bytecode.ErrBadSwitch, raw.Opcode, raw.Offset)
	}
	meta.Offset = raw.Offset
	meta.Opcode = raw.Opcode
	meta.Line = raw.Line
	if meta.Label == "" {
		meta.Label = raw.String()
	}

	in := &Instruction{Meta: meta, kind: kind, raw: raw}
	if capabilities[kind].placeholder {
		in.state = Unresolved
	}
	return in, nil
}

// Kind returns the variant tag.
func (in *Instruction) Kind() Kind { return in.kind }

// State reports whether the instruction still awaits its destinations.
func (in *Instruction) State() State { return in.state }

// Raw returns the decoded instruction the model was built from.
func (in *Instruction) Raw() bytecode.RawInstruction { return in.raw }

// IsPlaceholder reports whether the instruction is a jump or switch that
// needs SetDestination or SetDestinations before use.
func (in *Instruction) IsPlaceholder() bool { return in.state == Unresolved }

// EndsBlock reports whether the instruction transfers control somewhere
// other than the next instruction.
func (in *Instruction) EndsBlock() bool { return capabilities[in.kind].terminal }

// IsShapeGeneric reports whether the stack effect depends on the stack.
func (in *Instruction) IsShapeGeneric() bool { return in.kind == KindStack }

// Condition returns the branch condition of a conditional jump, "" otherwise.
func (in *Instruction) Condition() string {
	return comparisonsByOpcode[in.Opcode].condition
}

// TargetOffsets returns the bytecode offsets a jump or switch transfers to:
// the jump target, or the default followed by one offset per case.
func (in *Instruction) TargetOffsets() []int {
	switch in.kind {
	case KindConditionalJump, KindGoto:
		return []int{in.raw.Target}
	case KindSwitch:
		out := make([]int, 0, len(in.raw.Switch.Targets)+1)
		out = append(out, in.raw.Switch.Default)
		return append(out, in.raw.Switch.Targets...)
	}
	return nil
}

// SetDestination resolves a jump placeholder to the instruction at its
// target and returns the resolved jump.
func (in *Instruction) SetDestination(target *Instruction) (*Instruction, error) {
	if in.kind != KindConditionalJump && in.kind != KindGoto {
		return nil, fmt.Errorf("%w: SetDestination on %s", ErrNotBranch, in.Label)
	}
	if in.state != Unresolved {
		return nil, fmt.Errorf("%w: %s at index %d", ErrAlreadyResolved, in.Label, in.Index)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: nil destination for %s", bytecode.ErrContractViolation, in.Label)
	}
	out := *in
	out.state = Resolved
	out.target = target.Index
	return &out, nil
}

// SetDestinations resolves a switch placeholder. cases must hold one
// instruction per switch key, in key order.
func (in *Instruction) SetDestinations(def *Instruction, cases []*Instruction) (*Instruction, error) {
	if in.kind != KindSwitch {
		return nil, fmt.Errorf("%w: SetDestinations on %s", ErrNotBranch, in.Label)
	}
	if in.state != Unresolved {
		return nil, fmt.Errorf("%w: %s at index %d", ErrAlreadyResolved, in.Label, in.Index)
	}
	if len(cases) != len(in.raw.Switch.Keys) {
		return nil, fmt.Errorf("%w: %d destinations for %d keys", ErrCaseCount, len(cases), len(in.raw.Switch.Keys))
	}
	if def == nil {
		return nil, fmt.Errorf("%w: nil default for %s", bytecode.ErrContractViolation, in.Label)
	}
	out := *in
	out.state = Resolved
	out.target = def.Index
	out.cases = make([]int, len(cases))
	for i, c := range cases {
		if c == nil {
			return nil, fmt.Errorf("%w: nil destination for case %d", bytecode.ErrContractViolation, i)
		}
		out.cases[i] = c.Index
	}
	return &out, nil
}

// Successors returns the indices control may reach directly after this
// instruction, or MethodExit for returns and throws. Switches list the
// default first, then one entry per case; duplicates are kept.
func (in *Instruction) Successors() ([]int, error) {
	if in.state == Unresolved {
		return nil, fmt.Errorf("%w: %s at index %d", ErrUnresolvedPlaceholder, in.Label, in.Index)
	}
	return capabilities[in.kind].successors(in), nil
}

// ConsumedFromStack returns the sets popped, bottom first.
func (in *Instruction) ConsumedFromStack() ([]frame.TypeSet, error) {
	e, err := in.effect(nil)
	if err != nil {
		return nil, err
	}
	out := make([]frame.TypeSet, len(e.consumes))
	copy(out, e.consumes)
	return out, nil
}

// PushedToStack returns the set pushed, Void for none.
func (in *Instruction) PushedToStack() (frame.TypeSet, error) {
	e, err := in.effect(nil)
	if err != nil {
		return frame.Void, err
	}
	return e.pushes, nil
}

// ReadsVariables returns the local slots the instruction reads.
func (in *Instruction) ReadsVariables() []int {
	if f := capabilities[in.kind].reads; f != nil {
		return f(in)
	}
	return nil
}

// WritesVariables returns the local slots the instruction writes.
func (in *Instruction) WritesVariables() []int {
	if f := capabilities[in.kind].writes; f != nil {
		return f(in)
	}
	return nil
}

// WritesVariable reports whether slot is among WritesVariables.
func (in *Instruction) WritesVariable(slot int) bool {
	for _, s := range in.WritesVariables() {
		if s == slot {
			return true
		}
	}
	return false
}

// effect computes the static contract, refined by vt when non-nil.
func (in *Instruction) effect(vt *VariableTable) (effect, error) {
	c := capabilities[in.kind]
	if c.effect == nil {
		return effect{}, fmt.Errorf("%w: %s", ErrStackDependent, in.Label)
	}
	return c.effect(in, vt)
}

// StackManipulation returns the transfer function from this instruction to
// next, which must be one of its successors. A nil next stands for
// MethodExit.
func (in *Instruction) StackManipulation(vt *VariableTable, next *Instruction) (*Transition, error) {
	succ, err := in.Successors()
	if err != nil {
		return nil, err
	}
	to := MethodExit
	if next != nil {
		to = next.Index
	}
	found := false
	for _, s := range succ {
		if s == to {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %d after %s at index %d", ErrNotSuccessor, to, in.Label, in.Index)
	}

	t := &Transition{From: in.Index, To: to}
	if in.kind == KindStack {
		t.Manipulation = shapes[in.Opcode]
		return t, nil
	}
	e, err := in.effect(vt)
	if err != nil {
		return nil, err
	}
	t.Manipulation = frame.NewStatic(e.consumes, e.pushes)
	return t, nil
}

// String renders the instruction as "index: label".
func (in *Instruction) String() string {
	return fmt.Sprintf("%d: %s", in.Index, in.Label)
}
