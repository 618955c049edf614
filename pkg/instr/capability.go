package instr

import (
	"fmt"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/frame"
)

// capability is the behaviour shared by every instruction of one Kind.
type capability struct {
	placeholder bool // Created Unresolved, needs SetDestination(s)
	terminal    bool // Ends a basic block

	// effect computes the stack contract; nil for shape-generic kinds.
	effect     func(in *Instruction, vt *VariableTable) (effect, error)
	successors func(in *Instruction) []int
	reads      func(in *Instruction) []int
	writes     func(in *Instruction) []int
}

var capabilities [numKinds]capability

func init() {
	plain := capability{effect: staticEffect, successors: fallThrough}

	capabilities = [numKinds]capability{
		KindNop:        plain,
		KindConstant:   {effect: constantEffect, successors: fallThrough},
		KindLoad:       {effect: loadEffect, successors: fallThrough, reads: localSlots},
		KindStore:      {effect: storeEffect, successors: fallThrough, writes: localSlots},
		KindArrayLoad:  plain,
		KindArrayStore: plain,
		KindStack:      {successors: fallThrough},
		KindArithmetic: plain,
		KindUnary:      plain,
		KindIncrement:  {effect: staticEffect, successors: fallThrough, reads: localSlots, writes: localSlots},
		KindConversion: plain,
		KindCompare:    plain,
		KindConditionalJump: {
			placeholder: true, terminal: true,
			effect: staticEffect, successors: conditionalSuccessors,
		},
		KindGoto: {
			placeholder: true, terminal: true,
			effect: staticEffect, successors: jumpSuccessors,
		},
		KindSwitch: {
			placeholder: true, terminal: true,
			effect: staticEffect, successors: switchSuccessors,
		},
		KindReturn:     {terminal: true, effect: staticEffect, successors: exitSuccessors},
		KindThrow:      {terminal: true, effect: staticEffect, successors: exitSuccessors},
		KindField:      {effect: fieldEffect, successors: fallThrough},
		KindInvoke:     {effect: invokeEffect, successors: fallThrough},
		KindObject:     {effect: objectEffect, successors: fallThrough},
		KindMonitor:    plain,
		KindSubroutine: {effect: unsupportedEffect, successors: exitSuccessors},
	}
}

func fallThrough(in *Instruction) []int { return []int{in.Index + 1} }

func conditionalSuccessors(in *Instruction) []int { return []int{in.Index + 1, in.target} }

func jumpSuccessors(in *Instruction) []int { return []int{in.target} }

func switchSuccessors(in *Instruction) []int {
	out := make([]int, 0, len(in.cases)+1)
	out = append(out, in.target)
	return append(out, in.cases...)
}

func exitSuccessors(*Instruction) []int { return []int{MethodExit} }

// localSlots returns the slot an instruction touches, plus the upper half
// for long and double values.
func localSlots(in *Instruction) []int {
	slot := in.raw.Slot
	if localWidth(in.Opcode) == 2 {
		return []int{slot, slot + 1}
	}
	return []int{slot}
}

func localWidth(op bytecode.Opcode) int {
	switch baseLoadStore(op) {
	case bytecode.OpLload, bytecode.OpDload, bytecode.OpLstore, bytecode.OpDstore:
		return 2
	}
	return 1
}

func staticEffect(in *Instruction, _ *VariableTable) (effect, error) {
	e, ok := effects[in.Opcode]
	if !ok {
		return effect{}, fmt.Errorf("%w: %s", ErrUnsupportedOpcode, in.Opcode)
	}
	return e, nil
}

func unsupportedEffect(in *Instruction, _ *VariableTable) (effect, error) {
	return effect{}, fmt.Errorf("%w: %s", ErrUnsupportedOpcode, in.Opcode)
}

func constantEffect(in *Instruction, vt *VariableTable) (effect, error) {
	switch in.Opcode {
	case bytecode.OpLdc, bytecode.OpLdcW, bytecode.OpLdc2W:
	default:
		return staticEffect(in, vt)
	}
	if in.raw.Constant == "" {
		return effect{pushes: ldcDefault(in.Opcode)}, nil
	}
	t, err := frame.FromDescriptor(in.raw.Constant)
	if err != nil {
		return effect{}, fmt.Errorf("%s at offset %d: %w", in.Opcode, in.Offset, err)
	}
	if wide := in.Opcode == bytecode.OpLdc2W; wide != t.IsCategory2() {
		return effect{}, fmt.Errorf("%w: %s of %s at offset %d", bytecode.ErrMalformed, in.Opcode, in.raw.Constant, in.Offset)
	}
	return effect{pushes: t}, nil
}

// loadEffect pushes the slot's recorded type when it is compatible with the
// load, and the load's default type otherwise.
func loadEffect(in *Instruction, vt *VariableTable) (effect, error) {
	base := baseLoadStore(in.Opcode)
	e := effect{pushes: loadDefault[base]}
	if vt == nil {
		return e, nil
	}
	if err := vt.checkSlot(in.raw.Slot, localWidth(in.Opcode)); err != nil {
		return effect{}, fmt.Errorf("%s at offset %d: %w", in.Opcode, in.Offset, err)
	}
	if t, ok := vt.TypeAt(in.raw.Slot, in.Offset); ok && t.Intersects(loadFamily[base]) {
		e.pushes = t.Intersect(loadFamily[base])
	}
	return e, nil
}

func storeEffect(in *Instruction, vt *VariableTable) (effect, error) {
	if vt != nil {
		if err := vt.checkSlot(in.raw.Slot, localWidth(in.Opcode)); err != nil {
			return effect{}, fmt.Errorf("%s at offset %d: %w", in.Opcode, in.Offset, err)
		}
	}
	return effect{consumes: pops(storeType[baseLoadStore(in.Opcode)])}, nil
}

// StoredType returns the set a store instruction records for its slot.
func (in *Instruction) StoredType() (frame.TypeSet, bool) {
	if in.kind != KindStore {
		return frame.Void, false
	}
	return storeType[baseLoadStore(in.Opcode)], true
}

// StoredTypeAfter is StoredType narrowed to what prev pushes, when prev is
// the only way into the store and has a fixed effect. ICONST_0 followed by
// ISTORE records INT rather than the whole two's-complement category.
func (in *Instruction) StoredTypeAfter(prev *Instruction) (frame.TypeSet, bool) {
	t, ok := in.StoredType()
	if !ok || prev == nil || prev.EndsBlock() {
		return t, ok
	}
	pushed, err := prev.PushedToStack()
	if err != nil || pushed.IsVoid() || !t.Contains(pushed) {
		return t, ok
	}
	return pushed, true
}

func memberDescriptor(in *Instruction) (string, error) {
	if in.raw.Member == nil || in.raw.Member.Descriptor == "" {
		return "", fmt.Errorf("%w: %s at offset %d", ErrMissingDescriptor, in.Opcode, in.Offset)
	}
	return in.raw.Member.Descriptor, nil
}

func fieldEffect(in *Instruction, _ *VariableTable) (effect, error) {
	desc, err := memberDescriptor(in)
	if err != nil {
		return effect{}, err
	}
	t, err := frame.FromDescriptor(desc)
	if err != nil {
		return effect{}, fmt.Errorf("%s at offset %d: %w", in.Opcode, in.Offset, err)
	}
	switch in.Opcode {
	case bytecode.OpGetstatic:
		return effect{pushes: t}, nil
	case bytecode.OpPutstatic:
		return effect{consumes: pops(t)}, nil
	case bytecode.OpGetfield:
		return effect{consumes: pops(ref), pushes: t}, nil
	default:
		return effect{consumes: pops(ref, t)}, nil
	}
}

func invokeEffect(in *Instruction, _ *VariableTable) (effect, error) {
	desc, err := memberDescriptor(in)
	if err != nil {
		return effect{}, err
	}
	params, ret, err := frame.ParseMethodDescriptor(desc)
	if err != nil {
		return effect{}, fmt.Errorf("%s at offset %d: %w", in.Opcode, in.Offset, err)
	}
	var consumes []frame.TypeSet
	if in.Opcode != bytecode.OpInvokestatic && in.Opcode != bytecode.OpInvokedynamic {
		consumes = append(consumes, ref)
	}
	consumes = append(consumes, params...)
	return effect{consumes: consumes, pushes: ret}, nil
}

func objectEffect(in *Instruction, vt *VariableTable) (effect, error) {
	if in.Opcode != bytecode.OpMultianewarray {
		return staticEffect(in, vt)
	}
	dims := make([]frame.TypeSet, in.raw.Dims)
	for i := range dims {
		dims[i] = tc
	}
	return effect{consumes: dims, pushes: ref}, nil
}
