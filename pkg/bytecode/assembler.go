package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUndefinedLabel is returned by Assembler.Bytes when a branch refers to a
// label that was never bound.
var ErrUndefinedLabel = errors.New("undefined label")

// fixup records a branch operand to patch once its label is bound.
type fixup struct {
	at    int    // Position of the operand in the code array
	from  int    // Offset of the branching opcode (JVM offsets are relative to it)
	label string // Target label
	wide  bool   // 32-bit operand (goto_w, switches)
}

// Assembler emits JVM code arrays with symbolic branch targets.
// Branches are emitted with placeholder operands and patched in Bytes once
// every label is known, so forward references need no special handling.
type Assembler struct {
	code   []byte
	labels map[string]int
	fixups []fixup
	lines  []LineNumber
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		code:   make([]byte, 0, 64),
		labels: make(map[string]int),
	}
}

// CurrentOffset returns the offset the next instruction will be emitted at.
func (a *Assembler) CurrentOffset() int {
	return len(a.code)
}

// Label binds name to the current offset.
func (a *Assembler) Label(name string) {
	a.labels[name] = len(a.code)
}

// Line records that instructions emitted from here on belong to a source line.
func (a *Assembler) Line(line int) {
	a.lines = append(a.lines, LineNumber{StartPC: len(a.code), Line: line})
}

// LineNumbers returns the recorded line table.
func (a *Assembler) LineNumbers() []LineNumber {
	return a.lines
}

// Emit writes a single opcode and returns its offset.
func (a *Assembler) Emit(op Opcode) int {
	offset := len(a.code)
	a.code = append(a.code, byte(op))
	return offset
}

// EmitWithOperand writes an opcode followed by raw operand bytes.
func (a *Assembler) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := a.Emit(op)
	a.code = append(a.code, operands...)
	return offset
}

// EmitU16 writes an opcode with a 16-bit operand (constant pool index, sipush).
func (a *Assembler) EmitU16(op Opcode, v uint16) int {
	offset := a.Emit(op)
	a.code = binary.BigEndian.AppendUint16(a.code, v)
	return offset
}

// EmitLocal writes a load, store or ret with an explicit slot, using the
// wide prefix when the slot does not fit in a byte.
func (a *Assembler) EmitLocal(op Opcode, slot int) int {
	if slot > math.MaxUint8 {
		offset := a.Emit(OpWide)
		a.Emit(op)
		a.code = binary.BigEndian.AppendUint16(a.code, uint16(slot))
		return offset
	}
	return a.EmitWithOperand(op, byte(slot))
}

// EmitIinc writes an iinc, widened when slot or delta need it.
func (a *Assembler) EmitIinc(slot, delta int) int {
	if slot > math.MaxUint8 || delta < math.MinInt8 || delta > math.MaxInt8 {
		offset := a.Emit(OpWide)
		a.Emit(OpIinc)
		a.code = binary.BigEndian.AppendUint16(a.code, uint16(slot))
		a.code = binary.BigEndian.AppendUint16(a.code, uint16(int16(delta)))
		return offset
	}
	return a.EmitWithOperand(OpIinc, byte(slot), byte(int8(delta)))
}

// EmitJump writes a branch to label. The operand is patched by Bytes.
func (a *Assembler) EmitJump(op Opcode, label string) int {
	offset := a.Emit(op)
	wide := op == OpGotoW || op == OpJsrW
	a.fixups = append(a.fixups, fixup{at: len(a.code), from: offset, label: label, wide: wide})
	if wide {
		a.code = append(a.code, 0xFF, 0xFF, 0xFF, 0xFF) // Placeholder
	} else {
		a.code = append(a.code, 0xFF, 0xFF) // Placeholder
	}
	return offset
}

// pad aligns the next operand of a switch opcode at offset to 4 bytes.
func (a *Assembler) pad(offset int) {
	for i := 0; i < switchPadding(offset); i++ {
		a.code = append(a.code, 0)
	}
}

func (a *Assembler) emitSwitchTarget(from int, label string) {
	a.fixups = append(a.fixups, fixup{at: len(a.code), from: from, label: label, wide: true})
	a.code = append(a.code, 0xFF, 0xFF, 0xFF, 0xFF)
}

// EmitTableSwitch writes a tableswitch whose keys run from low upward, one per
// case label.
func (a *Assembler) EmitTableSwitch(low int32, defaultLabel string, caseLabels ...string) int {
	offset := a.Emit(OpTableswitch)
	a.pad(offset)
	a.emitSwitchTarget(offset, defaultLabel)
	high := low + int32(len(caseLabels)) - 1
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(low))
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(high))
	for _, l := range caseLabels {
		a.emitSwitchTarget(offset, l)
	}
	return offset
}

// EmitLookupSwitch writes a lookupswitch. keys and caseLabels are parallel.
func (a *Assembler) EmitLookupSwitch(defaultLabel string, keys []int32, caseLabels []string) int {
	offset := a.Emit(OpLookupswitch)
	a.pad(offset)
	a.emitSwitchTarget(offset, defaultLabel)
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(len(keys)))
	for i, k := range keys {
		a.code = binary.BigEndian.AppendUint32(a.code, uint32(k))
		a.emitSwitchTarget(offset, caseLabels[i])
	}
	return offset
}

// Bytes patches every branch and returns the finished code array.
func (a *Assembler) Bytes() ([]byte, error) {
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("%w %q (branch at offset %d)", ErrUndefinedLabel, f.label, f.from)
		}
		delta := target - f.from
		if f.wide {
			binary.BigEndian.PutUint32(a.code[f.at:], uint32(int32(delta)))
			continue
		}
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return nil, fmt.Errorf("branch at offset %d to %q out of 16-bit range (%d)", f.from, f.label, delta)
		}
		binary.BigEndian.PutUint16(a.code[f.at:], uint16(int16(delta)))
	}
	out := make([]byte, len(a.code))
	copy(out, a.code)
	return out, nil
}
