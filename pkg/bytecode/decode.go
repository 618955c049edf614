package bytecode

import (
	"encoding/binary"
	"fmt"
)

// ConstantResolver resolves constant pool indices referenced by instructions.
// The class-file reader implements it; Decode accepts nil and leaves the
// resolved fields empty.
type ConstantResolver interface {
	// Member resolves a Fieldref, Methodref, InterfaceMethodref or
	// InvokeDynamic entry.
	Member(index uint16) (MemberRef, error)
	// Class resolves a Class entry to its internal name.
	Class(index uint16) (string, error)
	// ConstantDescriptor returns the field descriptor of a loadable constant.
	ConstantDescriptor(index uint16) (string, error)
}

// codeReader is a bounds-checked big-endian cursor over a code array.
type codeReader struct {
	code []byte
	pos  int
}

func (r *codeReader) need(n int) error {
	if r.pos+n > len(r.code) {
		return fmt.Errorf("%w at offset %d: need %d bytes, have %d", ErrTruncated, r.pos, n, len(r.code)-r.pos)
	}
	return nil
}

func (r *codeReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.code[r.pos]
	r.pos++
	return v, nil
}

func (r *codeReader) i8() (int8, error) {
	v, err := r.u8()
	return int8(v), err
}

func (r *codeReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.code[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *codeReader) i16() (int16, error) {
	v, err := r.u16()
	return int16(v), err
}

func (r *codeReader) i32() (int32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.code[r.pos:])
	r.pos += 4
	return int32(v), nil
}

// Decode splits a Code attribute's byte array into instructions.
// Branch and switch targets are converted to absolute offsets. When pool is
// non-nil, member, class and constant references are resolved through it.
func Decode(code []byte, pool ConstantResolver) ([]RawInstruction, error) {
	r := &codeReader{code: code}
	var insns []RawInstruction

	for r.pos < len(code) {
		insn, err := decodeOne(r, pool)
		if err != nil {
			return nil, err
		}
		insns = append(insns, insn)
	}
	return insns, nil
}

// decodeOne decodes the instruction at the reader's position.
func decodeOne(r *codeReader, pool ConstantResolver) (RawInstruction, error) {
	start := r.pos
	b, err := r.u8()
	if err != nil {
		return RawInstruction{}, err
	}
	insn := RawInstruction{Offset: start, Opcode: Opcode(b)}
	if !insn.Opcode.IsDefined() {
		return insn, fmt.Errorf("%w 0x%02X at offset %d", ErrUnknownOpcode, b, start)
	}

	if insn.Opcode == OpWide {
		if err := decodeWide(r, &insn); err != nil {
			return insn, err
		}
		insn.Len = r.pos - start
		return insn, nil
	}

	if err := decodeOperands(r, &insn, pool); err != nil {
		return insn, err
	}
	insn.Len = r.pos - start
	return insn, nil
}

// decodeWide handles the wide prefix: 16-bit slots and a 16-bit iinc delta.
func decodeWide(r *codeReader, insn *RawInstruction) error {
	b, err := r.u8()
	if err != nil {
		return err
	}
	op := Opcode(b)
	if !op.IsWidenable() {
		return fmt.Errorf("%w: %s at offset %d", ErrBadWide, op, insn.Offset)
	}
	insn.Opcode = op
	insn.Wide = true

	slot, err := r.u16()
	if err != nil {
		return err
	}
	insn.Slot = int(slot)
	if op == OpIinc {
		delta, err := r.i16()
		if err != nil {
			return err
		}
		insn.Value = int32(delta)
	}
	return nil
}

func decodeOperands(r *codeReader, insn *RawInstruction, pool ConstantResolver) error {
	op := insn.Opcode
	switch {
	case op >= OpIload0 && op <= OpAload3:
		insn.Slot = int(op-OpIload0) % 4
		return nil
	case op >= OpIstore0 && op <= OpAstore3:
		insn.Slot = int(op-OpIstore0) % 4
		return nil
	}

	switch op.Group() {
	case GroupLocal:
		slot, err := r.u8()
		if err != nil {
			return err
		}
		insn.Slot = int(slot)
		if op == OpIinc {
			delta, err := r.i8()
			if err != nil {
				return err
			}
			insn.Value = int32(delta)
		}

	case GroupConstant:
		switch op {
		case OpBipush:
			v, err := r.i8()
			if err != nil {
				return err
			}
			insn.Value = int32(v)
			return nil
		case OpSipush:
			v, err := r.i16()
			if err != nil {
				return err
			}
			insn.Value = int32(v)
			return nil
		case OpLdc:
			idx, err := r.u8()
			if err != nil {
				return err
			}
			insn.Index = uint16(idx)
		default:
			idx, err := r.u16()
			if err != nil {
				return err
			}
			insn.Index = idx
		}
		if pool != nil {
			desc, err := pool.ConstantDescriptor(insn.Index)
			if err != nil {
				return fmt.Errorf("%w: %s at offset %d: %v", ErrMalformed, op, insn.Offset, err)
			}
			insn.Constant = desc
		}

	case GroupBranch, GroupSubroutine:
		switch op {
		case OpRet:
			slot, err := r.u8()
			if err != nil {
				return err
			}
			insn.Slot = int(slot)
		case OpGotoW, OpJsrW:
			off, err := r.i32()
			if err != nil {
				return err
			}
			insn.Target = insn.Offset + int(off)
		default:
			off, err := r.i16()
			if err != nil {
				return err
			}
			insn.Target = insn.Offset + int(off)
		}

	case GroupSwitch:
		return decodeSwitch(r, insn)

	case GroupMember, GroupInvoke:
		idx, err := r.u16()
		if err != nil {
			return err
		}
		insn.Index = idx
		switch op {
		case OpInvokeinterface:
			count, err := r.u8()
			if err != nil {
				return err
			}
			insn.Value = int32(count)
			if _, err := r.u8(); err != nil {
				return err
			}
		case OpInvokedynamic:
			if _, err := r.u16(); err != nil {
				return err
			}
		}
		if pool != nil {
			ref, err := pool.Member(idx)
			if err != nil {
				return fmt.Errorf("%w: %s at offset %d: %v", ErrMalformed, op, insn.Offset, err)
			}
			insn.Member = &ref
		}

	case GroupType:
		if op == OpNewarray {
			atype, err := r.u8()
			if err != nil {
				return err
			}
			insn.Value = int32(atype)
			return nil
		}
		idx, err := r.u16()
		if err != nil {
			return err
		}
		insn.Index = idx
		if op == OpMultianewarray {
			dims, err := r.u8()
			if err != nil {
				return err
			}
			if dims == 0 {
				return fmt.Errorf("%w: multianewarray with zero dimensions at offset %d", ErrMalformed, insn.Offset)
			}
			insn.Dims = int(dims)
		}
		if pool != nil {
			name, err := pool.Class(idx)
			if err != nil {
				return fmt.Errorf("%w: %s at offset %d: %v", ErrMalformed, op, insn.Offset, err)
			}
			insn.Class = name
		}
	}
	return nil
}

// switchPadding returns the number of padding bytes after a switch opcode at
// offset so that its operands start on a 4-byte boundary.
func switchPadding(offset int) int {
	return (4 - (offset+1)%4) % 4
}

func decodeSwitch(r *codeReader, insn *RawInstruction) error {
	if err := r.need(switchPadding(insn.Offset)); err != nil {
		return err
	}
	r.pos += switchPadding(insn.Offset)

	def, err := r.i32()
	if err != nil {
		return err
	}
	table := &SwitchTable{Default: insn.Offset + int(def)}

	if insn.Opcode == OpTableswitch {
		low, err := r.i32()
		if err != nil {
			return err
		}
		high, err := r.i32()
		if err != nil {
			return err
		}
		if high < low {
			return fmt.Errorf("%w: tableswitch low %d > high %d at offset %d", ErrBadSwitch, low, high, insn.Offset)
		}
		n := int(high) - int(low) + 1
		if err := r.need(4 * n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			off, _ := r.i32()
			table.Keys = append(table.Keys, low+int32(i))
			table.Targets = append(table.Targets, insn.Offset+int(off))
		}
	} else {
		npairs, err := r.i32()
		if err != nil {
			return err
		}
		if npairs < 0 {
			return fmt.Errorf("%w: lookupswitch with %d pairs at offset %d", ErrBadSwitch, npairs, insn.Offset)
		}
		if err := r.need(8 * int(npairs)); err != nil {
			return err
		}
		for i := 0; i < int(npairs); i++ {
			key, _ := r.i32()
			off, _ := r.i32()
			table.Keys = append(table.Keys, key)
			table.Targets = append(table.Targets, insn.Offset+int(off))
		}
	}
	insn.Switch = table
	return nil
}
