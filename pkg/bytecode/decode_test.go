package bytecode

import (
	"errors"
	"fmt"
	"testing"
)

// fakePool resolves every index to a predictable reference.
type fakePool struct {
	fail bool
}

func (p fakePool) Member(index uint16) (MemberRef, error) {
	if p.fail {
		return MemberRef{}, fmt.Errorf("no entry %d", index)
	}
	return MemberRef{Owner: "demo/Owner", Name: fmt.Sprintf("m%d", index), Descriptor: "(I)V"}, nil
}

func (p fakePool) Class(index uint16) (string, error) {
	if p.fail {
		return "", fmt.Errorf("no entry %d", index)
	}
	return fmt.Sprintf("demo/C%d", index), nil
}

func (p fakePool) ConstantDescriptor(index uint16) (string, error) {
	if p.fail {
		return "", fmt.Errorf("no entry %d", index)
	}
	return "Ljava/lang/String;", nil
}

func TestDecodeBranches(t *testing.T) {
	code := []byte{
		0x04,             // 0: iconst_1
		0x05,             // 1: iconst_2
		0x9F, 0x00, 0x06, // 2: if_icmpeq +6 -> 8
		0xA7, 0x00, 0x04, // 5: goto +4 -> 9
		0x03, // 8: iconst_0
		0xB1, // 9: return
	}

	insns, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := []struct {
		offset int
		op     Opcode
		target int
	}{
		{0, OpIconst1, 0},
		{1, OpIconst2, 0},
		{2, OpIfIcmpeq, 8},
		{5, OpGoto, 9},
		{8, OpIconst0, 0},
		{9, OpReturn, 0},
	}
	if len(insns) != len(want) {
		t.Fatalf("Decode returned %d instructions, want %d", len(insns), len(want))
	}
	for i, w := range want {
		got := insns[i]
		if got.Offset != w.offset || got.Opcode != w.op || got.Target != w.target {
			t.Errorf("insn %d = {%d %s %d}, want {%d %s %d}",
				i, got.Offset, got.Opcode, got.Target, w.offset, w.op, w.target)
		}
	}
	if insns[2].Len != 3 {
		t.Errorf("if_icmpeq Len = %d, want 3", insns[2].Len)
	}
}

func TestDecodeBackwardBranch(t *testing.T) {
	code := []byte{
		0x00,             // 0: nop
		0xA7, 0xFF, 0xFF, // 1: goto -1 -> 0
	}
	insns, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if insns[1].Target != 0 {
		t.Errorf("goto Target = %d, want 0", insns[1].Target)
	}
}

func TestDecodeGotoW(t *testing.T) {
	code := []byte{
		0xC8, 0x00, 0x00, 0x00, 0x05, // 0: goto_w +5
		0xB1, // 5: return
	}
	insns, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if insns[0].Target != 5 || insns[0].Len != 5 {
		t.Errorf("goto_w = {target %d len %d}, want {5 5}", insns[0].Target, insns[0].Len)
	}
}

func TestDecodeImplicitSlots(t *testing.T) {
	tests := []struct {
		op   Opcode
		slot int
	}{
		{OpIload0, 0},
		{OpLload1, 1},
		{OpFload2, 2},
		{OpAload3, 3},
		{OpIstore3, 3},
		{OpDstore2, 2},
		{OpAstore0, 0},
	}
	for _, tt := range tests {
		insns, err := Decode([]byte{byte(tt.op)}, nil)
		if err != nil {
			t.Fatalf("Decode(%s): %v", tt.op, err)
		}
		if insns[0].Slot != tt.slot {
			t.Errorf("%s Slot = %d, want %d", tt.op, insns[0].Slot, tt.slot)
		}
	}
}

func TestDecodeWide(t *testing.T) {
	code := []byte{
		0xC4, 0x15, 0x01, 0x00, // 0: wide iload 256
		0xC4, 0x84, 0x01, 0x00, 0xFF, 0x9C, // 4: wide iinc 256 -100
	}
	insns, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(insns) != 2 {
		t.Fatalf("Decode returned %d instructions, want 2", len(insns))
	}
	if !insns[0].Wide || insns[0].Opcode != OpIload || insns[0].Slot != 256 || insns[0].Len != 4 {
		t.Errorf("wide iload = %+v", insns[0])
	}
	if insns[1].Opcode != OpIinc || insns[1].Slot != 256 || insns[1].Value != -100 || insns[1].Len != 6 {
		t.Errorf("wide iinc = %+v", insns[1])
	}
}

func TestDecodeBadWide(t *testing.T) {
	_, err := Decode([]byte{0xC4, 0x60}, nil) // wide iadd
	if !errors.Is(err, ErrBadWide) {
		t.Errorf("Decode(wide iadd) error = %v, want ErrBadWide", err)
	}
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("ErrBadWide should be malformed, got %v", err)
	}
}

func TestDecodeTableSwitch(t *testing.T) {
	a := NewAssembler()
	a.Emit(OpIload0)
	a.EmitTableSwitch(10, "def", "one", "two", "one")
	a.Label("one")
	a.Emit(OpReturn)
	a.Label("two")
	a.Emit(OpReturn)
	a.Label("def")
	a.Emit(OpReturn)
	code, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	// 1 opcode + 2 padding + default + low + high + 3 targets
	wantLen := 1 + 2 + 4*3 + 4*3
	insns, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sw := insns[1]
	if sw.Opcode != OpTableswitch || sw.Len != wantLen {
		t.Fatalf("switch = %s len %d, want TABLESWITCH len %d", sw.Opcode, sw.Len, wantLen)
	}
	one := 1 + wantLen
	two := one + 1
	def := two + 1
	if sw.Switch.Default != def {
		t.Errorf("Default = %d, want %d", sw.Switch.Default, def)
	}
	wantKeys := []int32{10, 11, 12}
	wantTargets := []int{one, two, one}
	for i := range wantKeys {
		if sw.Switch.Keys[i] != wantKeys[i] || sw.Switch.Targets[i] != wantTargets[i] {
			t.Errorf("case %d = %d:%d, want %d:%d",
				i, sw.Switch.Keys[i], sw.Switch.Targets[i], wantKeys[i], wantTargets[i])
		}
	}
}

func TestDecodeLookupSwitch(t *testing.T) {
	a := NewAssembler()
	a.Emit(OpNop)
	a.Emit(OpNop)
	a.Emit(OpIload0)
	a.EmitLookupSwitch("def", []int32{-5, 100}, []string{"a", "def"})
	a.Label("a")
	a.Emit(OpReturn)
	a.Label("def")
	a.Emit(OpReturn)
	code, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	insns, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sw := insns[3]
	// Opcode at 3: no padding needed
	wantLen := 1 + 4 + 4 + 2*8
	if sw.Len != wantLen {
		t.Errorf("lookupswitch Len = %d, want %d", sw.Len, wantLen)
	}
	aOff := 3 + wantLen
	if sw.Switch.Targets[0] != aOff || sw.Switch.Targets[1] != aOff+1 || sw.Switch.Default != aOff+1 {
		t.Errorf("lookupswitch table = %s", sw.Switch)
	}
	if sw.Switch.Keys[0] != -5 || sw.Switch.Keys[1] != 100 {
		t.Errorf("lookupswitch keys = %v", sw.Switch.Keys)
	}
}

func TestDecodeBadTableSwitch(t *testing.T) {
	code := []byte{
		0xAA, 0, 0, 0, // tableswitch + padding
		0, 0, 0, 0, // default
		0, 0, 0, 5, // low
		0, 0, 0, 1, // high < low
	}
	if _, err := Decode(code, nil); !errors.Is(err, ErrBadSwitch) {
		t.Errorf("Decode error = %v, want ErrBadSwitch", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"bipush", []byte{0x10}},
		{"goto", []byte{0xA7, 0x00}},
		{"invokevirtual", []byte{0xB6, 0x00}},
		{"goto_w", []byte{0xC8, 0, 0, 0}},
		{"wide", []byte{0xC4, 0x15, 0x01}},
		{"tableswitch", []byte{0xAA, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.code, nil)
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("Decode error = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte{0xEE}, nil)
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("Decode error = %v, want ErrUnknownOpcode", err)
	}
	// Bytes outside the instruction set are corrupt code, not a gap in
	// the model.
	if got := Category(err); got != "malformed" {
		t.Errorf("Category = %q, want malformed", got)
	}
}

func TestDecodeResolvesConstants(t *testing.T) {
	code := []byte{
		0x12, 0x03, // ldc #3
		0xB6, 0x00, 0x07, // invokevirtual #7
		0xBB, 0x00, 0x09, // new #9
		0xC5, 0x00, 0x0A, 0x02, // multianewarray #10 2
		0xB9, 0x00, 0x0B, 0x02, 0x00, // invokeinterface #11 2
		0xB1,
	}
	insns, err := Decode(code, fakePool{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if insns[0].Constant != "Ljava/lang/String;" || insns[0].Index != 3 {
		t.Errorf("ldc = %+v", insns[0])
	}
	if insns[1].Member == nil || insns[1].Member.Name != "m7" {
		t.Errorf("invokevirtual member = %v", insns[1].Member)
	}
	if insns[2].Class != "demo/C9" {
		t.Errorf("new class = %q", insns[2].Class)
	}
	if insns[3].Class != "demo/C10" || insns[3].Dims != 2 {
		t.Errorf("multianewarray = %+v", insns[3])
	}
	if insns[4].Value != 2 || insns[4].Len != 5 {
		t.Errorf("invokeinterface = %+v", insns[4])
	}
}

func TestDecodeResolverFailure(t *testing.T) {
	_, err := Decode([]byte{0xB2, 0x00, 0x01}, fakePool{fail: true})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Decode error = %v, want ErrMalformed", err)
	}
}

func TestApplyLineNumbers(t *testing.T) {
	insns := []RawInstruction{{Offset: 0}, {Offset: 1}, {Offset: 4}, {Offset: 7}}
	ApplyLineNumbers(insns, []LineNumber{{StartPC: 4, Line: 12}, {StartPC: 0, Line: 10}})

	want := []int{10, 10, 12, 12}
	for i, w := range want {
		if insns[i].Line != w {
			t.Errorf("insn %d Line = %d, want %d", i, insns[i].Line, w)
		}
	}
}
