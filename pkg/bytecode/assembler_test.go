package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

func TestAssemblerForwardAndBackwardJumps(t *testing.T) {
	a := NewAssembler()
	a.Label("top")
	a.Emit(OpIload0)
	a.EmitJump(OpIfeq, "done")
	a.EmitIinc(0, -1)
	a.EmitJump(OpGoto, "top")
	a.Label("done")
	a.Emit(OpReturn)

	code, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{
		0x1A,             // 0: iload_0
		0x99, 0x00, 0x09, // 1: ifeq +9 -> 10
		0x84, 0x00, 0xFF, // 4: iinc 0 -1
		0xA7, 0xFF, 0xF9, // 7: goto -7 -> 0
		0xB1, // 10: return
	}
	if !bytes.Equal(code, want) {
		t.Errorf("Bytes() = % X, want % X", code, want)
	}
}

func TestAssemblerWideLocals(t *testing.T) {
	a := NewAssembler()
	a.EmitLocal(OpAload, 300)
	a.EmitIinc(2, 1000)
	a.EmitLocal(OpIstore, 4)

	code, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := []byte{
		0xC4, 0x19, 0x01, 0x2C, // wide aload 300
		0xC4, 0x84, 0x00, 0x02, 0x03, 0xE8, // wide iinc 2 1000
		0x36, 0x04, // istore 4
	}
	if !bytes.Equal(code, want) {
		t.Errorf("Bytes() = % X, want % X", code, want)
	}
}

func TestAssemblerUndefinedLabel(t *testing.T) {
	a := NewAssembler()
	a.EmitJump(OpGoto, "nowhere")
	if _, err := a.Bytes(); !errors.Is(err, ErrUndefinedLabel) {
		t.Errorf("Bytes() error = %v, want ErrUndefinedLabel", err)
	}
}

func TestAssemblerLineNumbers(t *testing.T) {
	a := NewAssembler()
	a.Line(3)
	a.Emit(OpIconst0)
	a.Emit(OpIstore1)
	a.Line(4)
	a.Emit(OpReturn)

	lines := a.LineNumbers()
	if len(lines) != 2 || lines[1].StartPC != 2 || lines[1].Line != 4 {
		t.Errorf("LineNumbers() = %+v", lines)
	}
}

func TestAssemblerRoundTrip(t *testing.T) {
	a := NewAssembler()
	a.Emit(OpAload0)
	a.EmitU16(OpGetfield, 5)
	a.EmitWithOperand(OpBipush, 0x80)
	a.EmitU16(OpSipush, 0x1234)
	a.EmitJump(OpGotoW, "end")
	a.Label("end")
	a.Emit(OpAreturn)
	code, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	insns, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(insns) != 6 {
		t.Fatalf("Decode returned %d instructions, want 6", len(insns))
	}
	if insns[1].Index != 5 {
		t.Errorf("getfield Index = %d, want 5", insns[1].Index)
	}
	if insns[2].Value != -128 {
		t.Errorf("bipush Value = %d, want -128", insns[2].Value)
	}
	if insns[3].Value != 0x1234 {
		t.Errorf("sipush Value = %d, want %d", insns[3].Value, 0x1234)
	}
	if insns[4].Target != insns[5].Offset {
		t.Errorf("goto_w Target = %d, want %d", insns[4].Target, insns[5].Offset)
	}
}
