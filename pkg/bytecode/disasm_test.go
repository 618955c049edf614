package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleEmpty(t *testing.T) {
	if got := Disassemble(nil); got != "" {
		t.Errorf("Disassemble(nil) = %q, want empty", got)
	}
}

func TestDisassembleSimple(t *testing.T) {
	insns := []RawInstruction{
		{Offset: 0, Opcode: OpIconst1, Line: 7},
		{Offset: 1, Opcode: OpIstore, Slot: 4},
		{Offset: 3, Opcode: OpIfeq, Target: 9},
		{Offset: 6, Opcode: OpInvokestatic, Member: &MemberRef{Owner: "a/B", Name: "run", Descriptor: "()V"}},
		{Offset: 9, Opcode: OpReturn},
	}

	output := Disassemble(insns)

	for _, want := range []string{
		"ICONST_1",
		"; line 7",
		"ISTORE 4",
		"IFEQ 9",
		"INVOKESTATIC a/B.run()V",
		"0009  RETURN",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Missing %q in:\n%s", want, output)
		}
	}
}

func TestDisassembleSwitch(t *testing.T) {
	insns := []RawInstruction{{
		Offset: 0,
		Opcode: OpLookupswitch,
		Switch: &SwitchTable{Default: 40, Keys: []int32{1, 2}, Targets: []int{20, 30}},
	}}
	output := Disassemble(insns)
	if !strings.Contains(output, "{1: 20, 2: 30, default: 40}") {
		t.Errorf("Missing switch table in:\n%s", output)
	}
}

func TestMethodDisassemble(t *testing.T) {
	m := &Method{
		ClassName:   "demo/Calc",
		Name:        "sum",
		Descriptor:  "(II)I",
		AccessFlags: AccPublic | AccStatic,
		MaxStack:    2,
		MaxLocals:   2,
		Instructions: []RawInstruction{
			{Offset: 0, Opcode: OpIload0},
			{Offset: 1, Opcode: OpIload1},
			{Offset: 2, Opcode: OpIadd},
			{Offset: 3, Opcode: OpIreturn},
		},
		ExceptionTable: []ExceptionHandler{{StartPC: 0, EndPC: 3, HandlerPC: 3}},
		LocalVariables: []LocalVariable{{Slot: 0, Name: "a", Descriptor: "I", Length: 4}},
	}

	output := m.Disassemble()

	for _, want := range []string{
		"demo/Calc.sum(II)I",
		"[STATIC]",
		"Stack: 2, Locals: 2",
		"a I",
		"-> 0003 any",
		"IADD",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Missing %q in:\n%s", want, output)
		}
	}
}
