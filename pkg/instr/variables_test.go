package instr

import (
	"errors"
	"testing"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/frame"
)

func TestDeclareParameters(t *testing.T) {
	vt := NewVariableTable(0)
	if err := vt.DeclareParameters("(IJLjava/lang/String;)V", false); err != nil {
		t.Fatalf("DeclareParameters: %v", err)
	}

	tests := []struct {
		slot int
		want frame.TypeSet
		ok   bool
	}{
		{0, frame.Reference, true}, // this
		{1, frame.Int, true},
		{2, frame.Long, true},
		{3, frame.Void, false}, // upper half of the long
		{4, frame.Reference, true},
		{5, frame.Void, false},
	}
	for _, tt := range tests {
		got, ok := vt.TypeAt(tt.slot, 0)
		if got != tt.want || ok != tt.ok {
			t.Errorf("TypeAt(%d, 0) = %s, %v, want %s, %v", tt.slot, got, ok, tt.want, tt.ok)
		}
	}

	static := NewVariableTable(0)
	if err := static.DeclareParameters("(D)V", true); err != nil {
		t.Fatalf("DeclareParameters: %v", err)
	}
	if got, _ := static.TypeAt(0, 0); got != frame.Double {
		t.Errorf("static TypeAt(0) = %s, want DOUBLE", got)
	}

	if err := vt.DeclareParameters("bogus", true); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("DeclareParameters(bogus) error = %v, want malformed", err)
	}
}

func TestAssignVisibleAfterStore(t *testing.T) {
	vt := NewVariableTable(4)
	vt.Assign(1, frame.Int, 5)

	if _, ok := vt.TypeAt(1, 5); ok {
		t.Error("a store is not visible at its own offset")
	}
	if got, ok := vt.TypeAt(1, 6); !ok || got != frame.Int {
		t.Errorf("TypeAt(1, 6) = %s, %v, want INT", got, ok)
	}

	// Slot reuse: a later store changes the type from then on.
	vt.Assign(1, frame.Reference, 20)
	if got, _ := vt.TypeAt(1, 10); got != frame.Int {
		t.Errorf("TypeAt(1, 10) = %s, want INT", got)
	}
	if got, _ := vt.TypeAt(1, 30); got != frame.Reference {
		t.Errorf("TypeAt(1, 30) = %s, want REFERENCE", got)
	}

	types := vt.Types(1)
	if len(types) != 2 || types[0] != frame.Int || types[1] != frame.Reference {
		t.Errorf("Types(1) = %v, want [INT REFERENCE]", types)
	}
}

func TestAssignWideInvalidation(t *testing.T) {
	vt := NewVariableTable(0)
	vt.Assign(2, frame.Double, 0)
	if _, ok := vt.TypeAt(3, 4); ok {
		t.Error("upper half of a double should not have a type")
	}

	// Overwriting the upper half kills the double.
	vt.Assign(3, frame.Int, 10)
	if _, ok := vt.TypeAt(2, 11); ok {
		t.Error("double should be invalid after its upper half is overwritten")
	}
	if got, _ := vt.TypeAt(2, 5); got != frame.Double {
		t.Errorf("TypeAt(2, 5) = %s, want DOUBLE", got)
	}
}

func TestDeclaredScopesTakePrecedence(t *testing.T) {
	vt := NewVariableTable(0)
	vt.Assign(1, frame.Int, 0)
	vt.Declare(1, frame.Boolean, 2, 10, "flag")

	if got, _ := vt.TypeAt(1, 4); got != frame.Boolean {
		t.Errorf("TypeAt(1, 4) = %s, want BOOLEAN", got)
	}
	if got, _ := vt.TypeAt(1, 10); got != frame.Int {
		t.Errorf("TypeAt(1, 10) = %s, want INT after the scope ends", got)
	}

	as := vt.Assignments(1)
	if len(as) != 2 || !as[0].Declared || as[0].Name != "flag" {
		t.Errorf("Assignments(1) = %+v", as)
	}
}

func TestSlots(t *testing.T) {
	vt := NewVariableTable(0)
	vt.Declare(4, frame.Reference, 0, 5, "x")
	vt.Assign(0, frame.Long, 0)

	got := vt.Slots()
	want := []int{0, 1, 4}
	if !equalInts(got, want) {
		t.Errorf("Slots() = %v, want %v", got, want)
	}
}

func TestNewVariableTableFor(t *testing.T) {
	m := &bytecode.Method{
		ClassName:   "demo/T",
		Name:        "run",
		Descriptor:  "(Z)V",
		AccessFlags: bytecode.AccStatic,
		MaxLocals:   2,
		LocalVariables: []bytecode.LocalVariable{
			{Slot: 1, Name: "s", Descriptor: "Ljava/lang/String;", StartPC: 3, Length: 7},
		},
	}
	vt, err := NewVariableTableFor(m)
	if err != nil {
		t.Fatalf("NewVariableTableFor: %v", err)
	}
	if got, _ := vt.TypeAt(0, 0); got != frame.Boolean {
		t.Errorf("TypeAt(0, 0) = %s, want BOOLEAN", got)
	}
	if got, _ := vt.TypeAt(1, 5); got != frame.Reference {
		t.Errorf("TypeAt(1, 5) = %s, want REFERENCE", got)
	}

	m.LocalVariables[0].Descriptor = "Q"
	if _, err := NewVariableTableFor(m); !errors.Is(err, frame.ErrBadDescriptor) {
		t.Errorf("bad local descriptor error = %v, want ErrBadDescriptor", err)
	}
}

func TestLoadUsesVariableTable(t *testing.T) {
	vt := NewVariableTable(4)
	vt.Declare(1, frame.Boolean, 0, 20, "flag")
	vt.Declare(2, frame.Reference, 0, 20, "s")

	load := mustNew(t, 0, bytecode.RawInstruction{Offset: 4, Opcode: bytecode.OpIload1, Slot: 1})
	next := mustNew(t, 1, bytecode.RawInstruction{Offset: 5, Opcode: bytecode.OpIreturn})
	tr, err := load.StackManipulation(vt, next)
	if err != nil {
		t.Fatalf("StackManipulation: %v", err)
	}
	out, err := tr.Apply(frame.NewTypeStack())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out.Equal(frame.NewTypeStack(frame.Boolean)) {
		t.Errorf("iload_1 of boolean pushes %s, want [BOOLEAN]", out)
	}

	// An incompatible recorded type falls back to the load's default.
	fload := mustNew(t, 0, bytecode.RawInstruction{Offset: 4, Opcode: bytecode.OpFload, Slot: 2})
	tr, err = fload.StackManipulation(vt, next)
	if err != nil {
		t.Fatalf("StackManipulation: %v", err)
	}
	out, _ = tr.Apply(frame.NewTypeStack())
	if !out.Equal(frame.NewTypeStack(frame.Float)) {
		t.Errorf("fload of reference slot pushes %s, want [FLOAT]", out)
	}

	// Slots beyond max_locals are malformed.
	wide := mustNew(t, 0, bytecode.RawInstruction{Offset: 4, Opcode: bytecode.OpLload, Slot: 3})
	if _, err := wide.StackManipulation(vt, next); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("lload 3 with max_locals 4 error = %v, want malformed", err)
	}
}
