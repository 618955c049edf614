package cfg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/frame"
	"github.com/chazu/jflow/pkg/instr"
)

// assemble decodes the code produced by emit into a static method.
func assemble(t *testing.T, desc string, maxLocals int, emit func(a *bytecode.Assembler)) *bytecode.Method {
	t.Helper()
	a := bytecode.NewAssembler()
	emit(a)
	code, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	insns, err := bytecode.Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return &bytecode.Method{
		ClassName:    "demo/T",
		Name:         "m",
		Descriptor:   desc,
		AccessFlags:  bytecode.AccStatic,
		MaxStack:     4,
		MaxLocals:    maxLocals,
		Instructions: insns,
	}
}

func mustBuild(t *testing.T, m *bytecode.Method, opts ...Option) *Graph {
	t.Helper()
	g, err := Build(m, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func entries(g *Graph) []int {
	var out []int
	for _, b := range g.Blocks() {
		out = append(out, b.Entry())
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustSucc(t *testing.T, g *Graph, entry int) []int {
	t.Helper()
	s, err := g.Successors(entry)
	if err != nil {
		t.Fatalf("Successors(%d): %v", entry, err)
	}
	return s
}

// checkPartition verifies every instruction lies in exactly one block.
func checkPartition(t *testing.T, g *Graph) {
	t.Helper()
	total := 0
	for _, b := range g.Blocks() {
		total += b.Len()
	}
	if total != g.InstructionCount() {
		t.Errorf("blocks hold %d instructions, method has %d", total, g.InstructionCount())
	}
	for i := 0; i < g.InstructionCount(); i++ {
		owners := 0
		for _, b := range g.Blocks() {
			if b.Contains(i) {
				owners++
			}
		}
		if owners != 1 {
			t.Errorf("instruction %d is in %d blocks", i, owners)
		}
		b, err := g.BlockOf(i)
		if err != nil || !b.Contains(i) {
			t.Errorf("BlockOf(%d) = %v, %v", i, b, err)
		}
	}
}

func scenarioMethod() *bytecode.Method {
	code := []byte{
		0x04,             // 0: iconst_1
		0x05,             // 1: iconst_2
		0x9F, 0x00, 0x06, // 2: if_icmpeq -> 8
		0xA7, 0x00, 0x04, // 5: goto -> 9
		0x03, // 8: iconst_0
		0xB1, // 9: return
	}
	insns, _ := bytecode.Decode(code, nil)
	return &bytecode.Method{
		ClassName:    "demo/T",
		Name:         "scenario",
		Descriptor:   "()V",
		AccessFlags:  bytecode.AccStatic,
		MaxStack:     2,
		Instructions: insns,
	}
}

func TestBuildConditionalScenario(t *testing.T) {
	g := mustBuild(t, scenarioMethod())

	if got, want := entries(g), []int{0, 3, 4, 5}; !equalInts(got, want) {
		t.Fatalf("block entries = %v, want %v", got, want)
	}
	checkPartition(t, g)

	succ := []struct {
		entry int
		want  []int
	}{
		{0, []int{3, 4}},
		{3, []int{5}},
		{4, []int{5}},
		{5, []int{instr.MethodExit}},
	}
	for _, tt := range succ {
		if got := mustSucc(t, g, tt.entry); !equalInts(got, tt.want) {
			t.Errorf("Successors(%d) = %v, want %v", tt.entry, got, tt.want)
		}
	}

	preds, err := g.Predecessors(5)
	if err != nil || !equalInts(preds, []int{3, 4}) {
		t.Errorf("Predecessors(5) = %v, %v, want [3 4]", preds, err)
	}
	exits, _ := g.Predecessors(instr.MethodExit)
	if !equalInts(exits, []int{5}) {
		t.Errorf("Predecessors(exit) = %v, want [5]", exits)
	}

	entry := g.Entry()
	if entry.Len() != 3 || entry.Terminal().Opcode != bytecode.OpIfIcmpeq {
		t.Fatalf("entry block = %v", entry)
	}
	bm, err := entry.Manipulation()
	if err != nil {
		t.Fatalf("Manipulation: %v", err)
	}
	if bm.Len() != 2 {
		t.Fatalf("entry block has %d transitions, want 2", bm.Len())
	}

	// Thread the stack through the block and into each branch.
	s := frame.NewTypeStack()
	for _, tr := range bm.Transitions() {
		if s, err = tr.Apply(s); err != nil {
			t.Fatalf("%v: %v", tr, err)
		}
	}
	if !s.Equal(frame.NewTypeStack(frame.Int, frame.Int)) {
		t.Errorf("stack before if_icmpeq = %s, want [INT, INT]", s)
	}
	edges, _ := g.OutEdges(0)
	if len(edges) != 2 {
		t.Fatalf("OutEdges(0) = %d edges, want 2", len(edges))
	}
	for _, e := range edges {
		out, err := e.Transition.Apply(s)
		if err != nil || out.Len() != 0 {
			t.Errorf("edge 0->%d leaves %s, %v, want empty stack", e.To, out, err)
		}
	}
}

func TestBuildStraightLine(t *testing.T) {
	m := assemble(t, "(II)I", 2, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIload0)
		a.Emit(bytecode.OpIload1)
		a.Emit(bytecode.OpIadd)
		a.Emit(bytecode.OpIreturn)
	})
	g := mustBuild(t, m)

	if len(g.Blocks()) != 1 {
		t.Fatalf("straight-line code built %d blocks, want 1", len(g.Blocks()))
	}
	bm, err := g.Entry().Manipulation()
	if err != nil {
		t.Fatalf("Manipulation: %v", err)
	}
	if bm.Len() != 3 {
		t.Errorf("4 instructions gave %d transitions, want 3", bm.Len())
	}

	want := []frame.TypeStack{
		frame.NewTypeStack(frame.Int),
		frame.NewTypeStack(frame.Int, frame.Int),
		frame.NewTypeStack(frame.Int),
	}
	s := frame.NewTypeStack()
	for i, tr := range bm.Transitions() {
		if tr.From != i || tr.To != i+1 {
			t.Errorf("transition %d = %d->%d", i, tr.From, tr.To)
		}
		if s, err = tr.Apply(s); err != nil {
			t.Fatalf("%v: %v", tr, err)
		}
		if !s.Equal(want[i]) {
			t.Errorf("after transition %d stack = %s, want %s", i, s, want[i])
		}
	}
	if got := mustSucc(t, g, 0); !equalInts(got, []int{instr.MethodExit}) {
		t.Errorf("Successors(0) = %v, want [exit]", got)
	}
}

func loopMethod(t *testing.T) *bytecode.Method {
	return assemble(t, "(I)V", 2, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIconst0)
		a.Emit(bytecode.OpIstore1)
		a.Label("loop")
		a.Emit(bytecode.OpIload1)
		a.Emit(bytecode.OpIload0)
		a.EmitJump(bytecode.OpIfIcmpge, "end")
		a.EmitIinc(1, 1)
		a.EmitJump(bytecode.OpGoto, "loop")
		a.Label("end")
		a.Emit(bytecode.OpReturn)
	})
}

func TestBuildLoop(t *testing.T) {
	g := mustBuild(t, loopMethod(t))

	if got, want := entries(g), []int{0, 2, 5, 7}; !equalInts(got, want) {
		t.Fatalf("block entries = %v, want %v", got, want)
	}
	checkPartition(t, g)

	if got := mustSucc(t, g, 5); !equalInts(got, []int{2}) {
		t.Errorf("Successors(5) = %v, want [2]", got)
	}
	if got, _ := g.Predecessors(2); !equalInts(got, []int{0, 5}) {
		t.Errorf("Predecessors(2) = %v, want [0 5]", got)
	}
	if got, _ := g.Reachable(5); !equalInts(got, []int{2, 5, 7}) {
		t.Errorf("Reachable(5) = %v, want [2 5 7]", got)
	}

	// The store at offset 1 types slot 1 for the loop body.
	if got, ok := g.VariableTable().TypeAt(1, 2); !ok || got != frame.Int {
		t.Errorf("TypeAt(1, 2) = %s, %v, want INT", got, ok)
	}
}

func TestStoreAtJoinKeepsCategory(t *testing.T) {
	m := assemble(t, "(I)V", 2, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIload0)
		a.EmitJump(bytecode.OpIfeq, "zero")
		a.Emit(bytecode.OpIconst1)
		a.EmitJump(bytecode.OpGoto, "store")
		a.Label("zero")
		a.Emit(bytecode.OpIconst0)
		a.Label("store")
		a.Emit(bytecode.OpIstore1)
		a.Emit(bytecode.OpReturn)
	})
	g := mustBuild(t, m)

	// The store at offset 9 is a join point with two producers.
	if got, ok := g.VariableTable().TypeAt(1, 10); !ok || got != frame.TwoComplement {
		t.Errorf("TypeAt(1, 10) = %s, %v, want TWO_COMPLEMENT", got, ok)
	}
}

func TestBuildSwitchKeepsDuplicates(t *testing.T) {
	m := assemble(t, "(I)I", 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIload0)
		a.EmitTableSwitch(0, "d", "a", "b", "a")
		a.Label("a")
		a.Emit(bytecode.OpIconst1)
		a.Emit(bytecode.OpIreturn)
		a.Label("b")
		a.Emit(bytecode.OpIconst2)
		a.Emit(bytecode.OpIreturn)
		a.Label("d")
		a.Emit(bytecode.OpIconst0)
		a.Emit(bytecode.OpIreturn)
	})
	g := mustBuild(t, m)

	if got, want := entries(g), []int{0, 2, 4, 6}; !equalInts(got, want) {
		t.Fatalf("block entries = %v, want %v", got, want)
	}
	checkPartition(t, g)

	edges, err := g.OutEdges(0)
	if err != nil {
		t.Fatalf("OutEdges: %v", err)
	}
	var to []int
	for _, e := range edges {
		to = append(to, e.To)
		out, err := e.Transition.Apply(frame.NewTypeStack(frame.Int))
		if err != nil || out.Len() != 0 {
			t.Errorf("switch edge to %d leaves %s, %v", e.To, out, err)
		}
	}
	if !equalInts(to, []int{6, 2, 4, 2}) {
		t.Errorf("switch edges = %v, want [6 2 4 2]", to)
	}
	if got := mustSucc(t, g, 0); !equalInts(got, []int{6, 2, 4}) {
		t.Errorf("Successors(0) = %v, want [6 2 4]", got)
	}
	if got, _ := g.Predecessors(2); !equalInts(got, []int{0}) {
		t.Errorf("Predecessors(2) = %v, want [0]", got)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name      string
		insns     []bytecode.RawInstruction
		decodeErr error
		want      error
	}{
		{
			name: "empty",
			want: ErrEmptyMethod,
		},
		{
			name:      "undecoded code",
			decodeErr: fmt.Errorf("code: %w", bytecode.ErrUnknownOpcode),
			want:      bytecode.ErrUnknownOpcode,
		},
		{
			name: "dangling target",
			insns: []bytecode.RawInstruction{
				{Offset: 0, Len: 3, Opcode: bytecode.OpGoto, Target: 1},
			},
			want: ErrDanglingOffset,
		},
		{
			name: "falls off end",
			insns: []bytecode.RawInstruction{
				{Offset: 0, Len: 1, Opcode: bytecode.OpIconst0},
				{Offset: 1, Len: 1, Opcode: bytecode.OpPop},
			},
			want: ErrFallsOffEnd,
		},
		{
			name: "subroutine",
			insns: []bytecode.RawInstruction{
				{Offset: 0, Len: 3, Opcode: bytecode.OpJsr, Target: 3},
				{Offset: 3, Len: 1, Opcode: bytecode.OpReturn},
			},
			want: bytecode.ErrUnsupported,
		},
		{
			name: "duplicate offset",
			insns: []bytecode.RawInstruction{
				{Offset: 0, Len: 1, Opcode: bytecode.OpNop},
				{Offset: 0, Len: 1, Opcode: bytecode.OpReturn},
			},
			want: bytecode.ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &bytecode.Method{
				ClassName:    "demo/T",
				Name:         "bad",
				Descriptor:   "()V",
				AccessFlags:  bytecode.AccStatic,
				Instructions: tt.insns,
				DecodeErr:    tt.decodeErr,
			}
			_, err := Build(m)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildBadHandler(t *testing.T) {
	m := scenarioMethod()
	m.ExceptionTable = []bytecode.ExceptionHandler{{StartPC: 0, EndPC: 2, HandlerPC: 7}}
	if _, err := Build(m); !errors.Is(err, ErrDanglingOffset) {
		t.Errorf("handler inside an instruction: error = %v, want ErrDanglingOffset", err)
	}

	m.ExceptionTable = []bytecode.ExceptionHandler{{StartPC: 2, EndPC: 2, HandlerPC: 8}}
	if _, err := Build(m); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("empty handler range: error = %v, want malformed", err)
	}
}

func TestHandlersAndReachability(t *testing.T) {
	m := assemble(t, "()V", 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIconst0)
		a.Emit(bytecode.OpPop)
		a.EmitJump(bytecode.OpGoto, "end")
		a.Label("handler")
		a.Emit(bytecode.OpAstore0)
		a.Label("end")
		a.Emit(bytecode.OpReturn)
	})
	m.ExceptionTable = []bytecode.ExceptionHandler{
		{StartPC: 0, EndPC: 2, HandlerPC: 5, CatchType: "java/lang/Exception"},
	}
	g := mustBuild(t, m)

	if got, want := entries(g), []int{0, 3, 4}; !equalInts(got, want) {
		t.Fatalf("block entries = %v, want %v", got, want)
	}
	if got := g.HandlerEntries(); !equalInts(got, []int{3}) {
		t.Errorf("HandlerEntries() = %v, want [3]", got)
	}
	if got, _ := g.Reachable(0); !equalInts(got, []int{0, 4}) {
		t.Errorf("Reachable(0) = %v, want [0 4]", got)
	}
	if got := g.ReachableFromEntry(); !equalInts(got, []int{0, 3, 4}) {
		t.Errorf("ReachableFromEntry() = %v, want [0 3 4]", got)
	}
	if got := g.Unreachable(); len(got) != 0 {
		t.Errorf("Unreachable() = %v, want none", got)
	}
}

func TestUnreachableCode(t *testing.T) {
	m := assemble(t, "()V", 0, func(a *bytecode.Assembler) {
		a.EmitJump(bytecode.OpGoto, "end")
		a.Emit(bytecode.OpIconst0)
		a.Emit(bytecode.OpPop)
		a.Label("end")
		a.Emit(bytecode.OpReturn)
	})
	g := mustBuild(t, m)

	if got := g.Unreachable(); !equalInts(got, []int{1}) {
		t.Errorf("Unreachable() = %v, want [1]", got)
	}
	if got, _ := g.Predecessors(3); !equalInts(got, []int{0, 1}) {
		t.Errorf("Predecessors(3) = %v, want [0 1]", got)
	}
}

func TestBlockApplyUnsupported(t *testing.T) {
	g := mustBuild(t, scenarioMethod())
	bm, err := g.Entry().Manipulation()
	if err != nil {
		t.Fatalf("Manipulation: %v", err)
	}

	if _, err := bm.Apply(frame.NewTypeStack()); !errors.Is(err, ErrBlockApplyUnsupported) {
		t.Errorf("Apply error = %v, want ErrBlockApplyUnsupported", err)
	}
	if _, err := bm.ApplyBackwards(frame.NewTypeStack()); !errors.Is(err, bytecode.ErrUnsupported) {
		t.Errorf("ApplyBackwards error = %v, want unsupported", err)
	}
	if _, err := bm.ApplyLayout(frame.AnyLayout(2, false)); !errors.Is(err, ErrBlockApplyUnsupported) {
		t.Errorf("ApplyLayout error = %v, want ErrBlockApplyUnsupported", err)
	}
	if _, err := bm.ApplyLayoutBackwards(frame.AnyLayout(0, true)); !errors.Is(err, ErrBlockApplyUnsupported) {
		t.Errorf("ApplyLayoutBackwards error = %v, want ErrBlockApplyUnsupported", err)
	}
}

func TestEagerStack(t *testing.T) {
	// getstatic without a resolved field cannot compute its effect.
	m := &bytecode.Method{
		ClassName:   "demo/T",
		Name:        "lazy",
		Descriptor:  "()V",
		AccessFlags: bytecode.AccStatic,
		Instructions: []bytecode.RawInstruction{
			{Offset: 0, Len: 3, Opcode: bytecode.OpGetstatic, Index: 1},
			{Offset: 3, Len: 1, Opcode: bytecode.OpReturn},
		},
	}

	g, err := Build(m)
	if err != nil {
		t.Fatalf("lazy Build: %v", err)
	}
	if _, err := g.Entry().Manipulation(); !errors.Is(err, instr.ErrMissingDescriptor) {
		t.Errorf("Manipulation error = %v, want ErrMissingDescriptor", err)
	}

	if _, err := Build(m, WithEagerStack(true)); !errors.Is(err, instr.ErrMissingDescriptor) {
		t.Errorf("eager Build error = %v, want ErrMissingDescriptor", err)
	}
}

func TestLookupErrors(t *testing.T) {
	g := mustBuild(t, scenarioMethod())

	if _, err := g.Successors(1); !errors.Is(err, ErrNoBlock) {
		t.Errorf("Successors(1) error = %v, want ErrNoBlock", err)
	}
	if _, err := g.Predecessors(42); !errors.Is(err, ErrNoBlock) {
		t.Errorf("Predecessors(42) error = %v, want ErrNoBlock", err)
	}
	if _, err := g.BlockOf(6); !errors.Is(err, ErrNoBlock) {
		t.Errorf("BlockOf(6) error = %v, want ErrNoBlock", err)
	}
	if b, ok := g.Block(4); !ok || b.StartOffset() != 8 || b.EndOffset() != 9 {
		t.Errorf("Block(4) = %v, %v", b, ok)
	}
	if len(g.Edges()) != 5 {
		t.Errorf("Edges() = %d, want 5", len(g.Edges()))
	}
}
