package instr

import (
	"fmt"
	"sort"

	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/frame"
)

// Assignment is one type a local slot holds over part of the method.
// Start and End are bytecode offsets; End is exclusive and -1 when the
// assignment lasts until the next one.
type Assignment struct {
	Type     frame.TypeSet
	Start    int
	End      int
	Name     string
	Declared bool // From the LocalVariableTable rather than inferred
}

func (a Assignment) covers(pc int) bool {
	return pc >= a.Start && (a.End < 0 || pc < a.End)
}

// VariableTable tracks the types assigned to each local slot over a
// method's lifetime. Slots are reused by compilers for unrelated variables
// in disjoint scopes, so a slot maps to a sequence of assignments.
//
// Declared scopes from debug information take precedence over types
// inferred from stores. The table is owned by a single analysis run and is
// not safe for concurrent mutation.
type VariableTable struct {
	maxLocals int
	declared  map[int][]Assignment
	inferred  map[int][]Assignment
}

// NewVariableTable creates an empty table for a method with maxLocals slots.
// maxLocals 0 disables the bounds check.
func NewVariableTable(maxLocals int) *VariableTable {
	return &VariableTable{
		maxLocals: maxLocals,
		declared:  make(map[int][]Assignment),
		inferred:  make(map[int][]Assignment),
	}
}

// NewVariableTableFor creates a table seeded with the method's parameters and
// its LocalVariableTable.
func NewVariableTableFor(m *bytecode.Method) (*VariableTable, error) {
	vt := NewVariableTable(m.MaxLocals)
	if err := vt.DeclareParameters(m.Descriptor, m.IsStatic()); err != nil {
		return nil, fmt.Errorf("instr: %s: %w", m.Key(), err)
	}
	for _, lv := range m.LocalVariables {
		t, err := frame.FromDescriptor(lv.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("instr: %s: local %s: %w", m.Key(), lv.Name, err)
		}
		vt.Declare(lv.Slot, t, lv.StartPC, lv.StartPC+lv.Length, lv.Name)
	}
	return vt, nil
}

// DeclareParameters records the receiver (for instance methods) and the
// parameters of desc, starting at slot 0 and offset 0.
func (vt *VariableTable) DeclareParameters(desc string, static bool) error {
	params, _, err := frame.ParseMethodDescriptor(desc)
	if err != nil {
		return err
	}
	slot := 0
	if !static {
		vt.Assign(slot, frame.Reference, -1)
		slot++
	}
	for _, p := range params {
		vt.Assign(slot, p, -1)
		slot += p.Size()
	}
	return nil
}

// Declare records a debug-info scope: slot holds t for offsets in
// [start, end).
func (vt *VariableTable) Declare(slot int, t frame.TypeSet, start, end int, name string) {
	vt.declared[slot] = append(vt.declared[slot], Assignment{
		Type: t, Start: start, End: end, Name: name, Declared: true,
	})
}

// Assign records a store of t into slot by the instruction at offset at. The
// value is visible from the next offset on. Long and double values also
// claim slot+1, and a store into the upper half of a wide value invalidates
// it.
func (vt *VariableTable) Assign(slot int, t frame.TypeSet, at int) {
	start := at + 1
	vt.inferred[slot] = append(vt.inferred[slot], Assignment{Type: t, Start: start, End: -1})
	if t.IsCategory2() {
		vt.inferred[slot+1] = append(vt.inferred[slot+1], Assignment{Type: frame.Void, Start: start, End: -1})
	}
	if slot > 0 {
		if prev, ok := vt.latest(vt.inferred[slot-1], start); ok && prev.Type.IsCategory2() {
			vt.inferred[slot-1] = append(vt.inferred[slot-1], Assignment{Type: frame.Void, Start: start, End: -1})
		}
	}
}

// latest returns the last assignment started at or before pc.
func (vt *VariableTable) latest(list []Assignment, pc int) (Assignment, bool) {
	var found Assignment
	ok := false
	for _, a := range list {
		if a.Start <= pc && (!ok || a.Start >= found.Start) {
			found, ok = a, true
		}
	}
	return found, ok
}

// TypeAt returns the type slot holds at offset pc. It reports false when the
// slot is unassigned there or holds the upper half of a long or double.
func (vt *VariableTable) TypeAt(slot, pc int) (frame.TypeSet, bool) {
	for _, a := range vt.declared[slot] {
		if a.covers(pc) {
			return a.Type, true
		}
	}
	a, ok := vt.latest(vt.inferred[slot], pc)
	if !ok || a.Type == frame.Void {
		return frame.Void, false
	}
	return a.Type, true
}

// Assignments returns every assignment of slot, declared ones first, each
// group in recording order.
func (vt *VariableTable) Assignments(slot int) []Assignment {
	out := make([]Assignment, 0, len(vt.declared[slot])+len(vt.inferred[slot]))
	out = append(out, vt.declared[slot]...)
	out = append(out, vt.inferred[slot]...)
	return out
}

// Types returns the distinct types slot holds over the method, in order of
// first appearance.
func (vt *VariableTable) Types(slot int) []frame.TypeSet {
	var out []frame.TypeSet
	seen := make(map[frame.TypeSet]bool)
	for _, a := range vt.Assignments(slot) {
		if a.Type == frame.Void || seen[a.Type] {
			continue
		}
		seen[a.Type] = true
		out = append(out, a.Type)
	}
	return out
}

// Slots returns the slots with at least one assignment, ascending.
func (vt *VariableTable) Slots() []int {
	set := make(map[int]bool)
	for s := range vt.declared {
		set[s] = true
	}
	for s := range vt.inferred {
		set[s] = true
	}
	out := make([]int, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// MaxLocals returns the slot count the table was created with.
func (vt *VariableTable) MaxLocals() int {
	return vt.maxLocals
}

// checkSlot reports a slot outside the method's local area.
func (vt *VariableTable) checkSlot(slot, width int) error {
	if slot < 0 || (vt.maxLocals > 0 && slot+width > vt.maxLocals) {
		return fmt.Errorf("%w: local slot %d outside max_locals %d", bytecode.ErrMalformed, slot, vt.maxLocals)
	}
	return nil
}
