package frame

import "fmt"

// Manipulation is the stack transfer function of one instruction.
//
// The TypeStack methods track concrete sets and may fail with
// ErrStackDependent when the effect cannot be resolved from the stack
// given. The Layout methods only propagate shape and are defined for every
// layout deep enough for the instruction (any non-exact layout is).
type Manipulation interface {
	Apply(TypeStack) (TypeStack, error)
	ApplyBackwards(TypeStack) (TypeStack, error)
	ApplyLayout(Layout) (Layout, error)
	ApplyLayoutBackwards(Layout) (Layout, error)

	// ComputeMinimalBefore returns the smallest (non-exact) layout the
	// instruction needs on the stack.
	ComputeMinimalBefore() Layout
	// ComputeMinimalAfter returns the layout that replaces it.
	ComputeMinimalAfter() Layout

	// ShapeGeneric reports whether the effect depends on the categories of
	// the values on the stack (the DUP, POP and SWAP family).
	ShapeGeneric() bool
}

// StaticManipulation pops a fixed list of sets and pushes at most one.
type StaticManipulation struct {
	consumes []TypeSet
	pushes   TypeSet
}

// NewStatic creates a manipulation consuming the given sets (bottom first)
// and pushing pushes, or nothing when pushes is Void.
func NewStatic(consumes []TypeSet, pushes TypeSet) *StaticManipulation {
	c := make([]TypeSet, len(consumes))
	copy(c, consumes)
	return &StaticManipulation{consumes: c, pushes: pushes}
}

// Consumes returns the popped sets, bottom first.
func (m *StaticManipulation) Consumes() []TypeSet {
	out := make([]TypeSet, len(m.consumes))
	copy(out, m.consumes)
	return out
}

// Pushes returns the pushed set, Void for none.
func (m *StaticManipulation) Pushes() TypeSet {
	return m.pushes
}

func (m *StaticManipulation) pushed() []TypeSet {
	if m.pushes == Void {
		return nil
	}
	return []TypeSet{m.pushes}
}

// checkSets verifies that every actual value can satisfy its expected set.
func checkSets(want, got []TypeSet) error {
	for i := range want {
		if !want[i].Matches(got[i]) {
			return fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, want[i], got[i])
		}
	}
	return nil
}

// Apply pops the consumed sets and pushes the result.
func (m *StaticManipulation) Apply(s TypeStack) (TypeStack, error) {
	rest, popped, err := s.Pop(len(m.consumes))
	if err != nil {
		return s, err
	}
	if err := checkSets(m.consumes, popped); err != nil {
		return s, err
	}
	return rest.Push(m.pushed()...), nil
}

// ApplyBackwards undoes Apply: it pops the pushed set and pushes the
// consumed sets back. A static effect does not remember what it popped, so
// the restored slots are the declared consumed sets: INT INT forwards through
// IADD comes back as TWO_COMPLEMENT TWO_COMPLEMENT. Apply followed by
// ApplyBackwards is the identity only when the stack held exactly those sets.
func (m *StaticManipulation) ApplyBackwards(s TypeStack) (TypeStack, error) {
	pushed := m.pushed()
	rest, popped, err := s.Pop(len(pushed))
	if err != nil {
		return s, err
	}
	if err := checkSets(pushed, popped); err != nil {
		return s, err
	}
	return rest.Push(m.consumes...), nil
}

// ApplyLayout propagates a layout forwards.
func (m *StaticManipulation) ApplyLayout(l Layout) (Layout, error) {
	rest, top, err := l.top(len(m.consumes))
	if err != nil {
		return l, err
	}
	if err := checkSets(m.consumes, top); err != nil {
		return l, err
	}
	return l.with(rest, m.pushed()...), nil
}

// ApplyLayoutBackwards propagates a layout backwards.
func (m *StaticManipulation) ApplyLayoutBackwards(l Layout) (Layout, error) {
	pushed := m.pushed()
	rest, top, err := l.top(len(pushed))
	if err != nil {
		return l, err
	}
	if err := checkSets(pushed, top); err != nil {
		return l, err
	}
	return l.with(rest, m.consumes...), nil
}

func (m *StaticManipulation) ComputeMinimalBefore() Layout {
	return NewLayout(false, m.consumes...)
}

func (m *StaticManipulation) ComputeMinimalAfter() Layout {
	return NewLayout(false, m.pushed()...)
}

func (m *StaticManipulation) ShapeGeneric() bool { return false }

// String renders the effect as [consumed] -> pushed.
func (m *StaticManipulation) String() string {
	return formatSets(m.consumes) + " -> " + m.pushes.String()
}

// Identity is the manipulation of instructions that leave the stack alone.
var Identity Manipulation = NewStatic(nil, Void)
