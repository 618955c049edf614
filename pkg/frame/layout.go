package frame

// Layout is a stack shape: a sequence of placeholder sets, bottom first.
// An exact layout describes the whole stack; a non-exact one only the top
// Len() values, with anything (or nothing) below them.
type Layout struct {
	slots []TypeSet
	exact bool
}

// NewLayout creates a layout from placeholder sets, bottom first.
func NewLayout(exact bool, slots ...TypeSet) Layout {
	s := make([]TypeSet, len(slots))
	copy(s, slots)
	return Layout{slots: s, exact: exact}
}

// AnyLayout creates a layout of n Any placeholders.
func AnyLayout(n int, exact bool) Layout {
	slots := make([]TypeSet, n)
	for i := range slots {
		slots[i] = Any
	}
	return Layout{slots: slots, exact: exact}
}

// LayoutOf describes a concrete stack as an exact layout.
func LayoutOf(s TypeStack) Layout {
	return Layout{slots: s.Entries(), exact: true}
}

// Len returns the number of described values.
func (l Layout) Len() int {
	return len(l.slots)
}

// Exact reports whether the layout describes the whole stack.
func (l Layout) Exact() bool {
	return l.exact
}

// Slots returns a copy of the placeholders, bottom first.
func (l Layout) Slots() []TypeSet {
	out := make([]TypeSet, len(l.slots))
	copy(out, l.slots)
	return out
}

// Equal reports whether both layouts have the same placeholders and exactness.
func (l Layout) Equal(o Layout) bool {
	if l.exact != o.exact || len(l.slots) != len(o.slots) {
		return false
	}
	for i := range l.slots {
		if l.slots[i] != o.slots[i] {
			return false
		}
	}
	return true
}

// String renders the layout; non-exact layouts are prefixed with "...".
func (l Layout) String() string {
	if l.exact {
		return formatSets(l.slots)
	}
	return "..." + formatSets(l.slots)
}

// top returns the top n placeholders and the rest. A non-exact layout that
// is too short is padded with Any below its known part.
func (l Layout) top(n int) (rest, top []TypeSet, err error) {
	slots := l.slots
	if n > len(slots) {
		if l.exact {
			return nil, nil, ErrStackUnderflow
		}
		padded := make([]TypeSet, n)
		for i := 0; i < n-len(slots); i++ {
			padded[i] = Any
		}
		copy(padded[n-len(slots):], slots)
		slots = padded
	}
	cut := len(slots) - n
	top = make([]TypeSet, n)
	copy(top, slots[cut:])
	return slots[:cut:cut], top, nil
}

// with returns a layout of rest followed by pushed, keeping exactness.
func (l Layout) with(rest []TypeSet, pushed ...TypeSet) Layout {
	slots := make([]TypeSet, 0, len(rest)+len(pushed))
	slots = append(slots, rest...)
	slots = append(slots, pushed...)
	return Layout{slots: slots, exact: l.exact}
}
