package frame

import (
	"fmt"
	"strings"
)

// Form is one concrete shape of a shape-generic instruction. Consumes lists
// the required category (1 or 2) of each popped value, bottom first; Produces
// lists, bottom first, which popped value each pushed value copies.
//
// DUP_X1 is Form{Consumes: []int{1, 1}, Produces: []int{1, 0, 1}}.
type Form struct {
	Consumes []int
	Produces []int
}

func (f Form) String() string {
	return fmt.Sprintf("%v -> %v", f.Consumes, f.Produces)
}

func categorySet(c int) TypeSet {
	if c == 2 {
		return Category2
	}
	return Category1
}

// ShapeManipulation is the effect of a DUP, POP or SWAP style instruction:
// one of several forms, selected by the categories of the values on top of
// the stack.
type ShapeManipulation struct {
	name    string
	forms   []Form
	minimal int
}

// NewShape creates a shape-generic manipulation. The form consuming the
// fewest values is the minimal one.
func NewShape(name string, forms ...Form) *ShapeManipulation {
	if len(forms) == 0 {
		panic("frame: shape manipulation without forms")
	}
	minimal := 0
	for i, f := range forms {
		if len(f.Consumes) < len(forms[minimal].Consumes) {
			minimal = i
		}
	}
	return &ShapeManipulation{name: name, forms: forms, minimal: minimal}
}

// Name returns the instruction name the manipulation was built for.
func (m *ShapeManipulation) Name() string { return m.name }

// Forms returns the forms in declaration order.
func (m *ShapeManipulation) Forms() []Form {
	return append([]Form(nil), m.forms...)
}

// MinimalForm returns the form consuming the fewest values.
func (m *ShapeManipulation) MinimalForm() Form {
	return m.forms[m.minimal]
}

// candidates returns the forms whose categories the top values can satisfy.
// depth reports whether at least one form fitted in the available values.
func candidates(forms []Form, width func(Form) []int, avail []TypeSet) (matches []int, deep bool) {
	for i, f := range forms {
		cats := width(f)
		if len(cats) > len(avail) {
			continue
		}
		deep = true
		top := avail[len(avail)-len(cats):]
		ok := true
		for j, c := range cats {
			if !top[j].Intersects(categorySet(c)) {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, i)
		}
	}
	return matches, deep
}

func consumedCats(f Form) []int { return f.Consumes }

// producedCats maps each pushed value to the category of the value it copies.
func producedCats(f Form) []int {
	cats := make([]int, len(f.Produces))
	for i, src := range f.Produces {
		cats[i] = f.Consumes[src]
	}
	return cats
}

// forward pops the form's inputs from top, narrowed to their categories, and
// returns the pushed copies.
func forward(f Form, top []TypeSet) []TypeSet {
	in := make([]TypeSet, len(top))
	for i, t := range top {
		in[i] = t.Intersect(categorySet(f.Consumes[i]))
	}
	out := make([]TypeSet, len(f.Produces))
	for i, src := range f.Produces {
		out[i] = in[src]
	}
	return out
}

// backward rebuilds the form's inputs from its outputs. Copies of the same
// input are intersected.
func backward(f Form, top []TypeSet) []TypeSet {
	in := make([]TypeSet, len(f.Consumes))
	for i, c := range f.Consumes {
		in[i] = categorySet(c)
	}
	for i, src := range f.Produces {
		in[src] = in[src].Intersect(top[i])
	}
	return in
}

func (m *ShapeManipulation) selectForm(width func(Form) []int, avail []TypeSet) (Form, error) {
	matches, deep := candidates(m.forms, width, avail)
	switch {
	case !deep:
		return Form{}, fmt.Errorf("%w: %s on %s", ErrStackUnderflow, m.name, formatSets(avail))
	case len(matches) == 0:
		return Form{}, fmt.Errorf("%w: %s on %s", ErrTypeMismatch, m.name, formatSets(avail))
	case len(matches) > 1:
		return Form{}, fmt.Errorf("%w: %s on %s", ErrStackDependent, m.name, formatSets(avail))
	}
	return m.forms[matches[0]], nil
}

// Apply executes the instruction on s when the categories on top of the
// stack select exactly one form, and fails with ErrStackDependent when they
// do not.
func (m *ShapeManipulation) Apply(s TypeStack) (TypeStack, error) {
	f, err := m.selectForm(consumedCats, s.entries)
	if err != nil {
		return s, err
	}
	rest, top, err := s.Pop(len(f.Consumes))
	if err != nil {
		return s, err
	}
	return rest.Push(forward(f, top)...), nil
}

// ApplyBackwards reverses Apply under the same form selection rule.
func (m *ShapeManipulation) ApplyBackwards(s TypeStack) (TypeStack, error) {
	f, err := m.selectForm(producedCats, s.entries)
	if err != nil {
		return s, err
	}
	rest, top, err := s.Pop(len(f.Produces))
	if err != nil {
		return s, err
	}
	return rest.Push(backward(f, top)...), nil
}

// layoutForm picks the form for a layout: the single matching one, or the
// minimal form when the placeholders leave the choice open.
func (m *ShapeManipulation) layoutForm(width func(Form) []int, l Layout) (Form, error) {
	avail := l.slots
	if !l.exact {
		// Unknown values below a non-exact layout may complete any form.
		avail = make([]TypeSet, 0, len(l.slots)+4)
		for i := 0; i < 4; i++ {
			avail = append(avail, Any)
		}
		avail = append(avail, l.slots...)
	}
	matches, deep := candidates(m.forms, width, avail)
	switch {
	case !deep:
		return Form{}, fmt.Errorf("%w: %s on %s", ErrStackUnderflow, m.name, l)
	case len(matches) == 0:
		return Form{}, fmt.Errorf("%w: %s on %s", ErrTypeMismatch, m.name, l)
	case len(matches) == 1:
		return m.forms[matches[0]], nil
	}
	for _, i := range matches {
		if i == m.minimal {
			return m.forms[i], nil
		}
	}
	// The minimal form is excluded by a known category: take the smallest
	// remaining candidate.
	best := matches[0]
	for _, i := range matches[1:] {
		if len(width(m.forms[i])) < len(width(m.forms[best])) {
			best = i
		}
	}
	return m.forms[best], nil
}

// ApplyLayout propagates a layout forwards. It never reports
// ErrStackDependent.
func (m *ShapeManipulation) ApplyLayout(l Layout) (Layout, error) {
	f, err := m.layoutForm(consumedCats, l)
	if err != nil {
		return l, err
	}
	rest, top, err := l.top(len(f.Consumes))
	if err != nil {
		return l, err
	}
	return l.with(rest, forward(f, top)...), nil
}

// ApplyLayoutBackwards propagates a layout backwards.
func (m *ShapeManipulation) ApplyLayoutBackwards(l Layout) (Layout, error) {
	f, err := m.layoutForm(producedCats, l)
	if err != nil {
		return l, err
	}
	rest, top, err := l.top(len(f.Produces))
	if err != nil {
		return l, err
	}
	return l.with(rest, backward(f, top)...), nil
}

// ComputeMinimalBefore returns Any placeholders for the inputs of the
// minimal form.
func (m *ShapeManipulation) ComputeMinimalBefore() Layout {
	return AnyLayout(len(m.forms[m.minimal].Consumes), false)
}

// ComputeMinimalAfter returns Any placeholders for the outputs of the
// minimal form.
func (m *ShapeManipulation) ComputeMinimalAfter() Layout {
	return AnyLayout(len(m.forms[m.minimal].Produces), false)
}

func (m *ShapeManipulation) ShapeGeneric() bool { return true }

func (m *ShapeManipulation) String() string {
	parts := make([]string, len(m.forms))
	for i, f := range m.forms {
		parts[i] = f.String()
	}
	return m.name + " {" + strings.Join(parts, "; ") + "}"
}
