package frame

import (
	"fmt"
	"strings"

	"github.com/chazu/jflow/pkg/bytecode"
)

// Stack errors.
var (
	ErrStackUnderflow = fmt.Errorf("%w: stack underflow", bytecode.ErrMalformed)
	ErrTypeMismatch   = fmt.Errorf("%w: operand type mismatch", bytecode.ErrMalformed)
	ErrStackDependent = fmt.Errorf("%w: effect depends on the current stack", bytecode.ErrContractViolation)
)

// TypeStack is the symbolic content of the operand stack at a program point,
// bottom first. Each entry is one value, so a long or double is a single
// entry. TypeStack is a value: Push and Pop return new stacks and never
// modify the receiver.
type TypeStack struct {
	entries []TypeSet
}

// NewTypeStack creates a stack holding sets, bottom first.
func NewTypeStack(sets ...TypeSet) TypeStack {
	entries := make([]TypeSet, len(sets))
	copy(entries, sets)
	return TypeStack{entries: entries}
}

// Len returns the number of values on the stack.
func (s TypeStack) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the stack content, bottom first.
func (s TypeStack) Entries() []TypeSet {
	out := make([]TypeSet, len(s.entries))
	copy(out, s.entries)
	return out
}

// Push returns a stack with sets pushed in order (the last one ends on top).
func (s TypeStack) Push(sets ...TypeSet) TypeStack {
	entries := make([]TypeSet, 0, len(s.entries)+len(sets))
	entries = append(entries, s.entries...)
	entries = append(entries, sets...)
	return TypeStack{entries: entries}
}

// Pop removes the top n values and returns the remaining stack together with
// the removed values, bottom first.
func (s TypeStack) Pop(n int) (TypeStack, []TypeSet, error) {
	if n > len(s.entries) {
		return s, nil, fmt.Errorf("%w: pop %d from %d", ErrStackUnderflow, n, len(s.entries))
	}
	cut := len(s.entries) - n
	popped := make([]TypeSet, n)
	copy(popped, s.entries[cut:])
	return TypeStack{entries: s.entries[:cut:cut]}, popped, nil
}

// Peek returns the value depth entries below the top (0 is the top).
func (s TypeStack) Peek(depth int) (TypeSet, bool) {
	i := len(s.entries) - 1 - depth
	if depth < 0 || i < 0 {
		return Void, false
	}
	return s.entries[i], true
}

// Equal reports whether both stacks hold the same sets in the same order.
func (s TypeStack) Equal(o TypeStack) bool {
	if len(s.entries) != len(o.entries) {
		return false
	}
	for i := range s.entries {
		if s.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

// String renders the stack bottom first, e.g. [INT, LONG].
func (s TypeStack) String() string {
	return formatSets(s.entries)
}

func formatSets(sets []TypeSet) string {
	parts := make([]string, len(sets))
	for i, t := range sets {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
