package frame

import (
	"fmt"
	"strings"

	"github.com/chazu/jflow/pkg/bytecode"
)

// Kind is a single JVM verification kind.
type Kind uint8

const (
	KindBoolean Kind = iota
	KindByte
	KindChar
	KindShort
	KindInt
	KindFloat
	KindLong
	KindDouble
	KindReference
	KindReturnAddress
	numKinds
)

var kindNames = [numKinds]string{
	"boolean", "byte", "char", "short", "int",
	"float", "long", "double", "reference", "returnAddress",
}

// String returns the kind's lower-case name.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// TypeSet is a symbolic set of verification kinds: what an operation may
// consume or produce, not a concrete value. The zero value is Void.
//
// Matching is by intersection, so Any matches every non-void set.
type TypeSet uint16

// Predefined sets. They are constants and safe to share between goroutines.
const (
	Void TypeSet = 0

	Boolean       TypeSet = 1 << KindBoolean
	Byte          TypeSet = 1 << KindByte
	Char          TypeSet = 1 << KindChar
	Short         TypeSet = 1 << KindShort
	Int           TypeSet = 1 << KindInt
	Float         TypeSet = 1 << KindFloat
	Long          TypeSet = 1 << KindLong
	Double        TypeSet = 1 << KindDouble
	Reference     TypeSet = 1 << KindReference
	ReturnAddress TypeSet = 1 << KindReturnAddress

	// TwoComplement is everything the JVM represents as an int on the stack.
	TwoComplement = Boolean | Byte | Char | Short | Int

	Category1 = TwoComplement | Float | Reference | ReturnAddress
	Category2 = Long | Double
	Any       = Category1 | Category2
)

// Of builds a set from one or more kinds.
func Of(kinds ...Kind) TypeSet {
	var s TypeSet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

// Kinds lists the members of the set in declaration order.
func (s TypeSet) Kinds() []Kind {
	var out []Kind
	for k := Kind(0); k < numKinds; k++ {
		if s&(1<<k) != 0 {
			out = append(out, k)
		}
	}
	return out
}

// IsVoid reports whether the set is empty.
func (s TypeSet) IsVoid() bool {
	return s == Void
}

// Contains reports whether every member of o is also in s.
func (s TypeSet) Contains(o TypeSet) bool {
	return o&^s == 0
}

// Intersects reports whether s and o share a member.
func (s TypeSet) Intersects(o TypeSet) bool {
	return s&o != 0
}

// Matches reports whether a value described by o can satisfy a slot
// described by s.
func (s TypeSet) Matches(o TypeSet) bool {
	return s.Intersects(o)
}

// Intersect returns the members common to s and o.
func (s TypeSet) Intersect(o TypeSet) TypeSet {
	return s & o
}

// Union returns the members of either set.
func (s TypeSet) Union(o TypeSet) TypeSet {
	return s | o
}

// IsCategory1 reports whether every member occupies one local slot.
func (s TypeSet) IsCategory1() bool {
	return s != Void && Category1.Contains(s)
}

// IsCategory2 reports whether every member is long or double.
func (s TypeSet) IsCategory2() bool {
	return s != Void && Category2.Contains(s)
}

// Category returns 1 or 2 when all members agree, 0 otherwise.
func (s TypeSet) Category() int {
	switch {
	case s.IsCategory1():
		return 1
	case s.IsCategory2():
		return 2
	default:
		return 0
	}
}

// Size returns the number of local slots a value of this set occupies:
// 2 for long/double, 1 for other non-void sets, 0 for Void or mixed sets.
func (s TypeSet) Size() int {
	return s.Category()
}

var namedSets = map[TypeSet]string{
	Void:          "VOID",
	Any:           "ANY",
	TwoComplement: "TWO_COMPLEMENT",
	Category1:     "CATEGORY1",
	Category2:     "CATEGORY2",
	Boolean:       "BOOLEAN",
	Byte:          "BYTE",
	Char:          "CHAR",
	Short:         "SHORT",
	Int:           "INT",
	Float:         "FLOAT",
	Long:          "LONG",
	Double:        "DOUBLE",
	Reference:     "REFERENCE",
	ReturnAddress: "RETURN_ADDRESS",
}

// String returns the set's constant name, or {a|b|...} for other sets.
func (s TypeSet) String() string {
	if name, ok := namedSets[s]; ok {
		return name
	}
	names := make([]string, 0, numKinds)
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return "{" + strings.Join(names, "|") + "}"
}

// ErrBadDescriptor reports a field or method descriptor that cannot be parsed.
var ErrBadDescriptor = fmt.Errorf("%w: bad descriptor", bytecode.ErrMalformed)

// FromDescriptor maps a field descriptor ("I", "J", "Ljava/lang/String;",
// "[I", ...) or the return descriptor "V" to its stack set.
func FromDescriptor(desc string) (TypeSet, error) {
	t, n, err := parseFieldType(desc, 0)
	if err != nil {
		return Void, err
	}
	if n != len(desc) {
		return Void, fmt.Errorf("%w %q: trailing characters", ErrBadDescriptor, desc)
	}
	return t, nil
}

// ParseMethodDescriptor returns the parameter sets and the return set of a
// method descriptor such as "(IJLjava/lang/String;)V".
func ParseMethodDescriptor(desc string) ([]TypeSet, TypeSet, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, Void, fmt.Errorf("%w %q: missing '('", ErrBadDescriptor, desc)
	}
	var params []TypeSet
	pos := 1
	for {
		if pos >= len(desc) {
			return nil, Void, fmt.Errorf("%w %q: missing ')'", ErrBadDescriptor, desc)
		}
		if desc[pos] == ')' {
			pos++
			break
		}
		t, next, err := parseFieldType(desc, pos)
		if err != nil {
			return nil, Void, err
		}
		if t == Void {
			return nil, Void, fmt.Errorf("%w %q: void parameter", ErrBadDescriptor, desc)
		}
		params = append(params, t)
		pos = next
	}
	ret, err := FromDescriptor(desc[pos:])
	if err != nil {
		return nil, Void, err
	}
	return params, ret, nil
}

// parseFieldType parses one type starting at pos and returns the set and the
// position after it.
func parseFieldType(desc string, pos int) (TypeSet, int, error) {
	if pos >= len(desc) {
		return Void, pos, fmt.Errorf("%w %q: unexpected end", ErrBadDescriptor, desc)
	}
	switch desc[pos] {
	case 'Z':
		return Boolean, pos + 1, nil
	case 'B':
		return Byte, pos + 1, nil
	case 'C':
		return Char, pos + 1, nil
	case 'S':
		return Short, pos + 1, nil
	case 'I':
		return Int, pos + 1, nil
	case 'F':
		return Float, pos + 1, nil
	case 'J':
		return Long, pos + 1, nil
	case 'D':
		return Double, pos + 1, nil
	case 'V':
		return Void, pos + 1, nil
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end <= 1 {
			return Void, pos, fmt.Errorf("%w %q: unterminated class name", ErrBadDescriptor, desc)
		}
		return Reference, pos + end + 1, nil
	case '[':
		elem, next, err := parseFieldType(desc, pos+1)
		if err != nil {
			return Void, pos, err
		}
		if elem == Void {
			return Void, pos, fmt.Errorf("%w %q: void array element", ErrBadDescriptor, desc)
		}
		return Reference, next, nil
	default:
		return Void, pos, fmt.Errorf("%w %q: unexpected %q", ErrBadDescriptor, desc, desc[pos])
	}
}
