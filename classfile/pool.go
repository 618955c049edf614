package classfile

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/chazu/jflow/pkg/bytecode"
)

// Tag is the kind of a constant pool entry.
type Tag uint8

// Constant pool tags.
const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20

	// tagUnusable marks index 0 and the slot after a long or double.
	tagUnusable Tag = 0
)

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
	tagUnusable:           "unusable",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// Constant is one constant pool entry. Ref1 and Ref2 hold the entry's
// indices in declaration order (class and name-and-type for member refs,
// name and descriptor for NameAndType, bootstrap and name-and-type for
// dynamic entries). Numeric constants keep their raw bits in Bits.
type Constant struct {
	Tag  Tag
	Ref1 uint16
	Ref2 uint16
	Kind uint8 // MethodHandle reference kind
	Bits uint64
	Text string // Utf8 entries
}

// Int returns the value of an Integer constant.
func (c Constant) Int() int32 { return int32(uint32(c.Bits)) }

// Float returns the value of a Float constant.
func (c Constant) Float() float32 { return math.Float32frombits(uint32(c.Bits)) }

// Long returns the value of a Long constant.
func (c Constant) Long() int64 { return int64(c.Bits) }

// Double returns the value of a Double constant.
func (c Constant) Double() float64 { return math.Float64frombits(c.Bits) }

// Pool is a parsed constant pool. Index 0 is unusable, as is the entry
// after every long or double.
type Pool struct {
	entries []Constant
}

// Len returns constant_pool_count, one more than the highest valid index.
func (p *Pool) Len() int { return len(p.entries) }

// Entry returns the constant at index.
func (p *Pool) Entry(index uint16) (Constant, error) {
	if int(index) >= len(p.entries) || p.entries[index].Tag == tagUnusable {
		return Constant{}, fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	return p.entries[index], nil
}

func (p *Pool) expect(index uint16, tags ...Tag) (Constant, error) {
	c, err := p.Entry(index)
	if err != nil {
		return c, err
	}
	for _, t := range tags {
		if c.Tag == t {
			return c, nil
		}
	}
	return Constant{}, fmt.Errorf("%w: entry %d is %s, want %v", ErrWrongTag, index, c.Tag, tags)
}

// Utf8 returns the string at index.
func (p *Pool) Utf8(index uint16) (string, error) {
	c, err := p.expect(index, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// Class resolves a Class entry to its internal name.
func (p *Pool) Class(index uint16) (string, error) {
	c, err := p.expect(index, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.Ref1)
}

// NameAndType resolves a NameAndType entry.
func (p *Pool) NameAndType(index uint16) (name, descriptor string, err error) {
	c, err := p.expect(index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.Ref1); err != nil {
		return "", "", err
	}
	descriptor, err = p.Utf8(c.Ref2)
	return name, descriptor, err
}

// Member resolves a field, method, interface method or invokedynamic entry.
// InvokeDynamic references have no owner.
func (p *Pool) Member(index uint16) (bytecode.MemberRef, error) {
	c, err := p.expect(index, TagFieldref, TagMethodref, TagInterfaceMethodref, TagInvokeDynamic)
	if err != nil {
		return bytecode.MemberRef{}, err
	}
	var ref bytecode.MemberRef
	if c.Tag != TagInvokeDynamic {
		if ref.Owner, err = p.Class(c.Ref1); err != nil {
			return bytecode.MemberRef{}, err
		}
	}
	if ref.Name, ref.Descriptor, err = p.NameAndType(c.Ref2); err != nil {
		return bytecode.MemberRef{}, err
	}
	return ref, nil
}

// ConstantDescriptor returns the field descriptor of the value ldc pushes
// for the entry at index.
func (p *Pool) ConstantDescriptor(index uint16) (string, error) {
	c, err := p.Entry(index)
	if err != nil {
		return "", err
	}
	switch c.Tag {
	case TagInteger:
		return "I", nil
	case TagFloat:
		return "F", nil
	case TagLong:
		return "J", nil
	case TagDouble:
		return "D", nil
	case TagString:
		return "Ljava/lang/String;", nil
	case TagClass:
		return "Ljava/lang/Class;", nil
	case TagMethodType:
		return "Ljava/lang/invoke/MethodType;", nil
	case TagMethodHandle:
		return "Ljava/lang/invoke/MethodHandle;", nil
	case TagDynamic:
		_, desc, err := p.NameAndType(c.Ref2)
		return desc, err
	}
	return "", fmt.Errorf("%w: entry %d (%s) is not loadable", ErrWrongTag, index, c.Tag)
}

// readPool parses constant_pool_count and the entries that follow.
func readPool(r *reader) (*Pool, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: constant_pool_count is 0", ErrBadConstant)
	}
	p := &Pool{entries: make([]Constant, count)}
	for i := 1; i < int(count); i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		p.entries[i] = c
		if c.Tag == TagLong || c.Tag == TagDouble {
			i++ // The next index is unusable.
		}
	}
	return p, nil
}

func readConstant(r *reader) (Constant, error) {
	b, err := r.u8()
	if err != nil {
		return Constant{}, err
	}
	c := Constant{Tag: Tag(b)}
	switch c.Tag {
	case TagUtf8:
		n, err := r.u16()
		if err != nil {
			return c, err
		}
		raw, err := r.bytes(int(n))
		if err != nil {
			return c, err
		}
		// Modified UTF-8 differs from UTF-8 only for NUL and supplementary
		// characters, which names and descriptors never contain.
		if !utf8.Valid(raw) {
			return c, fmt.Errorf("%w: invalid utf8", ErrBadConstant)
		}
		c.Text = string(raw)
	case TagInteger, TagFloat:
		v, err := r.u32()
		c.Bits = uint64(v)
		return c, err
	case TagLong, TagDouble:
		hi, err := r.u32()
		if err != nil {
			return c, err
		}
		lo, err := r.u32()
		c.Bits = uint64(hi)<<32 | uint64(lo)
		return c, err
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		c.Ref1, err = r.u16()
		return c, err
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		if c.Ref1, err = r.u16(); err != nil {
			return c, err
		}
		c.Ref2, err = r.u16()
		return c, err
	case TagMethodHandle:
		if c.Kind, err = r.u8(); err != nil {
			return c, err
		}
		c.Ref1, err = r.u16()
		return c, err
	default:
		return c, fmt.Errorf("%w: unknown tag %d", ErrBadConstant, b)
	}
	return c, nil
}
