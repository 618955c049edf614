package classfile

import (
	"encoding/binary"
	"math"

	"github.com/chazu/jflow/pkg/bytecode"
)

// MethodSpec describes a method for Builder. A nil Code writes no Code
// attribute, as for abstract and native methods.
type MethodSpec struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	MaxStack    int
	MaxLocals   int
	Code        []byte
	Handlers    []bytecode.ExceptionHandler
	Lines       []bytecode.LineNumber
	Locals      []bytecode.LocalVariable
}

// Builder writes minimal class files. Constant pool entries are interned,
// so adding the same constant twice returns the same index.
type Builder struct {
	pool    []byte
	next    uint16
	index   map[string]uint16
	access  uint16
	this    uint16
	super   uint16
	methods []MethodSpec
}

// NewBuilder starts a public class. super may be empty.
func NewBuilder(name, super string) *Builder {
	b := &Builder{next: 1, index: make(map[string]uint16), access: 0x0021}
	b.this = b.Class(name)
	if super != "" {
		b.super = b.Class(super)
	}
	return b
}

// add interns an encoded entry and returns its index.
func (b *Builder) add(entry []byte) uint16 {
	key := string(entry)
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := b.next
	b.index[key] = idx
	b.pool = append(b.pool, entry...)
	b.next++
	if t := Tag(entry[0]); t == TagLong || t == TagDouble {
		b.next++
	}
	return idx
}

func entry(t Tag, refs ...uint16) []byte {
	out := []byte{byte(t)}
	for _, r := range refs {
		out = binary.BigEndian.AppendUint16(out, r)
	}
	return out
}

// Utf8 adds a Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	e := binary.BigEndian.AppendUint16([]byte{byte(TagUtf8)}, uint16(len(s)))
	return b.add(append(e, s...))
}

// Class adds a Class entry for an internal name.
func (b *Builder) Class(name string) uint16 {
	return b.add(entry(TagClass, b.Utf8(name)))
}

// StringConst adds a String entry.
func (b *Builder) StringConst(s string) uint16 {
	return b.add(entry(TagString, b.Utf8(s)))
}

// Integer adds an Integer entry.
func (b *Builder) Integer(v int32) uint16 {
	return b.add(binary.BigEndian.AppendUint32([]byte{byte(TagInteger)}, uint32(v)))
}

// Float adds a Float entry.
func (b *Builder) Float(v float32) uint16 {
	return b.add(binary.BigEndian.AppendUint32([]byte{byte(TagFloat)}, math.Float32bits(v)))
}

// Long adds a Long entry, which takes two indices.
func (b *Builder) Long(v int64) uint16 {
	return b.add(binary.BigEndian.AppendUint64([]byte{byte(TagLong)}, uint64(v)))
}

// Double adds a Double entry, which takes two indices.
func (b *Builder) Double(v float64) uint16 {
	return b.add(binary.BigEndian.AppendUint64([]byte{byte(TagDouble)}, math.Float64bits(v)))
}

// NameAndType adds a NameAndType entry.
func (b *Builder) NameAndType(name, descriptor string) uint16 {
	return b.add(entry(TagNameAndType, b.Utf8(name), b.Utf8(descriptor)))
}

// Fieldref adds a field reference.
func (b *Builder) Fieldref(owner, name, descriptor string) uint16 {
	return b.add(entry(TagFieldref, b.Class(owner), b.NameAndType(name, descriptor)))
}

// Methodref adds a method reference.
func (b *Builder) Methodref(owner, name, descriptor string) uint16 {
	return b.add(entry(TagMethodref, b.Class(owner), b.NameAndType(name, descriptor)))
}

// InterfaceMethodref adds an interface method reference.
func (b *Builder) InterfaceMethodref(owner, name, descriptor string) uint16 {
	return b.add(entry(TagInterfaceMethodref, b.Class(owner), b.NameAndType(name, descriptor)))
}

// AddMethod appends a method.
func (b *Builder) AddMethod(m MethodSpec) {
	b.methods = append(b.methods, m)
}

func u16(out []byte, v int) []byte { return binary.BigEndian.AppendUint16(out, uint16(v)) }

// attribute appends name_index, length and body.
func (b *Builder) attribute(out []byte, name string, body []byte) []byte {
	out = u16(out, int(b.Utf8(name)))
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

func (b *Builder) method(m MethodSpec) []byte {
	out := u16(nil, int(m.AccessFlags))
	out = u16(out, int(b.Utf8(m.Name)))
	out = u16(out, int(b.Utf8(m.Descriptor)))
	if m.Code == nil {
		return u16(out, 0)
	}

	code := u16(nil, m.MaxStack)
	code = u16(code, m.MaxLocals)
	code = binary.BigEndian.AppendUint32(code, uint32(len(m.Code)))
	code = append(code, m.Code...)
	code = u16(code, len(m.Handlers))
	for _, h := range m.Handlers {
		code = u16(code, h.StartPC)
		code = u16(code, h.EndPC)
		code = u16(code, h.HandlerPC)
		catch := 0
		if h.CatchType != "" {
			catch = int(b.Class(h.CatchType))
		}
		code = u16(code, catch)
	}

	var attrs [][]byte
	if len(m.Lines) > 0 {
		body := u16(nil, len(m.Lines))
		for _, l := range m.Lines {
			body = u16(body, l.StartPC)
			body = u16(body, l.Line)
		}
		attrs = append(attrs, b.attribute(nil, "LineNumberTable", body))
	}
	if len(m.Locals) > 0 {
		body := u16(nil, len(m.Locals))
		for _, lv := range m.Locals {
			body = u16(body, lv.StartPC)
			body = u16(body, lv.Length)
			body = u16(body, int(b.Utf8(lv.Name)))
			body = u16(body, int(b.Utf8(lv.Descriptor)))
			body = u16(body, lv.Slot)
		}
		attrs = append(attrs, b.attribute(nil, "LocalVariableTable", body))
	}
	code = u16(code, len(attrs))
	for _, a := range attrs {
		code = append(code, a...)
	}

	out = u16(out, 1)
	return b.attribute(out, "Code", code)
}

// Bytes returns the encoded class file (version 52, Java 8).
func (b *Builder) Bytes() []byte {
	// Encoding methods interns their names, so the pool is written last.
	var methods []byte
	for _, m := range b.methods {
		methods = append(methods, b.method(m)...)
	}

	out := binary.BigEndian.AppendUint32(nil, Magic)
	out = u16(out, 0)
	out = u16(out, 52)
	out = u16(out, int(b.next))
	out = append(out, b.pool...)
	out = u16(out, int(b.access))
	out = u16(out, int(b.this))
	out = u16(out, int(b.super))
	out = u16(out, 0) // Interfaces
	out = u16(out, 0) // Fields
	out = u16(out, len(b.methods))
	out = append(out, methods...)
	return u16(out, 0) // Attributes
}
